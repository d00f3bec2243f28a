//go:build linux

package ptracer

import "syscall"

// syscallInsnLen is the length of the syscall instruction, used to
// rewind the program counter when re-driving an interrupted syscall.
const syscallInsnLen = 2 // 0f 05

// SyscallNo returns the current syscall number.
func (c *Context) SyscallNo() uint64 {
	return c.regs.Orig_rax
}

func sysNoOf(regs *syscall.PtraceRegs) uint64 {
	return regs.Orig_rax
}

// SetSyscallNo replaces the syscall the kernel will execute.
func (c *Context) SetSyscallNo(n int) {
	c.regs.Orig_rax = uint64(n)
	c.dirty = true
}

// ReturnValue returns the syscall result register.
func (c *Context) ReturnValue() uint64 {
	return c.regs.Rax
}

// SetReturnValue rewrites the syscall result observed by the tracee.
func (c *Context) SetReturnValue(v uint64) {
	c.regs.Rax = v
	c.dirty = true
}

// StackPointer returns the stack pointer register.
func (c *Context) StackPointer() uint64 {
	return c.regs.Rsp
}

// InstrPointer returns the program counter.
func (c *Context) InstrPointer() uint64 {
	return c.regs.Rip
}

// SetInstrPointer rewrites the program counter.
func (c *Context) SetInstrPointer(v uint64) {
	c.regs.Rip = v
	c.dirty = true
}

func argOf(regs *syscall.PtraceRegs, i int) uint64 {
	switch i {
	case 0:
		return regs.Rdi
	case 1:
		return regs.Rsi
	case 2:
		return regs.Rdx
	case 3:
		return regs.R10
	case 4:
		return regs.R8
	case 5:
		return regs.R9
	}
	return 0
}

func setArgOf(regs *syscall.PtraceRegs, i int, v uint64) {
	switch i {
	case 0:
		regs.Rdi = v
	case 1:
		regs.Rsi = v
	case 2:
		regs.Rdx = v
	case 3:
		regs.R10 = v
	case 4:
		regs.R8 = v
	case 5:
		regs.R9 = v
	}
}

func restoreEntryRegs(cur, orig *syscall.PtraceRegs) {
	cur.Orig_rax = orig.Orig_rax
	cur.Rdi = orig.Rdi
	cur.Rsi = orig.Rsi
	cur.Rdx = orig.Rdx
	cur.R10 = orig.R10
	cur.R8 = orig.R8
	cur.R9 = orig.R9
	cur.Rsp = orig.Rsp
}

// setSyscallNumber is the arch hook used by Flush; on x86-64 the number
// lives in orig_rax which is part of the regular register set, so the
// regset write already covered it.
func setSyscallNumber(pid int, n int) error {
	return nil
}
