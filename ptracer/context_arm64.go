//go:build linux

package ptracer

import (
	"syscall"
	"unsafe"
)

const syscallInsnLen = 4 // svc #0

// SyscallNo returns the current syscall number.
func (c *Context) SyscallNo() uint64 {
	return c.regs.Regs[8]
}

func sysNoOf(regs *syscall.PtraceRegs) uint64 {
	return regs.Regs[8]
}

// SetSyscallNo replaces the syscall the kernel will execute. On arm64
// the in-flight syscall number is a dedicated regset, written at Flush.
func (c *Context) SetSyscallNo(n int) {
	c.regs.Regs[8] = uint64(n)
	no := n
	c.sysNoOverride = &no
	c.dirty = true
}

// ReturnValue returns the syscall result register.
func (c *Context) ReturnValue() uint64 {
	return c.regs.Regs[0]
}

// SetReturnValue rewrites the syscall result observed by the tracee.
func (c *Context) SetReturnValue(v uint64) {
	c.regs.Regs[0] = v
	c.dirty = true
}

// StackPointer returns the stack pointer register.
func (c *Context) StackPointer() uint64 {
	return c.regs.Sp
}

// InstrPointer returns the program counter.
func (c *Context) InstrPointer() uint64 {
	return c.regs.Pc
}

// SetInstrPointer rewrites the program counter.
func (c *Context) SetInstrPointer(v uint64) {
	c.regs.Pc = v
	c.dirty = true
}

func argOf(regs *syscall.PtraceRegs, i int) uint64 {
	return regs.Regs[i]
}

func setArgOf(regs *syscall.PtraceRegs, i int, v uint64) {
	regs.Regs[i] = v
}

func restoreEntryRegs(cur, orig *syscall.PtraceRegs) {
	// x0 stays untouched: it is both the first argument and the result
	// register, and the result must survive the restore
	for i := 1; i < 6; i++ {
		cur.Regs[i] = orig.Regs[i]
	}
	cur.Regs[8] = orig.Regs[8]
	cur.Sp = orig.Sp
}

// setSyscallNumber rewrites the in-flight syscall number through the
// NT_ARM_SYSTEM_CALL regset; the general regset write is not enough on
// arm64.
func setSyscallNumber(pid int, n int) error {
	no := int32(n)
	iov := getIovec((*byte)(unsafe.Pointer(&no)), int(unsafe.Sizeof(no)))
	return ptrace(syscall.PTRACE_SETREGSET, pid, _NT_ARM_SYSTEM_CALL, uintptr(unsafe.Pointer(&iov)))
}
