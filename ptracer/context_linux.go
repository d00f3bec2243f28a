package ptracer

import (
	"syscall"
)

// Context caches a tracee's general purpose register file across one
// ptrace stop. Registers are fetched once per stop, mutated in the
// cache, and written back only when dirty, right before the tracee is
// resumed. The register captured at syscall-entry is kept so argument
// registers and the stack pointer can be restored at syscall-exit.
type Context struct {
	Pid int

	regs  syscall.PtraceRegs
	orig  syscall.PtraceRegs
	dirty bool
	saved bool

	// arm64 needs an extra regset write to change the syscall number
	sysNoOverride *int
}

// Fetch loads the tracee's registers into the cache, dropping any
// uncommitted local modification.
func (c *Context) Fetch() error {
	c.dirty = false
	c.sysNoOverride = nil
	return ptraceGetRegSet(c.Pid, &c.regs)
}

// Flush writes the cached registers back to the tracee if they were
// modified. The tracee must not be resumed while the cache is dirty.
func (c *Context) Flush() error {
	if c.dirty {
		if err := ptraceSetRegSet(c.Pid, &c.regs); err != nil {
			return err
		}
		c.dirty = false
	}
	if c.sysNoOverride != nil {
		n := *c.sysNoOverride
		c.sysNoOverride = nil
		return setSyscallNumber(c.Pid, n)
	}
	return nil
}

// SaveOriginal snapshots the current registers as the syscall-entry
// state for later restoration.
func (c *Context) SaveOriginal() {
	c.orig = c.regs
	c.saved = true
}

// RestoreOriginal puts the entry-time argument registers, stack pointer
// and syscall number back into the cache. Most kernels preserve the
// argument registers across a syscall anyway; restoring keeps the
// tracee's view consistent after we rewrote arguments into scratch.
func (c *Context) RestoreOriginal() {
	if !c.saved {
		return
	}
	restoreEntryRegs(&c.regs, &c.orig)
	c.dirty = true
}

// OrigSyscallNo returns the syscall number as captured at entry, which
// survives voiding the syscall.
func (c *Context) OrigSyscallNo() uint64 {
	if !c.saved {
		return c.SyscallNo()
	}
	return sysNoOf(&c.orig)
}

// OrigArg returns an argument register as captured at syscall-entry.
func (c *Context) OrigArg(i int) uint64 {
	if !c.saved {
		return c.Arg(i)
	}
	return argOf(&c.orig, i)
}

// Arg returns the i-th syscall argument register (0-based).
func (c *Context) Arg(i int) uint64 {
	return argOf(&c.regs, i)
}

// SetArg rewrites the i-th syscall argument register.
func (c *Context) SetArg(i int, v uint64) {
	setArgOf(&c.regs, i, v)
	c.dirty = true
}

// CancelSyscall voids the in-flight syscall so the kernel executes
// nothing; the exit handler then plants the desired return value.
func (c *Context) CancelSyscall() {
	c.SetSyscallNo(-1)
}
