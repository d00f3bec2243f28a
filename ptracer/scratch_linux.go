package ptracer

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// scratchSize is the size of the per-tracee staging area. Translated
// paths are bounded by PATH_MAX, so one page-aligned chunk covers every
// argument of a syscall with room to spare.
const scratchSize = 64 << 10

// ScratchWrite stages data in the tracee's scratch area and returns its
// address there. Allocations are bump-style and live until the next
// syscall-entry. The tracee must be stopped at a syscall-entry: if no
// scratch exists yet one is created by borrowing the stop to run an
// mmap first (see injectScratch).
func (t *Tracee) ScratchWrite(data []byte) (uintptr, error) {
	if t.scratch.addr == 0 {
		if err := t.injectScratch(); err != nil {
			return 0, err
		}
	}
	// keep allocations word-aligned so partial-word merges of one write
	// cannot clobber the previous one
	n := (len(data) + wordSize - 1) / wordSize * wordSize
	if t.scratch.off+n > t.scratch.size {
		return 0, unix.ENOMEM
	}
	addr := t.scratch.addr + uintptr(t.scratch.off)
	if err := t.Mem.WriteBytes(addr, data); err != nil {
		return 0, err
	}
	t.scratch.off += n
	return addr, nil
}

// ScratchWriteString stages a NUL-terminated string in scratch.
func (t *Tracee) ScratchWriteString(s string) (uintptr, error) {
	data := make([]byte, len(s)+1)
	copy(data, s)
	return t.ScratchWrite(data)
}

// injectScratch allocates the scratch mapping by hijacking the syscall
// the tracee is entering: the registers are rewritten into an anonymous
// mmap, the kernel runs it, the result is read at the exit stop, and
// the original syscall is re-driven by rewinding the program counter
// onto its syscall instruction and restoring the entry registers. The
// caller resumes entry handling with the tracee stopped, once again, at
// the original syscall's entry.
func (t *Tracee) injectScratch() error {
	c := &t.Ctx
	if !c.saved {
		return unix.EFAULT
	}

	c.SetSyscallNo(unix.SYS_MMAP)
	c.SetArg(0, 0)
	c.SetArg(1, scratchSize)
	c.SetArg(2, unix.PROT_READ|unix.PROT_WRITE)
	c.SetArg(3, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	c.SetArg(4, ^uint64(0)) // fd = -1
	c.SetArg(5, 0)
	if err := c.Flush(); err != nil {
		return err
	}

	// run the mmap to its exit stop
	if err := t.stepToSyscallStop(); err != nil {
		return err
	}
	if err := c.Fetch(); err != nil {
		return err
	}
	ret := c.ReturnValue()
	if errno := unix.Errno(-int64(ret)); int64(ret) < 0 && errno < 4096 {
		return errno
	}

	// re-drive the original syscall: restore the entry registers and
	// point the program counter back at the syscall instruction
	c.regs = c.orig
	if runtime.GOARCH == "amd64" {
		// the syscall instruction reads its number from rax, which
		// holds -ENOSYS at an entry stop; orig_rax has the real one
		c.SetReturnValue(sysNoOf(&c.orig))
	}
	c.SetInstrPointer(c.InstrPointer() - syscallInsnLen)
	c.dirty = true
	if err := c.Flush(); err != nil {
		return err
	}
	if err := t.stepToSyscallStop(); err != nil {
		return err
	}
	if err := c.Fetch(); err != nil {
		return err
	}
	c.SaveOriginal()

	t.scratch = scratch{addr: uintptr(ret), size: scratchSize}
	return nil
}

// stepToSyscallStop resumes the tracee with PTRACE_SYSCALL and waits
// for its next syscall stop, forwarding any signal stops delivered in
// between.
func (t *Tracee) stepToSyscallStop() error {
	sig := 0
	for {
		if err := unix.PtraceSyscall(t.Pid, sig); err != nil {
			return err
		}
		var wstatus unix.WaitStatus
		if _, err := unix.Wait4(t.Pid, &wstatus, unix.WALL, nil); err != nil {
			return err
		}
		switch {
		case wstatus.Exited() || wstatus.Signaled():
			return unix.ESRCH
		case wstatus.Stopped():
			stopSig := wstatus.StopSignal()
			if stopSig == unix.SIGTRAP|0x80 {
				return nil
			}
			switch cause := wstatus.TrapCause(); {
			case cause == unix.PTRACE_EVENT_SECCOMP:
				// the re-driven syscall hits the filter again before
				// its entry stop
				sig = 0
			case cause > 0:
				return fmt.Errorf("scratch: unexpected ptrace event %d", cause)
			default:
				sig = int(stopSig)
			}
		}
	}
}
