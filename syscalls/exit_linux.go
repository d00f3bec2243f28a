package syscalls

import (
	"golang.org/x/sys/unix"

	"github.com/proot-me/proot-go/ptracer"
	"github.com/proot-me/proot-go/syscalls/execve"
)

// HandleExit finishes a syscall: voided syscalls get their emulated
// result or errno planted, path-out syscalls get their buffers
// rewritten into the guest view. The event loop restores the entry-time
// argument registers afterwards.
func (h *Handler) HandleExit(t *ptracer.Tracee) error {
	c := &t.Ctx
	e, tracked := table[c.OrigSyscallNo()]

	if t.InLoader && !t.Voided {
		// the bootstrap's own syscalls pass through untouched
		return nil
	}

	if t.Voided {
		t.Voided = false
		if t.EnterErr != 0 {
			c.SetReturnValue(negErrno(t.EnterErr))
			return nil
		}
		switch e.Group {
		case GroupGetCwd:
			h.exitGetcwd(t)
		case GroupReadLink:
			h.exitReadlinkEmulated(t, e)
		case GroupChdir, GroupFchdir:
			if t.HasStaged {
				t.FS.Cwd = t.StagedCwd
				t.HasStaged = false
			}
			c.SetReturnValue(0)
		default:
			c.SetReturnValue(0)
		}
		return nil
	}

	if !tracked {
		return nil
	}

	ret := int64(c.ReturnValue())
	switch e.Group {
	case GroupReadLink:
		if ret > 0 {
			h.exitReadlink(t, e, ret)
		}
	case GroupExecve:
		if ret < 0 {
			execve.ExitFailed(t)
		}
	}
	return nil
}

// exitGetcwd materializes the guest cwd in the caller's buffer with the
// kernel's size semantics.
func (h *Handler) exitGetcwd(t *ptracer.Tracee) {
	c := &t.Ctx
	buf := uintptr(c.OrigArg(0))
	size := c.OrigArg(1)
	if buf == 0 {
		// the loader handoff marker calls getcwd with a nil buffer
		c.SetReturnValue(0)
		return
	}
	cwd := t.FS.Cwd
	need := uint64(len(cwd) + 1)
	if size < need {
		errno := unix.ERANGE
		if size == 0 {
			errno = unix.EINVAL
		}
		c.SetReturnValue(negErrno(errno))
		return
	}
	if err := t.Mem.WriteString(buf, cwd); err != nil {
		c.SetReturnValue(negErrno(unix.EFAULT))
		return
	}
	c.SetReturnValue(need)
}

// exitReadlinkEmulated writes the staged value for the magic /proc
// entries, truncating to the caller's buffer like readlink does.
func (h *Handler) exitReadlinkEmulated(t *ptracer.Tracee, e Entry) {
	c := &t.Ctx
	value := t.StagedLink
	t.StagedLinkEmul = false
	buf := uintptr(c.OrigArg(int(e.OutArg)))
	size := int(c.OrigArg(int(e.LenArg)))
	if size <= 0 || buf == 0 {
		c.SetReturnValue(negErrno(unix.EINVAL))
		return
	}
	if len(value) > size {
		value = value[:size]
	}
	if err := t.Mem.WriteBytes(buf, []byte(value)); err != nil {
		c.SetReturnValue(negErrno(unix.EFAULT))
		return
	}
	c.SetReturnValue(uint64(len(value)))
}

// exitReadlink detranslates the link value the kernel produced, when
// the link's location warrants it.
func (h *Handler) exitReadlink(t *ptracer.Tracee, e Entry, n int64) {
	c := &t.Ctx
	buf := uintptr(c.OrigArg(int(e.OutArg)))
	raw := make([]byte, n)
	if err := t.Mem.ReadBytes(buf, raw); err != nil {
		return
	}
	value := string(raw)
	detr := h.FS.DetranslateLink(t.StagedLink, value)
	if detr == value {
		return
	}
	size := int(c.OrigArg(int(e.LenArg)))
	if len(detr) > size {
		detr = detr[:size]
	}
	if err := t.Mem.WriteBytes(buf, []byte(detr)); err != nil {
		return
	}
	c.SetReturnValue(uint64(len(detr)))
}
