package syscalls

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/proot-me/proot-go/filesystem"
	"github.com/proot-me/proot-go/loader"
	"github.com/proot-me/proot-go/pkg/seccomp"
	"github.com/proot-me/proot-go/ptracer"
	"github.com/proot-me/proot-go/syscalls/execve"
)

// Handler wires the syscall table to the VFS: it is the
// ptracer.Handler that rewrites path arguments at syscall-entry and
// fixes results at syscall-exit.
type Handler struct {
	FS     *filesystem.FileSystem
	Loader *execve.Loader
	Logger *slog.Logger
}

// HandleEnter translates the syscall a tracee is entering.
func (h *Handler) HandleEnter(t *ptracer.Tracee) error {
	c := &t.Ctx
	sysno := c.SyscallNo()

	if t.InLoader {
		// the bootstrap operates on host paths; nothing is translated
		// until its handoff marker
		if sysno == unix.SYS_GETCWD && c.Arg(1) == loader.DoneMagic {
			t.InLoader = false
			h.void(t, 0)
		} else if e, ok := table[sysno]; ok && e.Group == GroupClone {
			// runtime threads of the bootstrap still fork fs-state
			h.enterClone(t, sysno)
		}
		return nil
	}

	e, ok := table[sysno]
	if !ok {
		return nil
	}
	if h.Logger.Enabled(context.Background(), slog.LevelDebug) {
		h.Logger.Debug("syscall enter", "pid", t.Pid, "syscall", seccomp.SyscallName(sysno))
	}

	switch e.Group {
	case GroupPathIn, GroupOpen, GroupSymlink:
		if errno := h.translateArg(t, e.PathArg, e.DirFdArg, h.deref(t, e.Deref, e.FlagsArg)); errno != 0 {
			h.void(t, errno)
		}

	case GroupPathIn2:
		errno := h.translateArg(t, e.PathArg, e.DirFdArg, h.deref(t, e.Deref, e.FlagsArg))
		if errno == 0 {
			errno = h.translateArg(t, e.PathArg2, e.DirFdArg2, e.Deref2 == DerefAlways)
		}
		if errno != 0 {
			h.void(t, errno)
		}

	case GroupReadLink:
		h.enterReadlink(t, e)

	case GroupGetCwd:
		h.enterGetcwd(t)

	case GroupChdir:
		h.enterChdir(t, e)

	case GroupFchdir:
		h.enterFchdir(t)

	case GroupExecve:
		h.enterExecve(t, e)

	case GroupClone:
		h.enterClone(t, sysno)

	case GroupMount:
		h.enterMount(t)

	case GroupUnsupported:
		h.void(t, unix.ENOSYS)
	}
	return nil
}

// HandleExecEvent pokes the load script into the fresh loader image.
func (h *Handler) HandleExecEvent(t *ptracer.Tracee) error {
	return h.Loader.CommitExec(t)
}

// void cancels the in-flight syscall; the exit handler will plant
// -errno (or an emulated success when errno is zero).
func (h *Handler) void(t *ptracer.Tracee, errno unix.Errno) {
	t.Voided = true
	t.EnterErr = errno
	t.Ctx.CancelSyscall()
}

// deref evaluates a dereference policy against the flags argument.
func (h *Handler) deref(t *ptracer.Tracee, d Deref, flagsArg int8) bool {
	var flags uint64
	if flagsArg >= 0 {
		flags = t.Ctx.Arg(int(flagsArg))
	}
	switch d {
	case DerefNever:
		return false
	case DerefUnlessNoFollow:
		return flags&unix.AT_SYMLINK_NOFOLLOW == 0
	case DerefIfFollow:
		return flags&unix.AT_SYMLINK_FOLLOW != 0
	case DerefOpen:
		return flags&unix.O_NOFOLLOW == 0
	}
	return true
}

// translateArg rewrites one path argument from the guest view to the
// host view, staging the new string in scratch. A zero errno result
// means the argument was left alone or successfully rewritten.
func (h *Handler) translateArg(t *ptracer.Tracee, pathArg, dirFdArg int8, deref bool) unix.Errno {
	c := &t.Ctx
	addr := uintptr(c.Arg(int(pathArg)))
	if addr == 0 {
		// let the kernel produce its own EFAULT
		return 0
	}
	s, err := t.Mem.ReadString(addr, unix.PathMax)
	if err != nil {
		if errors.Is(err, unix.ENAMETOOLONG) {
			return unix.ENAMETOOLONG
		}
		return 0
	}
	if s == "" {
		// empty paths are either AT_EMPTY_PATH (fd-based, nothing to
		// translate) or the kernel's ENOENT
		return 0
	}
	if s[0] != '/' && dirFdArg >= 0 {
		if dirfd := int32(c.Arg(int(dirFdArg))); dirfd != unix.AT_FDCWD {
			// rooted at a host fd that was itself opened through a
			// translated path; the kernel resolves it consistently
			return 0
		}
	}
	guest := s
	if guest[0] == '/' {
		if rewritten, ok := filesystem.RewriteProcEntry(guest, t.Pid, t.FS.Cwd, t.Exe); ok {
			guest = rewritten
		}
	}
	host, err := h.FS.Translate(t.FS.Cwd, guest, deref)
	if err != nil {
		return asErrno(err)
	}
	if host == s {
		return 0
	}
	staged, err := t.ScratchWriteString(host)
	if err != nil {
		return asErrno(err)
	}
	c.SetArg(int(pathArg), uint64(staged))
	return 0
}

// asErrno maps a translation error to the errno surfaced to the
// tracee.
func asErrno(err error) unix.Errno {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return unix.EIO
}

func negErrno(errno unix.Errno) uint64 {
	return uint64(-int64(int(errno)))
}
