package syscalls

import (
	"fmt"
	"os"
	"path"

	"golang.org/x/sys/unix"

	"github.com/proot-me/proot-go/filesystem"
	"github.com/proot-me/proot-go/ptracer"
)

// enterReadlink stages readlink translation. The magic /proc entries of
// the calling tracee are fully emulated; everything else has its path
// argument translated without dereferencing the final component (that
// is the link being read) and the translated host path kept so the
// result can be detranslated at exit.
func (h *Handler) enterReadlink(t *ptracer.Tracee, e Entry) {
	c := &t.Ctx
	addr := uintptr(c.Arg(int(e.PathArg)))
	s, err := t.Mem.ReadString(addr, unix.PathMax)
	if err != nil || s == "" {
		return
	}
	abs := s
	if abs[0] != '/' {
		if e.DirFdArg >= 0 {
			if dirfd := int32(c.Arg(int(e.DirFdArg))); dirfd != unix.AT_FDCWD {
				return
			}
		}
		abs = path.Join(t.FS.Cwd, abs)
	}

	switch kind, tail := filesystem.ClassifyProcEntry(path.Clean(abs), t.Pid); {
	case kind == filesystem.ProcCwd && tail == "":
		t.StagedLink = t.FS.Cwd
		t.StagedLinkEmul = true
		h.void(t, 0)
		return
	case kind == filesystem.ProcRoot && tail == "":
		t.StagedLink = "/"
		t.StagedLinkEmul = true
		h.void(t, 0)
		return
	case kind == filesystem.ProcExe && tail == "" && t.Exe != "":
		t.StagedLink = t.Exe
		t.StagedLinkEmul = true
		h.void(t, 0)
		return
	}

	if errno := h.translateArg(t, e.PathArg, e.DirFdArg, false); errno != 0 {
		h.void(t, errno)
		return
	}
	if host, err := h.FS.Translate(t.FS.Cwd, abs, false); err == nil {
		t.StagedLink = host
	}
}

// enterGetcwd voids the syscall; the result is emulated entirely from
// the tracer-side cwd at exit. The only kernel-visible behavior kept is
// the "cwd was removed underneath us" error.
func (h *Handler) enterGetcwd(t *ptracer.Tracee) {
	if _, err := h.FS.Translate(t.FS.Cwd, ".", true); err != nil {
		h.void(t, unix.ENOENT)
		return
	}
	h.void(t, 0)
}

// enterChdir validates the target and stages the canonical guest cwd;
// the syscall itself is voided since the kernel-side cwd plays no role
// once every path is translated.
func (h *Handler) enterChdir(t *ptracer.Tracee, e Entry) {
	c := &t.Ctx
	addr := uintptr(c.Arg(int(e.PathArg)))
	s, err := t.Mem.ReadString(addr, unix.PathMax)
	if err != nil {
		h.void(t, unix.EFAULT)
		return
	}
	if s == "" {
		h.void(t, unix.ENOENT)
		return
	}
	if s[0] == '/' {
		if rewritten, ok := filesystem.RewriteProcEntry(s, t.Pid, t.FS.Cwd, t.Exe); ok {
			s = rewritten
		}
	} else {
		if t.FS.Cwd == "/" {
			s = "/" + s
		} else {
			s = t.FS.Cwd + "/" + s
		}
	}

	canon, err := h.FS.Canonicalize(s, true)
	if err != nil {
		h.void(t, asErrno(err))
		return
	}
	host, err := h.FS.Substitute(canon, filesystem.Guest)
	if err != nil {
		h.void(t, asErrno(err))
		return
	}
	if errno := checkSearchableDir(host); errno != 0 {
		h.void(t, errno)
		return
	}
	t.StagedCwd = canon
	t.HasStaged = true
	h.void(t, 0)
}

// enterFchdir resolves the directory fd through /proc on the host,
// detranslates it and stages the result; like chdir it is fully
// emulated.
func (h *Handler) enterFchdir(t *ptracer.Tracee) {
	fd := int32(t.Ctx.Arg(0))
	host, err := os.Readlink(fmt.Sprintf("/proc/%d/fd/%d", t.Pid, fd))
	if err != nil {
		h.void(t, unix.EBADF)
		return
	}
	if errno := checkSearchableDir(host); errno != 0 {
		h.void(t, errno)
		return
	}
	// Ambiguity note: when several bindings share one host path the
	// detranslation picks the best binding, not necessarily the path
	// the fd was opened through; following the fd like the cwd would
	// require per-fd tracking.
	guest, ok := h.FS.Detranslate(host)
	if !ok {
		guest = host
	}
	t.StagedCwd = guest
	t.HasStaged = true
	h.void(t, 0)
}

func checkSearchableDir(host string) unix.Errno {
	info, err := os.Stat(host)
	if err != nil {
		return unix.ENOENT
	}
	if !info.IsDir() {
		return unix.ENOTDIR
	}
	if err := unix.Access(host, unix.X_OK); err != nil {
		return unix.EACCES
	}
	return 0
}

// enterExecve enters the loader substitution. execveat is supported in
// its execve-equivalent spellings; the fd-rooted forms are refused.
func (h *Handler) enterExecve(t *ptracer.Tracee, e Entry) {
	c := &t.Ctx
	pathArg, argvArg := int(e.PathArg), int(e.PathArg)+1
	if e.DirFdArg >= 0 {
		flags := c.Arg(int(e.FlagsArg))
		s, err := t.Mem.ReadString(uintptr(c.Arg(pathArg)), unix.PathMax)
		fdRelative := err == nil && (s == "" || s[0] != '/') &&
			int32(c.Arg(int(e.DirFdArg))) != unix.AT_FDCWD
		if flags&unix.AT_EMPTY_PATH != 0 || fdRelative {
			h.void(t, unix.ENOSYS)
			return
		}
	}
	if err := h.Loader.Enter(t, h.FS, pathArg, argvArg); err != nil {
		h.void(t, asErrno(err))
	}
}

// enterClone captures the flags so the clone event can decide fs-state
// sharing.
func (h *Handler) enterClone(t *ptracer.Tracee, sysno uint64) {
	t.CloneFlags = 0
	switch sysno {
	case unix.SYS_CLONE:
		t.CloneFlags = t.Ctx.Arg(0)
	case unix.SYS_CLONE3:
		// struct clone_args starts with the flags word
		if flags, err := t.Mem.ReadWord(uintptr(t.Ctx.Arg(0))); err == nil {
			t.CloneFlags = flags
		}
	}
}

// enterMount translates the target and, when it denotes a path rather
// than a filesystem type, the source.
func (h *Handler) enterMount(t *ptracer.Tracee) {
	c := &t.Ctx
	if src, err := t.Mem.ReadString(uintptr(c.Arg(0)), unix.PathMax); err == nil &&
		(len(src) > 0 && src[0] == '/') {
		if errno := h.translateArg(t, 0, -1, true); errno != 0 {
			h.void(t, errno)
			return
		}
	}
	if errno := h.translateArg(t, 1, -1, true); errno != 0 {
		h.void(t, errno)
	}
}
