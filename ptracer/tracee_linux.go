package ptracer

import (
	"golang.org/x/sys/unix"
)

// Status is the per-tracee position in the ptrace stop cycle.
type Status int

// Tracee statuses. Transitions only happen on stop events observed by
// the event loop.
const (
	// StatusAllocated: the record exists (the parent's clone event or
	// the child's initial stop arrived) but tracing has not started.
	StatusAllocated Status = iota
	// StatusSysEnter: a syscall-entry stop was handled; the matching
	// exit stop is expected next.
	StatusSysEnter
	// StatusSysExit: the syscall-exit stop was handled.
	StatusSysExit
	// StatusExited: the process-exit event was delivered; the record is
	// kept only until reaped.
	StatusExited
)

func (s Status) String() string {
	switch s {
	case StatusAllocated:
		return "allocated"
	case StatusSysEnter:
		return "sysenter"
	case StatusSysExit:
		return "sysexit"
	case StatusExited:
		return "exited"
	}
	return "invalid"
}

// FSState is the filesystem state a tracee carries: the guest working
// directory. Siblings created with CLONE_FS share one FSState value, so
// a chdir by any of them is observed by all; other children get their
// own copy. Only the event loop mutates it, so no locking applies.
type FSState struct {
	Cwd string
}

// scratch is a region mapped inside the tracee to stage tracer-written
// strings. It is bump-allocated per syscall and never unmapped until
// the tracee exits.
type scratch struct {
	addr uintptr
	size int
	off  int
}

// Tracee is the tracer-side record of one traced process.
type Tracee struct {
	Pid    int
	Status Status
	Parent int

	// FS is nil until the tracee is adopted by its creator's clone
	// event (the child's first stop can arrive before the parent's).
	FS *FSState

	Ctx Context
	Mem Mem

	// Exe is the guest path of the last successfully exec'd image, as
	// reported by /proc/self/exe. NewExe stages the value between
	// execve entry and its successful exit.
	Exe    string
	NewExe string

	// InLoader is set while the tracee runs the bootstrap loader after
	// an execve; no path translation applies in that window.
	InLoader bool

	// StagedCwd carries the guest cwd computed at chdir/fchdir entry,
	// committed to FS at syscall-exit only when the entry validation
	// succeeded (the syscall itself is voided).
	StagedCwd string
	HasStaged bool

	// Voided marks that the entry handler cancelled the syscall; the
	// exit handler plants -EnterErr (or an emulated success) instead
	// of whatever the kernel returned for the voided number.
	Voided bool

	// EnterErr records a translation failure at syscall-entry; the
	// syscall was voided and the exit handler plants -errno.
	EnterErr unix.Errno

	// StagedLink carries readlink bookkeeping from entry to exit:
	// either the translated host path of the link (so the kernel's
	// result can be detranslated) or, with StagedLinkEmul, the value
	// emulated for the magic /proc entries.
	StagedLink     string
	StagedLinkEmul bool

	// CloneFlags captures the flags argument seen at a clone entry so
	// the later fork/vfork/clone event can decide fs-state sharing.
	CloneFlags uint64

	// PendingExec carries the execve bookkeeping between entry, the
	// exec event and the syscall-exit stop. Owned by the handler layer.
	PendingExec any

	scratch      scratch
	traced       bool
	pendingStart bool
	afterExec    bool
}

// NewTracee allocates the record for a freshly observed process.
func NewTracee(pid int) *Tracee {
	return &Tracee{
		Pid: pid,
		Ctx: Context{Pid: pid},
		Mem: Mem{Pid: pid},
	}
}

// ResetScratchCursor rewinds the bump allocator; called at each
// syscall-entry since scratch contents are volatile across syscalls.
func (t *Tracee) ResetScratchCursor() {
	t.scratch.off = 0
}

// DropScratch forgets the scratch mapping; called when an execve wipes
// the address space.
func (t *Tracee) DropScratch() {
	t.scratch = scratch{}
}
