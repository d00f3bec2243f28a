// Package syscalls implements the per-syscall entry and exit
// translators. A data table classifies each syscall by an integer group
// tag and declares which arguments carry paths and how their final
// component dereferences; a closed switch over the tag does the rest.
package syscalls

// Group tags the handler family of a syscall.
type Group int

// Handler families.
const (
	// GroupIgnored: no filesystem relevance.
	GroupIgnored Group = iota
	// GroupPathIn: one path-in argument, optionally dirfd-relative.
	GroupPathIn
	// GroupPathIn2: two path-in arguments (link, rename, pivot_root),
	// optionally dirfd-relative.
	GroupPathIn2
	// GroupOpen: path-in whose dereference hangs on O_NOFOLLOW.
	GroupOpen
	// GroupReadLink: path-in plus a path-out buffer rewritten at exit.
	GroupReadLink
	// GroupGetCwd: fully emulated from the tracee's guest cwd.
	GroupGetCwd
	// GroupChdir / GroupFchdir: fully emulated; they only move the
	// tracer-side cwd.
	GroupChdir
	GroupFchdir
	// GroupExecve: enters the loader substitution machinery.
	GroupExecve
	// GroupClone: captures clone flags for fs-state inheritance.
	GroupClone
	// GroupMount: the target is translated, and the source too when it
	// is an absolute path rather than a filesystem name.
	GroupMount
	// GroupSymlink: only the linkpath argument is a path; the target
	// is content and stays untouched.
	GroupSymlink
	// GroupUnsupported: path-carrying syscalls this tracer rejects
	// with ENOSYS so callers take their fallback paths (openat2).
	GroupUnsupported
)

// Deref is the dereference policy for a path argument's final
// component.
type Deref int

// Dereference policies.
const (
	// DerefAlways follows a final symlink (stat, open without
	// O_NOFOLLOW).
	DerefAlways Deref = iota
	// DerefNever keeps a final symlink (lstat, unlink, rename).
	DerefNever
	// DerefUnlessNoFollow follows unless AT_SYMLINK_NOFOLLOW is set.
	DerefUnlessNoFollow
	// DerefIfFollow keeps the symlink unless AT_SYMLINK_FOLLOW is set.
	DerefIfFollow
	// DerefOpen follows unless O_NOFOLLOW is set.
	DerefOpen
)

// Entry declares the argument roles of one syscall.
type Entry struct {
	Group Group

	// PathArg is the index of the (first) path argument.
	PathArg int8
	// DirFdArg is the index of the dirfd rooting a relative path, or
	// -1 when the syscall roots at the cwd.
	DirFdArg int8
	// FlagsArg is the index of the flags argument consulted by the
	// dereference policy, or -1.
	FlagsArg int8
	// Deref is the final-component policy for PathArg.
	Deref Deref

	// Second path argument (GroupPathIn2 only).
	PathArg2  int8
	DirFdArg2 int8
	Deref2    Deref

	// Path-out buffer and its size argument (GroupReadLink only).
	OutArg int8
	LenArg int8
}

func pathIn(arg int8, deref Deref) Entry {
	return Entry{Group: GroupPathIn, PathArg: arg, DirFdArg: -1, FlagsArg: -1, Deref: deref}
}

func pathInAt(dirfd, arg, flags int8, deref Deref) Entry {
	return Entry{Group: GroupPathIn, PathArg: arg, DirFdArg: dirfd, FlagsArg: flags, Deref: deref}
}

func pathIn2(arg1, arg2 int8, deref Deref) Entry {
	return Entry{
		Group: GroupPathIn2,
		PathArg: arg1, DirFdArg: -1, FlagsArg: -1, Deref: deref,
		PathArg2: arg2, DirFdArg2: -1, Deref2: deref,
	}
}
