//go:build linux

package syscalls

import "golang.org/x/sys/unix"

// table classifies every path-aware syscall of the aarch64 ABI, which
// only carries the dirfd-relative spellings of the classic calls.
var table = map[uint64]Entry{
	// single path, final symlink followed
	unix.SYS_TRUNCATE:    pathIn(0, DerefAlways),
	unix.SYS_GETXATTR:    pathIn(0, DerefAlways),
	unix.SYS_LISTXATTR:   pathIn(0, DerefAlways),
	unix.SYS_SETXATTR:    pathIn(0, DerefAlways),
	unix.SYS_REMOVEXATTR: pathIn(0, DerefAlways),
	unix.SYS_STATFS:      pathIn(0, DerefAlways),
	unix.SYS_SWAPON:      pathIn(0, DerefAlways),
	unix.SYS_SWAPOFF:     pathIn(0, DerefAlways),
	unix.SYS_ACCT:        pathIn(0, DerefAlways),
	unix.SYS_CHROOT:      pathIn(0, DerefAlways),
	unix.SYS_UMOUNT2:     pathIn(0, DerefAlways),

	unix.SYS_INOTIFY_ADD_WATCH: pathIn(1, DerefAlways),

	// single path, final symlink kept
	unix.SYS_LGETXATTR:    pathIn(0, DerefNever),
	unix.SYS_LLISTXATTR:   pathIn(0, DerefNever),
	unix.SYS_LSETXATTR:    pathIn(0, DerefNever),
	unix.SYS_LREMOVEXATTR: pathIn(0, DerefNever),

	// dirfd-relative family
	unix.SYS_NEWFSTATAT:        pathInAt(0, 1, 3, DerefUnlessNoFollow),
	unix.SYS_STATX:             pathInAt(0, 1, 2, DerefUnlessNoFollow),
	unix.SYS_FCHOWNAT:          pathInAt(0, 1, 4, DerefUnlessNoFollow),
	unix.SYS_FCHMODAT:          pathInAt(0, 1, 3, DerefUnlessNoFollow),
	unix.SYS_FACCESSAT:         pathInAt(0, 1, -1, DerefAlways),
	unix.SYS_FACCESSAT2:        pathInAt(0, 1, 3, DerefUnlessNoFollow),
	unix.SYS_UTIMENSAT:         pathInAt(0, 1, 3, DerefUnlessNoFollow),
	unix.SYS_NAME_TO_HANDLE_AT: pathInAt(0, 1, 4, DerefIfFollow),
	unix.SYS_MKDIRAT:           pathInAt(0, 1, -1, DerefNever),
	unix.SYS_MKNODAT:           pathInAt(0, 1, -1, DerefNever),
	unix.SYS_UNLINKAT:          pathInAt(0, 1, -1, DerefNever),

	// open family
	unix.SYS_OPENAT:  {Group: GroupOpen, PathArg: 1, DirFdArg: 0, FlagsArg: 2, Deref: DerefOpen},
	unix.SYS_OPENAT2: {Group: GroupUnsupported},

	// two paths
	unix.SYS_LINKAT: {
		Group:   GroupPathIn2,
		PathArg: 1, DirFdArg: 0, FlagsArg: 4, Deref: DerefIfFollow,
		PathArg2: 3, DirFdArg2: 2, Deref2: DerefNever,
	},
	unix.SYS_RENAMEAT: {
		Group:   GroupPathIn2,
		PathArg: 1, DirFdArg: 0, FlagsArg: -1, Deref: DerefNever,
		PathArg2: 3, DirFdArg2: 2, Deref2: DerefNever,
	},
	unix.SYS_RENAMEAT2: {
		Group:   GroupPathIn2,
		PathArg: 1, DirFdArg: 0, FlagsArg: -1, Deref: DerefNever,
		PathArg2: 3, DirFdArg2: 2, Deref2: DerefNever,
	},
	unix.SYS_PIVOT_ROOT: pathIn2(0, 1, DerefAlways),

	unix.SYS_SYMLINKAT: {Group: GroupSymlink, PathArg: 2, DirFdArg: 1, FlagsArg: -1, Deref: DerefNever},

	// path out
	unix.SYS_READLINKAT: {
		Group:   GroupReadLink,
		PathArg: 1, DirFdArg: 0, FlagsArg: -1, Deref: DerefNever,
		OutArg: 2, LenArg: 3,
	},

	// fs-state
	unix.SYS_GETCWD: {Group: GroupGetCwd},
	unix.SYS_CHDIR:  {Group: GroupChdir, PathArg: 0, DirFdArg: -1, FlagsArg: -1},
	unix.SYS_FCHDIR: {Group: GroupFchdir},

	// special
	unix.SYS_EXECVE:   {Group: GroupExecve, PathArg: 0, DirFdArg: -1, FlagsArg: -1},
	unix.SYS_EXECVEAT: {Group: GroupExecve, PathArg: 1, DirFdArg: 0, FlagsArg: 4},
	unix.SYS_CLONE:    {Group: GroupClone},
	unix.SYS_CLONE3:   {Group: GroupClone},
	unix.SYS_MOUNT:    {Group: GroupMount},
}
