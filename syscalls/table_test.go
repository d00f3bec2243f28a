package syscalls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// The dereference policies must agree with kernel semantics: the
// stat-like calls follow a final symlink, their l-variants and the
// name-operating calls do not.
func TestDerefPolicies(t *testing.T) {
	follow := map[uint64]bool{
		unix.SYS_NEWFSTATAT: true, // without AT_SYMLINK_NOFOLLOW
		unix.SYS_TRUNCATE:   true,
		unix.SYS_GETXATTR:   true,
		unix.SYS_LGETXATTR:  false,
		unix.SYS_UNLINKAT:   false,
		unix.SYS_MKDIRAT:    false,
		unix.SYS_SYMLINKAT:  false,
		unix.SYS_READLINKAT: false,
	}
	for sysno, wantFollow := range follow {
		e, ok := table[sysno]
		require.True(t, ok, "missing table entry for %d", sysno)
		if wantFollow {
			assert.NotEqual(t, DerefNever, e.Deref, "syscall %d must follow", sysno)
		} else {
			assert.Equal(t, DerefNever, e.Deref, "syscall %d must not follow", sysno)
		}
	}
}

func TestTableShape(t *testing.T) {
	// dirfd-relative entries name their dirfd argument
	for _, sysno := range []uint64{unix.SYS_OPENAT, unix.SYS_NEWFSTATAT, unix.SYS_UNLINKAT} {
		e := table[sysno]
		assert.GreaterOrEqual(t, e.DirFdArg, int8(0), "syscall %d", sysno)
		assert.Equal(t, int8(1), e.PathArg, "syscall %d", sysno)
	}

	// two-path entries translate both sides without dereferencing
	for _, sysno := range []uint64{unix.SYS_RENAMEAT, unix.SYS_RENAMEAT2} {
		e := table[sysno]
		assert.Equal(t, GroupPathIn2, e.Group)
		assert.Equal(t, DerefNever, e.Deref)
		assert.Equal(t, DerefNever, e.Deref2)
	}

	// the fs-state and exec specials are present
	for sysno, group := range map[uint64]Group{
		unix.SYS_GETCWD: GroupGetCwd,
		unix.SYS_CHDIR:  GroupChdir,
		unix.SYS_FCHDIR: GroupFchdir,
		unix.SYS_EXECVE: GroupExecve,
		unix.SYS_CLONE:  GroupClone,
		unix.SYS_MOUNT:  GroupMount,
	} {
		assert.Equal(t, group, table[sysno].Group, "syscall %d", sysno)
	}
}

func TestTracedSyscalls(t *testing.T) {
	names := TracedSyscalls()
	require.NotEmpty(t, names)
	assert.Contains(t, names, "openat")
	assert.Contains(t, names, "execve")
	assert.Contains(t, names, "getcwd")
	assert.Contains(t, names, "chdir")
}
