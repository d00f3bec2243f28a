package seccomp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestBuildFilter(t *testing.T) {
	filter, err := BuildFilter([]string{"openat", "execve", "chdir"})
	require.NoError(t, err)
	require.NotEmpty(t, filter)

	prog := filter.SockFprog()
	assert.EqualValues(t, len(filter), prog.Len)
}

func TestBuildFilterUnknownName(t *testing.T) {
	_, err := BuildFilter([]string{"not_a_syscall"})
	assert.Error(t, err)
}

func TestSyscallName(t *testing.T) {
	assert.Equal(t, "getcwd", SyscallName(unix.SYS_GETCWD))
	assert.Equal(t, "999999", SyscallName(999999))
}
