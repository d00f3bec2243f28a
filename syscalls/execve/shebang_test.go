package execve

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func writeScript(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "script")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o755))
	return p
}

func TestExtractShebang(t *testing.T) {
	interp, arg, isScript, err := extractShebang(writeScript(t, "#!/bin/sh\nexit 0\n"))
	require.NoError(t, err)
	assert.True(t, isScript)
	assert.Equal(t, "/bin/sh", interp)
	assert.Equal(t, "", arg)
}

func TestExtractShebangSingleArgument(t *testing.T) {
	// everything after the interpreter is one single argument
	interp, arg, isScript, err := extractShebang(writeScript(t, "#! /bin/awk -v x=1 -f\n"))
	require.NoError(t, err)
	assert.True(t, isScript)
	assert.Equal(t, "/bin/awk", interp)
	assert.Equal(t, "-v x=1 -f", arg)
}

func TestExtractShebangCRLF(t *testing.T) {
	interp, arg, isScript, err := extractShebang(writeScript(t, "#!/bin/echo 123\r\nrest"))
	require.NoError(t, err)
	assert.True(t, isScript)
	assert.Equal(t, "/bin/echo", interp)
	assert.Equal(t, "123", arg)
}

func TestExtractShebangNotAScript(t *testing.T) {
	_, _, isScript, err := extractShebang(writeScript(t, "\x7fELF not really"))
	require.NoError(t, err)
	assert.False(t, isScript)
}

func TestExtractShebangRejects(t *testing.T) {
	// empty interpreter
	_, _, _, err := extractShebang(writeScript(t, "#!   \n"))
	assert.ErrorIs(t, err, unix.ENOEXEC)

	// embedded NUL
	_, _, _, err = extractShebang(writeScript(t, "#!/bin/sh\x00 -x\n"))
	assert.ErrorIs(t, err, unix.ENOEXEC)
}

func TestExtractShebangLengthCap(t *testing.T) {
	// the first line is considered only up to binprmBufSize bytes
	long := "#!/bin/" + strings.Repeat("a", binprmBufSize)
	interp, _, isScript, err := extractShebang(writeScript(t, long+"\n"))
	require.NoError(t, err)
	assert.True(t, isScript)
	assert.LessOrEqual(t, len(interp), binprmBufSize)
}
