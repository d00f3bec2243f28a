package filesystem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// testRootfs builds a small rootfs fixture:
//
//	bin/sh        regular file
//	bin/true      regular file
//	etc/passwd    regular file
//	lib/libc.so   regular file
//	lib64         symlink -> lib
//	loop          symlink -> loop
//	usr/bin/env   regular file
func testRootfs(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"bin", "etc", "lib", "usr/bin"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}
	for _, file := range []string{"bin/sh", "bin/true", "etc/passwd", "lib/libc.so", "usr/bin/env"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, file), []byte("x"), 0o755))
	}
	require.NoError(t, os.Symlink("lib", filepath.Join(root, "lib64")))
	require.NoError(t, os.Symlink("loop", filepath.Join(root, "loop")))
	return root
}

func TestBestBindingOrder(t *testing.T) {
	fs := New("/home/user")

	// no user binding: everything falls back to the root binding
	b := fs.bestBinding("/bin", Guest)
	require.NotNil(t, b)
	assert.Equal(t, "/", b.Path(Guest))

	fs.AddBinding(NewBinding("/etc", "/media"))
	b = fs.bestBinding("/media/folder", Guest)
	require.NotNil(t, b)
	assert.Equal(t, "/media", b.Path(Guest))

	b = fs.bestBinding("/etc/folder", Host)
	require.NotNil(t, b)
	assert.Equal(t, "/media", b.Path(Guest))

	// longest guest prefix wins over a shorter, earlier one
	fs.AddBinding(NewBinding("/srv/deep", "/media/folder"))
	b = fs.bestBinding("/media/folder/x", Guest)
	require.NotNil(t, b)
	assert.Equal(t, "/media/folder", b.Path(Guest))
}

func TestBestBindingGuestFSGuard(t *testing.T) {
	// A binding whose host side contains the rootfs must not shadow
	// paths inside the rootfs when translating host->guest.
	fs := New("/usr/local/slackware")
	fs.AddBinding(NewBinding("/usr", "/location"))

	b := fs.bestBinding("/usr/local/slackware/bin", Host)
	require.NotNil(t, b)
	assert.Equal(t, "/", b.Path(Guest))
}

func TestSubstitute(t *testing.T) {
	fs := New("/home/user")
	fs.AddBinding(NewBinding("/etc", "/media"))

	got, err := fs.Substitute("/media/folder/sub", Guest)
	require.NoError(t, err)
	assert.Equal(t, "/etc/folder/sub", got)

	got, err = fs.Substitute("/etc/folder/sub", Guest)
	require.NoError(t, err)
	assert.Equal(t, "/home/user/etc/folder/sub", got)

	got, err = fs.Substitute("/etc/folder/sub", Host)
	require.NoError(t, err)
	assert.Equal(t, "/media/folder/sub", got)

	// outside of the rootfs and all bindings: no guest name
	_, err = fs.Substitute("/var/log", Host)
	assert.ErrorIs(t, err, unix.ENOENT)
}

func TestCanonicalizeNormalPath(t *testing.T) {
	root := testRootfs(t)
	fs := New(root)

	got, err := fs.Canonicalize("/bin/./../bin//sh", false)
	require.NoError(t, err)
	assert.Equal(t, "/bin/sh", got)

	got, err = fs.Canonicalize("/./../../.././../.", false)
	require.NoError(t, err)
	assert.Equal(t, "/", got)

	// path traversal cannot escape the root
	got, err = fs.Canonicalize("/../bin", false)
	require.NoError(t, err)
	assert.Equal(t, "/bin", got)
}

func TestCanonicalizeMissing(t *testing.T) {
	root := testRootfs(t)
	fs := New(root)

	// a missing final component is tolerated (open may create it)
	got, err := fs.Canonicalize("/etc/brand-new", false)
	require.NoError(t, err)
	assert.Equal(t, "/etc/brand-new", got)

	// a missing intermediate component is not
	_, err = fs.Canonicalize("/impossible/path", false)
	assert.ErrorIs(t, err, unix.ENOENT)
}

func TestCanonicalizeSymlink(t *testing.T) {
	root := testRootfs(t)
	fs := New(root)

	// final symlink kept when not dereferencing, resolved when asked
	got, err := fs.Canonicalize("/lib64", false)
	require.NoError(t, err)
	assert.Equal(t, "/lib64", got)

	got, err = fs.Canonicalize("/lib64", true)
	require.NoError(t, err)
	assert.Equal(t, "/lib", got)

	// intermediate symlinks always resolve
	got, err = fs.Canonicalize("/lib64/libc.so", false)
	require.NoError(t, err)
	assert.Equal(t, "/lib/libc.so", got)
}

func TestCanonicalizeSymlinkLoop(t *testing.T) {
	root := testRootfs(t)
	fs := New(root)

	_, err := fs.Canonicalize("/loop", true)
	assert.ErrorIs(t, err, unix.ELOOP)
}

func TestCanonicalizeThroughFile(t *testing.T) {
	root := testRootfs(t)
	fs := New(root)

	_, err := fs.Canonicalize("/etc/passwd/sub", false)
	assert.ErrorIs(t, err, unix.ENOTDIR)
}
