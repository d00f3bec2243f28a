package filesystem

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestTranslateWithRoot(t *testing.T) {
	root := testRootfs(t)
	fs := New(root)

	got, err := fs.Translate("/", "/bin/sh", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "bin/sh"), got)

	// relative paths resolve against the guest cwd
	got, err = fs.Translate("/bin", "./true", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "bin/true"), got)

	got, err = fs.Translate("/bin", "../etc/passwd", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "etc/passwd"), got)
}

func TestTranslateBinding(t *testing.T) {
	root := testRootfs(t)
	fs := New(root)
	fs.AddBinding(NewBinding("/etc", "/media"))

	got, err := fs.Translate("/", "/media/hostname", false)
	require.NoError(t, err)
	assert.Equal(t, "/etc/hostname", got)

	// substitution happens only on the final canonical path: "/media/.."
	// walks back to the guest root, not to the host "/"
	got, err = fs.Translate("/", "/media/../bin", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "bin"), got)
}

func TestTranslateTrailingSlash(t *testing.T) {
	root := testRootfs(t)
	fs := New(root)

	// trailing slash on an existing non-directory
	_, err := fs.Translate("/", "/bin/sh/", false)
	assert.ErrorIs(t, err, unix.ENOTDIR)

	// trailing slash on a symlink to a directory forces dereference
	got, err := fs.Translate("/", "/lib64/", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "lib")+"/", got)

	// trailing slash is preserved for paths that do not exist yet so the
	// kernel can apply its own semantics (mkdir succeeds, open fails)
	got, err = fs.Translate("/", "/etc/newdir/", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "etc/newdir")+"/", got)
}

func TestTranslateEmptyPath(t *testing.T) {
	fs := New(testRootfs(t))
	_, err := fs.Translate("/", "", false)
	assert.ErrorIs(t, err, unix.ENOENT)
}

func TestDetranslate(t *testing.T) {
	root := testRootfs(t)
	fs := New(root)
	fs.AddBinding(NewBinding("/etc", "/tmp"))

	got, ok := fs.Detranslate(filepath.Join(root, "bin/sh"))
	assert.True(t, ok)
	assert.Equal(t, "/bin/sh", got)

	got, ok = fs.Detranslate(root)
	assert.True(t, ok)
	assert.Equal(t, "/", got)

	got, ok = fs.Detranslate("/etc/passwd")
	assert.True(t, ok)
	assert.Equal(t, "/tmp/passwd", got)

	// relative paths are never detranslated
	_, ok = fs.Detranslate("relative/path")
	assert.False(t, ok)
}

func TestDetranslateSymmetric(t *testing.T) {
	fs := New(testRootfs(t))
	fs.AddBinding(NewBinding("/etc", "/etc"))

	got, ok := fs.Detranslate("/etc/guest/something")
	assert.True(t, ok)
	assert.Equal(t, "/etc/guest/something", got)
}

func TestDetranslateLink(t *testing.T) {
	root := testRootfs(t)
	fs := New(root)
	fs.AddBinding(NewBinding("/lib", "/foo"))

	// relative link values stay verbatim
	assert.Equal(t, "lib", fs.DetranslateLink(filepath.Join(root, "lib64"), "lib"))

	// a link inside the rootfs pointing inside the rootfs detranslates
	assert.Equal(t, "/bin/sh",
		fs.DetranslateLink(filepath.Join(root, "bin/x"), filepath.Join(root, "bin/sh")))

	// a link inside a binding pointing into the same binding follows it
	assert.Equal(t, "/foo/b", fs.DetranslateLink("/lib/a", "/lib/b"))

	// a link inside a binding pointing elsewhere on the host is kept
	assert.Equal(t, "/var/lib/x", fs.DetranslateLink("/lib/a", "/var/lib/x"))
}

func TestRewriteProcEntry(t *testing.T) {
	got, ok := RewriteProcEntry("/proc/self/cwd/sub", 42, "/etc", "/bin/sh")
	assert.True(t, ok)
	assert.Equal(t, "/etc/sub", got)

	got, ok = RewriteProcEntry("/proc/42/cwd", 42, "/etc", "/bin/sh")
	assert.True(t, ok)
	assert.Equal(t, "/etc", got)

	got, ok = RewriteProcEntry("/proc/self/root", 42, "/etc", "/bin/sh")
	assert.True(t, ok)
	assert.Equal(t, "/", got)

	got, ok = RewriteProcEntry("/proc/self/exe", 42, "/etc", "/bin/sh")
	assert.True(t, ok)
	assert.Equal(t, "/bin/sh", got)

	// another process's entries are not rewritten
	_, ok = RewriteProcEntry("/proc/41/cwd", 42, "/etc", "/bin/sh")
	assert.False(t, ok)

	_, ok = RewriteProcEntry("/proc/self/status", 42, "/etc", "/bin/sh")
	assert.False(t, ok)
}
