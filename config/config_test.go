package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proot-me/proot-go/filesystem"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadProfile(t *testing.T) {
	p := writeProfile(t, `
rootfs: /srv/guest
cwd: /home
bindings:
  - /etc:/media
  - /tmp
no_seccomp: true
rlimits:
  - cpu=10
`)
	c, err := LoadProfile(p)
	require.NoError(t, err)
	assert.Equal(t, "/srv/guest", c.RootFS)
	assert.Equal(t, "/home", c.Cwd)
	assert.Equal(t, []string{"/etc:/media", "/tmp"}, c.Binds)
	assert.True(t, c.NoSeccomp)
	assert.Equal(t, []string{"cpu=10"}, c.RLimits)
}

func TestLoadProfileErrors(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	p := writeProfile(t, "rootfs: [not, a, string]")
	_, err = LoadProfile(p)
	assert.Error(t, err)
}

func TestBuildFS(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "etc"), 0o755))

	c := &Config{
		RootFS:         root,
		Cwd:            "/etc",
		NoDefaultBinds: true,
	}
	fs, cwd, err := c.BuildFS()
	require.NoError(t, err)
	assert.Equal(t, "/etc", cwd)
	assert.Empty(t, fs.Bindings())

	host, err := fs.Translate("/", "/etc", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "etc"), host)
}

func TestBuildFSDefaultBindings(t *testing.T) {
	root := t.TempDir()
	c := &Config{RootFS: root}
	fs, _, err := c.BuildFS()
	require.NoError(t, err)

	// /proc exists on any Linux host, so the implicit binding is there
	var guests []string
	for _, b := range fs.Bindings() {
		guests = append(guests, b.Path(filesystem.Guest))
	}
	assert.Contains(t, guests, "/proc")
}

func TestBuildFSDefaultHomeBinding(t *testing.T) {
	root := t.TempDir()
	home := t.TempDir()
	t.Setenv("HOME", home)

	fs, _, err := (&Config{RootFS: root}).BuildFS()
	require.NoError(t, err)

	var guests []string
	for _, b := range fs.Bindings() {
		guests = append(guests, b.Path(filesystem.Guest))
	}
	assert.Contains(t, guests, home)

	// no $HOME, no binding
	t.Setenv("HOME", "")
	fs, _, err = (&Config{RootFS: root}).BuildFS()
	require.NoError(t, err)
	for _, b := range fs.Bindings() {
		assert.NotEqual(t, home, b.Path(filesystem.Guest))
	}
}

func TestBuildFSUserBindingShadowsDefault(t *testing.T) {
	root := t.TempDir()
	hostDir := t.TempDir()
	c := &Config{
		RootFS: root,
		Binds:  []string{hostDir + ":/tmp"},
	}
	fs, _, err := c.BuildFS()
	require.NoError(t, err)

	n := 0
	for _, b := range fs.Bindings() {
		if b.Path(filesystem.Guest) == "/tmp" {
			n++
		}
	}
	assert.Equal(t, 1, n, "user /tmp binding must suppress the implicit one")
}

func TestBuildFSErrors(t *testing.T) {
	// rootfs must exist
	_, _, err := (&Config{RootFS: "/does/not/exist"}).BuildFS()
	assert.Error(t, err)

	root := t.TempDir()

	// binding host path must exist
	_, _, err = (&Config{RootFS: root, Binds: []string{"/does/not/exist:/x"}}).BuildFS()
	assert.Error(t, err)

	// cwd must resolve inside the guest
	_, _, err = (&Config{RootFS: root, Cwd: "/nope", NoDefaultBinds: true}).BuildFS()
	assert.Error(t, err)

	// cwd must be absolute
	_, _, err = (&Config{RootFS: root, Cwd: "etc"}).BuildFS()
	assert.Error(t, err)
}

func TestParseBind(t *testing.T) {
	etc := "/etc"
	b, err := parseBind(etc)
	require.NoError(t, err)
	assert.Equal(t, "/etc", b.Path(filesystem.Host))
	assert.Equal(t, "/etc", b.Path(filesystem.Guest))
	assert.False(t, b.NeedsSubstitution())

	b, err = parseBind("/etc:/media")
	require.NoError(t, err)
	assert.Equal(t, "/media", b.Path(filesystem.Guest))
	assert.True(t, b.NeedsSubstitution())

	_, err = parseBind(":/media")
	assert.Error(t, err)
	_, err = parseBind("/etc:relative")
	assert.Error(t, err)
}
