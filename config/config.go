// Package config holds the static filesystem policy of one run: the
// guest root, the ordered binding list, the initial guest cwd and the
// knobs of the tracer. A profile file (YAML) can seed it; command-line
// flags override scalar profile values field by field, while --bind and
// --rlimit entries are appended to the profile's lists.
package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/proot-me/proot-go/filesystem"
)

// Config is the policy as specified by the user.
type Config struct {
	// RootFS is the guest root directory on the host.
	RootFS string `yaml:"rootfs"`
	// Cwd is the initial guest working directory.
	Cwd string `yaml:"cwd"`
	// Binds are "HOST" or "HOST:GUEST" mappings, insertion order
	// significant.
	Binds []string `yaml:"bindings"`
	// NoDefaultBinds suppresses the implicit host bindings.
	NoDefaultBinds bool `yaml:"no_default_bindings"`
	// NoSeccomp disables the seccomp acceleration.
	NoSeccomp bool `yaml:"no_seccomp"`
	// KillOnExit makes tracees die with the tracer.
	KillOnExit bool `yaml:"kill_on_exit"`
	// RLimits are "NAME=SOFT[:HARD]" limits for the root tracee.
	RLimits []string `yaml:"rlimits"`
	// Loader overrides the bootstrap loader location.
	Loader string `yaml:"loader"`
}

// defaultBinds mirror proot's implicit bindings: the pieces of host
// state a guest needs to resolve names, reach devices and share /tmp,
// plus $HOME when the environment carries one. Missing host paths are
// skipped silently.
func defaultBinds() []string {
	binds := []string{
		"/etc/host.conf",
		"/etc/hosts",
		"/etc/nsswitch.conf",
		"/etc/resolv.conf",
		"/dev",
		"/sys",
		"/proc",
		"/tmp",
	}
	if home := os.Getenv("HOME"); path.IsAbs(home) {
		binds = append(binds, path.Clean(home))
	}
	return binds
}

// LoadProfile reads a YAML profile.
func LoadProfile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &c, nil
}

// BuildFS validates the policy and materializes the translation state:
// the rootfs is canonicalized, user bindings are resolved in insertion
// order, then the implicit ones (unless disabled or shadowed), and the
// initial cwd is checked to resolve inside the guest.
func (c *Config) BuildFS() (*filesystem.FileSystem, string, error) {
	rootfs := c.RootFS
	if rootfs == "" {
		rootfs = "/"
	}
	rootfs, err := canonicalHost(rootfs)
	if err != nil {
		return nil, "", fmt.Errorf("rootfs %q: %w", c.RootFS, err)
	}
	if info, err := os.Stat(rootfs); err != nil || !info.IsDir() {
		return nil, "", fmt.Errorf("rootfs %q is not a directory", c.RootFS)
	}
	fs := filesystem.New(rootfs)

	bound := map[string]bool{}
	for _, spec := range c.Binds {
		b, err := parseBind(spec)
		if err != nil {
			return nil, "", err
		}
		fs.AddBinding(b)
		bound[b.Path(filesystem.Guest)] = true
	}
	if !c.NoDefaultBinds {
		for _, host := range defaultBinds() {
			if bound[host] {
				continue
			}
			if _, err := os.Lstat(host); err != nil {
				continue
			}
			fs.AddBinding(filesystem.NewBinding(host, host))
		}
	}

	cwd := c.Cwd
	if cwd == "" {
		cwd = "/"
	}
	if !path.IsAbs(cwd) {
		return nil, "", fmt.Errorf("cwd %q is not absolute", c.Cwd)
	}
	canon, err := fs.Canonicalize(path.Clean(cwd), true)
	if err != nil {
		return nil, "", fmt.Errorf("cwd %q does not resolve in the guest: %w", c.Cwd, err)
	}
	if host, err := fs.Substitute(canon, filesystem.Guest); err != nil {
		return nil, "", fmt.Errorf("cwd %q does not resolve in the guest: %w", c.Cwd, err)
	} else if info, err := os.Stat(host); err != nil || !info.IsDir() {
		return nil, "", fmt.Errorf("cwd %q is not a guest directory", c.Cwd)
	}
	return fs, canon, nil
}

// parseBind reads "HOST" or "HOST:GUEST"; the short form binds the host
// path at the same guest path.
func parseBind(spec string) (*filesystem.Binding, error) {
	host, guest, ok := strings.Cut(spec, ":")
	if !ok {
		guest = host
	}
	if host == "" || guest == "" {
		return nil, fmt.Errorf("binding %q: empty path", spec)
	}
	host, err := canonicalHost(host)
	if err != nil {
		return nil, fmt.Errorf("binding %q: host path: %w", spec, err)
	}
	if _, err := os.Lstat(host); err != nil {
		return nil, fmt.Errorf("binding %q: host path does not exist", spec)
	}
	if !path.IsAbs(guest) {
		return nil, fmt.Errorf("binding %q: guest path is not absolute", spec)
	}
	return filesystem.NewBinding(host, path.Clean(guest)), nil
}

// canonicalHost resolves a host path to canonical absolute form.
func canonicalHost(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}
