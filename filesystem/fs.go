// Package filesystem implements the guest/host path translation used to
// re-root tracees into a guest filesystem tree with per-path bindings.
package filesystem

import (
	"golang.org/x/sys/unix"
)

// FileSystem holds the immutable binding configuration shared by all
// tracees: the guest root and the ordered list of bindings. It is built
// once at startup and never mutated afterwards, so it is safe to share
// without locking. Per-tracee state (the working directory) lives with
// the tracee and is passed into Translate explicitly.
type FileSystem struct {
	// bindings in insertion order, not including the root binding
	bindings []*Binding
	// the root binding, mapping "/" (guest) to root (host)
	rootBinding *Binding
	// canonical host path of the guest root
	root string
}

// New creates a FileSystem rooted at the given canonical host directory.
func New(root string) *FileSystem {
	if root == "" {
		root = "/"
	}
	b := NewBinding(root, "/")
	return &FileSystem{
		rootBinding: b,
		root:        b.Path(Host),
	}
}

// Root returns the canonical host path of the guest root.
func (fs *FileSystem) Root() string {
	return fs.root
}

// AddBinding appends a binding to the lookup list. Bindings are searched
// in insertion order; among the bindings whose prefix matches a path the
// longest prefix wins, earlier insertion breaking ties.
func (fs *FileSystem) AddBinding(b *Binding) {
	fs.bindings = append(fs.bindings, b)
}

// Bindings returns the configured bindings, root binding excluded.
func (fs *FileSystem) Bindings() []*Binding {
	return fs.bindings
}

// belongsToGuestFS reports whether a host path lies inside the guest
// rootfs directory.
func (fs *FileSystem) belongsToGuestFS(hostPath string) bool {
	return HasPathPrefix(hostPath, fs.root)
}

// bestBinding selects the binding used to translate p from the given
// side, or nil when no binding applies. Guest side: the longest matching
// guest prefix wins. Host side: the longest matching host prefix wins,
// longer guest paths breaking ties, and paths inside the guest rootfs
// only ever match the root binding (otherwise a binding whose host side
// is a prefix of the rootfs would shadow rootfs contents).
func (fs *FileSystem) bestBinding(p string, from Side) *Binding {
	var best *Binding
	better := func(b *Binding) bool {
		if best == nil {
			return true
		}
		if l, bl := len(b.Path(from)), len(best.Path(from)); l != bl {
			return l > bl
		}
		if from == Host {
			return len(b.Path(Guest)) > len(best.Path(Guest))
		}
		return false
	}
	for _, b := range fs.bindings {
		if !HasPathPrefix(p, b.Path(from)) {
			continue
		}
		if from == Host && fs.root != "/" && fs.belongsToGuestFS(p) {
			continue
		}
		if better(b) {
			best = b
		}
	}
	if best == nil && HasPathPrefix(p, fs.rootBinding.Path(from)) {
		best = fs.rootBinding
	}
	return best
}

// Substitute rewrites the longest matching binding prefix of a canonical
// path from one side to the other. It fails with ENOENT when no binding
// covers the path (a host path outside both the rootfs and all bindings
// has no name in the guest view).
func (fs *FileSystem) Substitute(p string, from Side) (string, error) {
	b := fs.bestBinding(p, from)
	if b == nil {
		return "", unix.ENOENT
	}
	out, ok := b.SubstitutePrefix(p, from)
	if !ok {
		return "", unix.ENOENT
	}
	return out, nil
}
