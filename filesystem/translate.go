package filesystem

import (
	"os"
	"path"
	"strings"

	"golang.org/x/sys/unix"
)

// Translate maps a guest path, as a tracee passed it to a syscall, into
// the host path the kernel should actually see. Relative paths are
// resolved against cwd (the tracee's guest working directory). The
// final component is dereferenced per derefFinal.
//
// A trailing slash (or a trailing "/.") forces directory semantics: the
// final symlink is dereferenced regardless of derefFinal, an existing
// non-directory yields ENOTDIR, and the slash is preserved on the host
// result so the kernel applies its own trailing-slash rules to syscalls
// on paths that do not exist yet.
func (fs *FileSystem) Translate(cwd, guestPath string, derefFinal bool) (string, error) {
	if guestPath == "" {
		return "", unix.ENOENT
	}
	p := guestPath
	if !path.IsAbs(p) {
		if cwd == "" {
			cwd = "/"
		}
		if cwd == "/" {
			p = "/" + p
		} else {
			p = cwd + "/" + p
		}
	}

	wantDir := impliesDirectory(p)
	if wantDir {
		derefFinal = true
	}

	canon, err := fs.Canonicalize(p, derefFinal)
	if err != nil {
		return "", err
	}
	host, err := fs.Substitute(canon, Guest)
	if err != nil {
		return "", err
	}

	if wantDir {
		if info, err := os.Stat(host); err == nil && !info.IsDir() {
			return "", unix.ENOTDIR
		}
		if host != "/" && strings.HasSuffix(p, "/") {
			host += "/"
		}
	}
	return host, nil
}

// impliesDirectory reports whether the raw path's spelling forces the
// final component to be a directory: a trailing "/", "/." or a final
// ".." all do.
func impliesDirectory(p string) bool {
	return strings.HasSuffix(p, "/") ||
		strings.HasSuffix(p, "/.") ||
		p == "." || p == ".." ||
		strings.HasSuffix(p, "/..")
}

// Detranslate maps a host path (typically one the kernel handed back to
// the tracee) into the guest view. The boolean result reports whether a
// translation applied; relative paths and host paths with no guest name
// are returned unchanged with ok=false.
func (fs *FileSystem) Detranslate(hostPath string) (string, bool) {
	if !path.IsAbs(hostPath) {
		return hostPath, false
	}
	p := path.Clean(hostPath)
	if guest, err := fs.Substitute(p, Host); err == nil {
		return guest, true
	}
	return hostPath, false
}

// DetranslateLink decides what a tracee should observe when it reads the
// symlink at referrerHost and the kernel produced value. Relative link
// values are kept verbatim (they stay meaningful inside their directory)
// and absolute values are rewritten into the guest view only when the
// link itself lies inside the guest rootfs, or when link and target live
// under the same binding (so that "-b /lib:/foo" shows "/lib/a -> /lib/b"
// as "/foo/a -> /foo/b").
func (fs *FileSystem) DetranslateLink(referrerHost, value string) string {
	if !path.IsAbs(value) {
		return value
	}
	if fs.belongsToGuestFS(referrerHost) {
		if guest, ok := fs.Detranslate(value); ok {
			return guest
		}
		return value
	}
	refBinding := fs.bestBinding(path.Clean(referrerHost), Host)
	valBinding := fs.bestBinding(path.Clean(value), Host)
	if refBinding != nil && valBinding != nil &&
		refBinding.Path(Host) == valBinding.Path(Host) {
		if guest, ok := fs.Detranslate(value); ok {
			return guest
		}
	}
	return value
}
