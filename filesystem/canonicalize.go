package filesystem

import (
	"os"
	"path"
	"strings"

	"golang.org/x/sys/unix"
)

// maxSymlinks caps symlink dereferences during one canonicalization,
// matching the kernel's resolution limit.
const maxSymlinks = 40

// Canonicalize resolves an absolute guest path into its canonical guest
// form: "." and ".." are removed and every intermediate symlink is
// dereferenced against the host view of the bindings. The final
// component is dereferenced only when derefFinal is set, as required per
// syscall (stat follows, lstat does not).
//
// Intermediate components must exist and be directories (or symlinks to
// directories); the final component may be missing so that creating
// syscalls (open with O_CREAT, mkdir, mknod...) can translate their
// destination.
func (fs *FileSystem) Canonicalize(userPath string, derefFinal bool) (string, error) {
	if !path.IsAbs(userPath) {
		return "", unix.EINVAL
	}
	budget := maxSymlinks
	return fs.canonicalize(userPath, derefFinal, &budget)
}

func (fs *FileSystem) canonicalize(userPath string, derefFinal bool, budget *int) (string, error) {
	guest := "/"
	comps := strings.Split(userPath, "/")
	// a trailing slash leaves empty components behind the real final one
	lastIdx := len(comps) - 1
	for lastIdx > 0 && comps[lastIdx] == "" {
		lastIdx--
	}
	for i, comp := range comps {
		last := i == lastIdx
		switch comp {
		case "", ".":
			continue
		case "..":
			guest = path.Dir(guest)
			continue
		}

		next := guest
		if next == "/" {
			next += comp
		} else {
			next += "/" + comp
		}

		hostPath, err := fs.Substitute(next, Guest)
		if err != nil {
			return "", err
		}
		info, err := os.Lstat(hostPath)
		if err != nil {
			if last {
				// The final component may not exist yet; the kernel
				// decides whether that is an error for this syscall.
				return next, nil
			}
			return "", unix.ENOENT
		}

		mode := info.Mode()
		switch {
		case mode.IsDir():
			guest = next

		case mode&os.ModeSymlink != 0:
			if last && !derefFinal {
				return next, nil
			}
			if *budget <= 0 {
				return "", unix.ELOOP
			}
			*budget--
			target, err := os.Readlink(hostPath)
			if err != nil {
				return "", unix.ENOENT
			}
			// Splice the link value in place of the current component
			// and restart the walk with the remaining components
			// appended.
			var respliced string
			if path.IsAbs(target) {
				respliced = target
			} else if guest == "/" {
				respliced = "/" + target
			} else {
				respliced = guest + "/" + target
			}
			if rest := strings.Join(comps[i+1:], "/"); rest != "" {
				respliced += "/" + rest
			}
			return fs.canonicalize(respliced, derefFinal, budget)

		default:
			// Neither a directory nor a symlink: fine as the final
			// component, a dead end otherwise.
			if !last {
				return "", unix.ENOTDIR
			}
			guest = next
		}
	}
	return guest, nil
}
