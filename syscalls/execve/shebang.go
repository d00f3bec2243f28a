package execve

import (
	"bytes"
	"os"

	"golang.org/x/sys/unix"

	"github.com/proot-me/proot-go/filesystem"
)

// binprmBufSize caps how much of a script's first line the kernel (and
// we) will look at.
const binprmBufSize = 256

// expanded is the outcome of shebang expansion: the host path of the
// ELF to actually map, plus the argv rebuild when a script was found.
type expanded struct {
	// HostPath is the ELF image to load.
	HostPath string
	// GuestPath is its canonical guest name, for AT_EXECFN and
	// /proc/self/exe.
	GuestPath string
	// ArgvPrefix is non-nil when a shebang was expanded: the
	// interpreter guest path and, if present, its single optional
	// argument. The caller rebuilds argv as
	// [prefix..., script-path-as-passed, original argv[1:]...].
	ArgvPrefix []string
}

// expand resolves guestPath to the executable host image, expanding at
// most one level of "#!" indirection: a script whose interpreter is
// itself a script is refused, matching the kernel.
func expand(fs *filesystem.FileSystem, cwd, guestPath string) (*expanded, error) {
	hostPath, err := translateExecutable(fs, cwd, guestPath)
	if err != nil {
		return nil, err
	}

	interp, arg, isScript, err := extractShebang(hostPath)
	if err != nil {
		return nil, err
	}
	out := &expanded{HostPath: hostPath}
	if isScript {
		out.ArgvPrefix = []string{interp}
		if arg != "" {
			out.ArgvPrefix = append(out.ArgvPrefix, arg)
		}
		out.HostPath, err = translateExecutable(fs, cwd, interp)
		if err != nil {
			return nil, err
		}
		// one level only
		if _, _, nested, err := extractShebang(out.HostPath); err != nil {
			return nil, err
		} else if nested {
			return nil, unix.ENOEXEC
		}
	}

	if guest, ok := fs.Detranslate(out.HostPath); ok {
		out.GuestPath = guest
	} else {
		out.GuestPath = out.HostPath
	}
	return out, nil
}

// translateExecutable maps a guest path to the host and checks it names
// an executable regular file. Directories yield EACCES like the kernel
// does for execve.
func translateExecutable(fs *filesystem.FileSystem, cwd, guestPath string) (string, error) {
	hostPath, err := fs.Translate(cwd, guestPath, true)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(hostPath)
	if err != nil {
		return "", unix.ENOENT
	}
	if info.IsDir() {
		return "", unix.EACCES
	}
	if err := unix.Access(hostPath, unix.X_OK); err != nil {
		return "", unix.EACCES
	}
	return hostPath, nil
}

// extractShebang parses a "#!" line per the kernel's rules: at most
// binprmBufSize bytes are considered, the line ends at the first LF (a
// trailing CR is dropped), leading spaces and tabs are skipped, the
// first whitespace-delimited token is the interpreter and the entire
// remainder, trimmed, forms one single optional argument. An embedded
// NUL refuses the script.
func extractShebang(hostPath string) (interp, arg string, isScript bool, err error) {
	f, err := os.Open(hostPath)
	if err != nil {
		return "", "", false, unix.ENOENT
	}
	defer f.Close()

	buf := make([]byte, binprmBufSize)
	n, _ := f.Read(buf)
	buf = buf[:n]
	if len(buf) < 2 || buf[0] != '#' || buf[1] != '!' {
		return "", "", false, nil
	}
	line := buf[2:]
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if bytes.IndexByte(line, 0) >= 0 {
		return "", "", false, unix.ENOEXEC
	}
	line = bytes.Trim(line, " \t")
	if len(line) == 0 {
		return "", "", false, unix.ENOEXEC
	}
	if i := bytes.IndexAny(line, " \t"); i >= 0 {
		interp = string(line[:i])
		arg = string(bytes.Trim(line[i:], " \t"))
	} else {
		interp = string(line)
	}
	return interp, arg, true, nil
}
