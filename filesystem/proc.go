package filesystem

import (
	"strconv"
	"strings"
)

// ProcSelfKind classifies the magic /proc entries whose link targets the
// kernel would otherwise resolve in the host view.
type ProcSelfKind int

// Magic /proc entry kinds.
const (
	ProcNone ProcSelfKind = iota
	ProcCwd
	ProcExe
	ProcRoot
	ProcFd
)

// ClassifyProcEntry recognizes /proc/self/... and /proc/<pid>/... paths
// that name the calling tracee (pid is the tracee's own id). It returns
// the entry kind and the remainder of the path after the entry, with a
// leading slash when present ("" for an exact match).
func ClassifyProcEntry(guestPath string, pid int) (ProcSelfKind, string) {
	rest, ok := strings.CutPrefix(guestPath, "/proc/self")
	if !ok {
		rest, ok = strings.CutPrefix(guestPath, "/proc/"+strconv.Itoa(pid))
	}
	if !ok || (rest != "" && rest[0] != '/') {
		return ProcNone, ""
	}
	entries := []struct {
		kind ProcSelfKind
		name string
	}{
		{ProcCwd, "/cwd"},
		{ProcExe, "/exe"},
		{ProcRoot, "/root"},
		{ProcFd, "/fd"},
	}
	for _, e := range entries {
		if tail, ok := strings.CutPrefix(rest, e.name); ok && (tail == "" || tail[0] == '/') {
			return e.kind, tail
		}
	}
	return ProcNone, ""
}

// RewriteProcEntry rewrites a guest path that traverses a magic /proc
// entry of the calling tracee so that later translation sees the guest
// meaning: /proc/self/cwd becomes the tracee's guest cwd, /proc/self/root
// becomes "/", and /proc/self/exe becomes the guest path of the last
// exec'd image. Paths that do not traverse a magic entry are returned
// unchanged with ok=false. /proc/self/fd is left to the kernel: the fds
// were opened through translated paths already.
func RewriteProcEntry(guestPath string, pid int, cwd, exe string) (string, bool) {
	kind, tail := ClassifyProcEntry(guestPath, pid)
	switch kind {
	case ProcCwd:
		if cwd == "" {
			cwd = "/"
		}
		return cwd + tail, true
	case ProcRoot:
		if tail == "" {
			return "/", true
		}
		return tail, true
	case ProcExe:
		if tail == "" && exe != "" {
			return exe, true
		}
	}
	return guestPath, false
}
