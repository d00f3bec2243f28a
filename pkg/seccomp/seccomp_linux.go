// Package seccomp builds the acceleration filter: a BPF program,
// installed on the root tracee before its first exec and inherited by
// every descendant, that raises PTRACE_EVENT_SECCOMP only for the
// path-aware syscalls. Everything else runs without a tracer
// round-trip.
package seccomp

import (
	"fmt"

	libseccomp "github.com/elastic/go-seccomp-bpf"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

// Filter is a kernel-ready seccomp BPF program.
type Filter []unix.SockFilter

// SockFprog wraps the filter for the seccomp syscall. The receiver must
// stay reachable while the returned program is in use.
func (f Filter) SockFprog() *unix.SockFprog {
	return &unix.SockFprog{
		Len:    uint16(len(f)),
		Filter: &f[0],
	}
}

// BuildFilter assembles a filter that traces the named syscalls and
// allows everything else.
func BuildFilter(trace []string) (Filter, error) {
	policy := libseccomp.Policy{
		DefaultAction: libseccomp.ActionAllow,
		Syscalls: []libseccomp.SyscallGroup{
			{
				Action: libseccomp.ActionTrace,
				Names:  trace,
			},
		},
	}
	insns, err := policy.Assemble()
	if err != nil {
		return nil, fmt.Errorf("seccomp: assemble policy: %w", err)
	}
	raw, err := bpf.Assemble(insns)
	if err != nil {
		return nil, fmt.Errorf("seccomp: assemble bpf: %w", err)
	}
	filter := make(Filter, 0, len(raw))
	for _, ins := range raw {
		filter = append(filter, unix.SockFilter{
			Code: ins.Op,
			Jt:   ins.Jt,
			Jf:   ins.Jf,
			K:    ins.K,
		})
	}
	return filter, nil
}
