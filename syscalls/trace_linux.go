package syscalls

import (
	"github.com/proot-me/proot-go/pkg/seccomp"
)

// TracedSyscalls returns the names of every syscall the translation
// layer must observe; the set feeds the seccomp acceleration filter so
// all other syscalls run free of tracer round-trips.
func TracedSyscalls() []string {
	nos := make([]uint64, 0, len(table))
	for no := range table {
		nos = append(nos, no)
	}
	return seccomp.SyscallNames(nos)
}
