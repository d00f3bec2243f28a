// Package forkexec starts the root tracee: fork, declare ourselves
// ptrace-able, stop for the tracer, optionally load the seccomp
// acceleration filter, then exec the guest command. The exec'd path is
// the guest spelling; the tracer intercepts the execve and reroutes it.
package forkexec

import (
	"golang.org/x/sys/unix"

	"github.com/proot-me/proot-go/pkg/rlimit"
)

// Runner is the configuration of the root tracee.
type Runner struct {
	// Args and Env for the execve; Args[0] is a guest path.
	Args []string
	Env  []string

	// WorkDir is the host directory the child chdirs into before the
	// exec, so the kernel-side cwd starts in step with the guest cwd.
	WorkDir string

	// RLimits are applied with prlimit64 before the exec.
	RLimits []rlimit.RLimit

	// Seccomp is the acceleration filter; nil disables acceleration.
	Seccomp *unix.SockFprog
}
