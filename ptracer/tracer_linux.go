// Package ptracer drives a population of tracees through ptrace: it
// spawns the root process, demultiplexes stop events in a single
// threaded wait loop, keeps per-tracee state across stops and delegates
// syscall translation to a Handler.
package ptracer

import (
	"log/slog"
)

// Runner starts the root tracee. It must leave the child stopped and
// ptrace-attached (PTRACE_TRACEME + SIGSTOP) so the tracer picks it up
// on its first wait.
type Runner interface {
	// Start starts the child process and returns its pid.
	Start() (int, error)
}

// Handler translates syscalls for a stopped tracee. Handlers run on the
// event loop goroutine; they may read and write the tracee's registers
// and memory but must not resume it.
type Handler interface {
	// HandleEnter is invoked at every syscall-entry stop, after the
	// registers were fetched and snapshotted.
	HandleEnter(t *Tracee) error
	// HandleExit is invoked at every syscall-exit stop.
	HandleExit(t *Tracee) error
	// HandleExecEvent is invoked at PTRACE_EVENT_EXEC, when the new
	// image is mapped but has not run a single instruction yet.
	HandleExecEvent(t *Tracee) error
}

// Tracer owns every tracee. All fields are set before TraceRun and not
// mutated afterwards.
type Tracer struct {
	Handler Handler
	Runner  Runner
	Logger  *slog.Logger

	// InitialCwd seeds the root tracee's guest working directory.
	InitialCwd string

	// Seccomp enables the acceleration mode: syscalls with no
	// filesystem relevance run without tracer round-trips and only
	// filter-selected ones raise PTRACE_EVENT_SECCOMP.
	Seccomp bool

	// KillOnExit sets PTRACE_O_EXITKILL on every tracee so they die
	// with the tracer instead of being detached.
	KillOnExit bool

	tracees map[int]*Tracee
	rootPid int
}

// Result is the outcome of the root tracee.
type Result struct {
	// ExitStatus is the root tracee's exit status.
	ExitStatus int
	// Signal is non-zero when the root tracee was killed by a signal.
	Signal int
	// Err reports a tracer-internal fatal error.
	Err error
}

// Tracee returns the record for pid, or nil.
func (tr *Tracer) Tracee(pid int) *Tracee {
	return tr.tracees[pid]
}
