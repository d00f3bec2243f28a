package forkexec

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// Start forks the root tracee. On return the child is stopped by its
// own SIGSTOP with PTRACE_TRACEME in effect; the tracer's first wait
// observes that stop. The runtime OS thread must be locked by the
// caller.
func (r *Runner) Start() (int, error) {
	argv0, argv, env, err := prepareExec(r.Args, r.Env)
	if err != nil {
		return 0, err
	}
	workdir, err := syscallStringFromString(r.WorkDir)
	if err != nil {
		return 0, err
	}

	// the pipe reports pre-exec failures; its write end closes on exec
	var p [2]int
	if err := syscall.Pipe2(p[:], syscall.O_CLOEXEC); err != nil {
		return 0, err
	}

	pid, err1 := forkAndExecInChild(r, argv0, argv, env, workdir, p)

	afterFork()
	syscall.ForkLock.Unlock()

	unix.Close(p[1])
	if err1 != 0 {
		unix.Close(p[0])
		return 0, syscall.Errno(err1)
	}

	// The child blocks in SIGSTOP until the tracer resumes it, so the
	// failure pipe is drained off the tracing thread; errors before
	// exec surface to the tracer as the child exiting before execve.
	go func() {
		var childErr ChildError
		readChildError(p[0], &childErr)
		unix.Close(p[0])
	}()

	return int(pid), nil
}
