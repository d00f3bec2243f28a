package forkexec

import (
	"fmt"
	"syscall"
)

// ErrorLocation defines the step at which the child failed before exec.
type ErrorLocation int

// ChildError is the failure report a child writes on its sync pipe.
type ChildError struct {
	Err      syscall.Errno
	Location ErrorLocation
}

// Location constants
const (
	LocClone ErrorLocation = iota + 1
	LocCloseWrite
	LocSetSid
	LocChdir
	LocSetRlimit
	LocSetNoNewPrivs
	LocPtraceMe
	LocStop
	LocSeccomp
	LocExecve
)

var locToString = []string{
	"unknown",
	"clone",
	"close_write",
	"setsid",
	"chdir",
	"setrlimit",
	"set_no_new_privs",
	"ptrace_me",
	"stop",
	"seccomp",
	"execve",
}

func (e ChildError) Error() string {
	loc := "unknown"
	if int(e.Location) < len(locToString) {
		loc = locToString[e.Location]
	}
	return fmt.Sprintf("forkexec: %s: %s", loc, e.Err.Error())
}
