package forkexec

// linked against the runtime's fork hooks, as src/syscall/exec_linux.go
// does: the runtime must quiesce other threads around the raw clone.
import _ "unsafe"

//go:linkname beforeFork syscall.runtime_BeforeFork
func beforeFork()

//go:linkname afterFork syscall.runtime_AfterFork
func afterFork()

//go:linkname afterForkInChild syscall.runtime_AfterForkInChild
func afterForkInChild()
