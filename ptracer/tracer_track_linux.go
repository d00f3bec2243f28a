package ptracer

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// TraceRun spawns the root tracee and drives every tracee until the
// population dies out. It must run on a locked OS thread: ptrace
// operations are keyed by the (tracer thread, tracee) pair.
func (tr *Tracer) TraceRun() (result Result) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	tr.tracees = make(map[int]*Tracee)

	pid, err := tr.Runner.Start()
	if err != nil {
		result.Err = fmt.Errorf("start root tracee: %w", err)
		return
	}
	tr.rootPid = pid
	root := NewTracee(pid)
	root.FS = &FSState{Cwd: tr.InitialCwd}
	tr.tracees[pid] = root
	tr.Logger.Debug("root tracee started", "pid", pid)

	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("tracer panic: %v", r)
		}
		// leave no tracee stopped in a traced state behind us
		unix.Kill(-pid, unix.SIGKILL)
		collectZombies(pid)
	}()

	var wstatus unix.WaitStatus
	for len(tr.tracees) > 0 {
		pid, err := unix.Wait4(-1, &wstatus, unix.WALL, nil)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if errors.Is(err, unix.ECHILD) {
				break
			}
			result.Err = fmt.Errorf("wait4: %w", err)
			return
		}

		t := tr.tracees[pid]
		if t == nil {
			// A child can stop before its parent's clone event named
			// it. Park it until adoption fills in its fs state.
			if wstatus.Stopped() {
				t = NewTracee(pid)
				t.pendingStart = true
				tr.tracees[pid] = t
				tr.firstStop(t)
				tr.Logger.Debug("parked unadopted child", "pid", pid)
			}
			continue
		}

		switch {
		case wstatus.Exited():
			tr.reap(t, wstatus.ExitStatus(), 0, &result)

		case wstatus.Signaled():
			tr.reap(t, 0, int(wstatus.Signal()), &result)

		case wstatus.Stopped():
			tr.handleStop(t, wstatus)
		}
	}
	return
}

// reap retires an exited tracee and records the root's outcome.
func (tr *Tracer) reap(t *Tracee, exitStatus, sig int, result *Result) {
	t.Status = StatusExited
	delete(tr.tracees, t.Pid)
	if t.Pid == tr.rootPid {
		result.ExitStatus = exitStatus
		result.Signal = sig
	}
	tr.Logger.Debug("tracee exited", "pid", t.Pid, "status", exitStatus, "signal", sig)
}

// handleStop classifies one ptrace stop and advances the tracee's state
// machine.
func (tr *Tracer) handleStop(t *Tracee, wstatus unix.WaitStatus) {
	stopSig := wstatus.StopSignal()

	if !t.traced {
		tr.firstStop(t)
		if t.FS == nil {
			// not adopted yet; hold it until the clone event arrives
			t.pendingStart = true
			return
		}
		// swallow the initial SIGSTOP
		if stopSig == unix.SIGSTOP {
			tr.resume(t, 0)
			return
		}
	}

	switch {
	case stopSig == unix.SIGTRAP|0x80:
		tr.handleSyscallStop(t)

	case stopSig == unix.SIGTRAP && wstatus.TrapCause() > 0:
		tr.handleEvent(t, wstatus.TrapCause())

	default:
		// signal-delivery-stop: forward and return to the prior state
		tr.Logger.Debug("forwarding signal", "pid", t.Pid, "signal", stopSig)
		tr.resume(t, int(stopSig))
	}
}

// firstStop marks the tracee as traced and installs the ptrace options
// every tracee runs with.
func (tr *Tracer) firstStop(t *Tracee) {
	t.traced = true
	flags := unix.PTRACE_O_TRACESYSGOOD | unix.PTRACE_O_TRACEFORK |
		unix.PTRACE_O_TRACEVFORK | unix.PTRACE_O_TRACECLONE |
		unix.PTRACE_O_TRACEEXEC
	if tr.Seccomp {
		flags |= unix.PTRACE_O_TRACESECCOMP
	}
	if tr.KillOnExit {
		flags |= unix.PTRACE_O_EXITKILL
	}
	if err := unix.PtraceSetOptions(t.Pid, flags); err != nil {
		tr.Logger.Warn("set ptrace options", "pid", t.Pid, "err", err)
	}
}

// handleSyscallStop runs the entry or exit half of the translation.
// Within one tracee, entry strictly alternates with exit; the direction
// is tracked by the status field.
func (tr *Tracer) handleSyscallStop(t *Tracee) {
	if t.Status == StatusSysEnter {
		// syscall-exit stop
		if err := t.Ctx.Fetch(); err != nil {
			tr.Logger.Warn("fetch regs at exit", "pid", t.Pid, "err", err)
			tr.resume(t, 0)
			return
		}
		if err := tr.Handler.HandleExit(t); err != nil {
			tr.Logger.Warn("exit handler", "pid", t.Pid, "err", err)
		}
		if t.afterExec {
			// a successful execve replaced the register file; the
			// entry-time snapshot belongs to the old image
			t.afterExec = false
		} else {
			t.Ctx.RestoreOriginal()
		}
		t.Ctx.saved = false
		if err := t.Ctx.Flush(); err != nil {
			tr.Logger.Warn("flush regs at exit", "pid", t.Pid, "err", err)
		}
		t.Status = StatusSysExit
		tr.resume(t, 0)
		return
	}

	// syscall-entry stop
	if err := t.Ctx.Fetch(); err != nil {
		tr.Logger.Warn("fetch regs at entry", "pid", t.Pid, "err", err)
		tr.resume(t, 0)
		return
	}
	t.Ctx.SaveOriginal()
	t.ResetScratchCursor()
	t.Voided = false
	t.EnterErr = 0
	t.HasStaged = false
	t.StagedLink = ""
	t.StagedLinkEmul = false
	if err := tr.Handler.HandleEnter(t); err != nil {
		tr.Logger.Warn("enter handler", "pid", t.Pid, "err", err)
	}
	if err := t.Ctx.Flush(); err != nil {
		tr.Logger.Warn("flush regs at entry", "pid", t.Pid, "err", err)
	}
	t.Status = StatusSysEnter
	tr.resume(t, 0)
}

// handleEvent processes PTRACE_EVENT stops.
func (tr *Tracer) handleEvent(t *Tracee, cause int) {
	switch cause {
	case unix.PTRACE_EVENT_FORK, unix.PTRACE_EVENT_VFORK, unix.PTRACE_EVENT_CLONE:
		msg, err := unix.PtraceGetEventMsg(t.Pid)
		if err != nil {
			tr.Logger.Warn("get clone event message", "pid", t.Pid, "err", err)
			tr.resume(t, 0)
			return
		}
		tr.adopt(t, int(msg))
		tr.resume(t, 0)

	case unix.PTRACE_EVENT_EXEC:
		t.DropScratch()
		t.afterExec = true
		if err := tr.Handler.HandleExecEvent(t); err != nil {
			tr.Logger.Warn("exec event handler", "pid", t.Pid, "err", err)
		}
		tr.resume(t, 0)

	case unix.PTRACE_EVENT_SECCOMP:
		// acceleration: a filtered syscall begins; step to its entry
		if err := unix.PtraceSyscall(t.Pid, 0); err != nil && !errors.Is(err, unix.ESRCH) {
			tr.Logger.Warn("resume after seccomp event", "pid", t.Pid, "err", err)
		}

	default:
		tr.Logger.Debug("unexpected ptrace event", "pid", t.Pid, "cause", cause)
		tr.resume(t, 0)
	}
}

// adopt wires a newly created child to its creator: the record is
// created (or the parked one completed), fs-state is inherited, shared
// when the clone carried CLONE_FS. The flags captured at the clone
// entry decide sharing, not the event kind: the kernel reports
// clone(CLONE_FS|SIGCHLD) as PTRACE_EVENT_FORK (only a non-SIGCHLD
// exit signal makes it PTRACE_EVENT_CLONE), and fork/vfork entries
// reset the captured flags to zero.
func (tr *Tracer) adopt(parent *Tracee, childPid int) {
	child := tr.tracees[childPid]
	if child == nil {
		child = NewTracee(childPid)
		tr.tracees[childPid] = child
	}
	child.Parent = parent.Pid
	child.Exe = parent.Exe
	if parent.CloneFlags&unix.CLONE_FS != 0 {
		child.FS = parent.FS
	} else {
		child.FS = &FSState{Cwd: parent.FS.Cwd}
	}
	tr.Logger.Debug("adopted child", "pid", childPid, "parent", parent.Pid,
		"sharedFS", child.FS == parent.FS)
	if child.pendingStart {
		// it stopped before adoption and has been parked since
		child.pendingStart = false
		tr.resume(child, 0)
	}
}

// resume restarts a stopped tracee, delivering sig. Under seccomp
// acceleration a tracee that completed a syscall is released with
// PTRACE_CONT: the next filtered syscall raises a seccomp event, and
// unfiltered ones run free.
func (tr *Tracer) resume(t *Tracee, sig int) {
	var err error
	if tr.Seccomp && t.Status == StatusSysExit {
		err = unix.PtraceCont(t.Pid, sig)
	} else {
		err = unix.PtraceSyscall(t.Pid, sig)
	}
	if err != nil && !errors.Is(err, unix.ESRCH) {
		tr.Logger.Warn("resume tracee", "pid", t.Pid, "err", err)
	}
}

// collectZombies reaps whatever the kill left behind.
func collectZombies(pgid int) {
	var wstatus unix.WaitStatus
	for {
		if _, err := unix.Wait4(-pgid, &wstatus, unix.WALL|unix.WNOHANG, nil); err != nil {
			break
		}
	}
}
