package ptracer

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func testTracer() *Tracer {
	return &Tracer{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracees: make(map[int]*Tracee),
	}
}

func TestAdoptSharedFSState(t *testing.T) {
	tr := testTracer()
	parent := NewTracee(100)
	parent.FS = &FSState{Cwd: "/"}
	parent.Exe = "/bin/sh"
	tr.tracees[parent.Pid] = parent

	// CLONE_FS: one fs-state cell for both
	parent.CloneFlags = unix.CLONE_VM | unix.CLONE_FS
	tr.adopt(parent, 101)
	shared := tr.Tracee(101)
	require.NotNil(t, shared)
	assert.Same(t, parent.FS, shared.FS)
	assert.Equal(t, "/bin/sh", shared.Exe)

	shared.FS.Cwd = "/etc"
	assert.Equal(t, "/etc", parent.FS.Cwd, "chdir in either sibling is observed by both")

	// plain fork: cwds diverge from a copy
	parent.CloneFlags = 0
	tr.adopt(parent, 102)
	forked := tr.Tracee(102)
	require.NotNil(t, forked)
	assert.NotSame(t, parent.FS, forked.FS)
	assert.Equal(t, "/etc", forked.FS.Cwd)

	forked.FS.Cwd = "/tmp"
	assert.Equal(t, "/etc", parent.FS.Cwd)
}

func TestAdoptCloneWithoutCloneFS(t *testing.T) {
	tr := testTracer()
	parent := NewTracee(200)
	parent.FS = &FSState{Cwd: "/home"}
	tr.tracees[parent.Pid] = parent

	parent.CloneFlags = unix.CLONE_VM // thread-ish but no CLONE_FS
	tr.adopt(parent, 201)
	assert.NotSame(t, parent.FS, tr.Tracee(201).FS)
	assert.Equal(t, "/home", tr.Tracee(201).FS.Cwd)
}

func TestAdoptCloneFSWithSigchld(t *testing.T) {
	// clone(CLONE_FS|SIGCHLD) is delivered as PTRACE_EVENT_FORK, not
	// PTRACE_EVENT_CLONE; the captured flags must still share fs-state
	tr := testTracer()
	parent := NewTracee(210)
	parent.FS = &FSState{Cwd: "/"}
	tr.tracees[parent.Pid] = parent

	parent.CloneFlags = unix.CLONE_FS
	tr.adopt(parent, 211)
	child := tr.Tracee(211)
	require.NotNil(t, child)
	assert.Same(t, parent.FS, child.FS)

	child.FS.Cwd = "/etc"
	assert.Equal(t, "/etc", parent.FS.Cwd)
}

func TestAdoptCompletesParkedChild(t *testing.T) {
	tr := testTracer()
	parent := NewTracee(300)
	parent.FS = &FSState{Cwd: "/"}
	tr.tracees[parent.Pid] = parent

	// the child stopped before the parent's clone event named it
	child := NewTracee(301)
	tr.tracees[child.Pid] = child

	parent.CloneFlags = unix.CLONE_FS
	tr.adopt(parent, 301)
	assert.Same(t, child, tr.Tracee(301))
	assert.Same(t, parent.FS, child.FS)
	assert.Equal(t, parent.Pid, child.Parent)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "sysenter", StatusSysEnter.String())
	assert.Equal(t, "exited", StatusExited.String())
}
