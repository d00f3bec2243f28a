// Package execve substitutes a bootstrap loader for every exec a tracee
// performs, so that guest images (and their guest dynamic linkers) are
// mapped from translated host paths instead of being resolved by the
// host kernel.
package execve

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/proot-me/proot-go/filesystem"
	"github.com/proot-me/proot-go/loader"
	"github.com/proot-me/proot-go/pkg/memfd"
	"github.com/proot-me/proot-go/ptracer"
)

// Loader is the bootstrap program substituted at the execve boundary.
// At startup its binary is sealed into a memfd of the tracer, and
// tracees exec it through /proc/<tracer-pid>/fd/<n>, so it stays
// reachable whatever the guest rootfs contains.
type Loader struct {
	// ProcPath is the path tracees exec.
	ProcPath string
	// ScriptAddr is where the loader's script buffer sits in its image.
	ScriptAddr uint64

	file *os.File
}

// NewLoader seals the loader binary at path into a memfd and locates
// its script buffer.
func NewLoader(path string) (*Loader, error) {
	addr, err := loader.ScriptArea(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("execve: open loader: %w", err)
	}
	defer f.Close()
	mf, err := memfd.DupToMemfd("proot-loader", f)
	if err != nil {
		return nil, err
	}
	return &Loader{
		ProcPath:   fmt.Sprintf("/proc/%d/fd/%d", os.Getpid(), mf.Fd()),
		ScriptAddr: addr,
		file:       mf,
	}, nil
}

// Close releases the memfd. Only for tests; in the tracer the loader
// lives as long as the process.
func (l *Loader) Close() error {
	return l.file.Close()
}

// pending carries execve bookkeeping from the entry stop to the exec
// event and the exit stop.
type pending struct {
	script []byte
	newExe string
}

// maxArgv bounds the argv scan when rebuilding a script invocation.
const maxArgv = 4096

// Enter translates an execve at its syscall-entry stop: the target is
// resolved (expanding one shebang level), its ELF and interpreter are
// parsed into a load script, argv is rebuilt for scripts, and the path
// argument is redirected to the bootstrap loader. Returned errnos void
// the syscall.
func (l *Loader) Enter(t *ptracer.Tracee, fs *filesystem.FileSystem, pathArg, argvArg int) error {
	c := &t.Ctx
	pathAddr := uintptr(c.Arg(pathArg))
	guestPath, err := t.Mem.ReadString(pathAddr, unix.PathMax)
	if err != nil {
		return unix.EFAULT
	}
	if rewritten, ok := filesystem.RewriteProcEntry(guestPath, t.Pid, t.FS.Cwd, t.Exe); ok {
		guestPath = rewritten
	}

	exp, err := expand(fs, t.FS.Cwd, guestPath)
	if err != nil {
		return err
	}

	program, interp, err := parseObject(exp.HostPath)
	if err != nil {
		return err
	}
	script := loader.Script{
		ExecFn:  exp.GuestPath,
		Program: program,
	}
	if interp != "" {
		interpHost, err := fs.Translate("/", interp, true)
		if err != nil {
			// the guest image names an interpreter the guest does not
			// have; the kernel would say ENOENT for the missing ld.so
			return unix.ENOENT
		}
		interpObj, nested, err := parseObject(interpHost)
		if err != nil {
			return err
		}
		if nested != "" {
			// an ELF interpreter must be standalone
			return unix.ENOEXEC
		}
		script.HasInterp = true
		script.Interp = interpObj
	}

	encoded, err := script.Encode()
	if err != nil {
		return unix.E2BIG
	}

	if exp.ArgvPrefix != nil {
		if err := l.rebuildArgv(t, argvArg, exp.ArgvPrefix, guestPath); err != nil {
			return unix.EFAULT
		}
	}

	// redirect the exec to the bootstrap
	addr, err := t.ScratchWriteString(l.ProcPath)
	if err != nil {
		return unix.EFAULT
	}
	c.SetArg(pathArg, uint64(addr))

	t.NewExe = exp.GuestPath
	t.PendingExec = &pending{script: encoded, newExe: exp.GuestPath}
	return nil
}

// rebuildArgv turns execve("./script", {a0, a1, ...}) into
// execve(interp, {interp, opt?, "./script", a1, ...}): the new strings
// and the new pointer array are staged in scratch and the argv argument
// register is redirected there.
func (l *Loader) rebuildArgv(t *ptracer.Tracee, argvArg int, prefix []string, scriptPath string) error {
	c := &t.Ctx
	argvAddr := uintptr(c.Arg(argvArg))

	var orig []uint64
	for i := 0; i < maxArgv; i++ {
		word, err := t.Mem.ReadWord(argvAddr + uintptr(i*8))
		if err != nil {
			return err
		}
		if word == 0 {
			break
		}
		orig = append(orig, word)
	}

	var ptrs []uint64
	for _, s := range append(append([]string{}, prefix...), scriptPath) {
		addr, err := t.ScratchWriteString(s)
		if err != nil {
			return err
		}
		ptrs = append(ptrs, uint64(addr))
	}
	if len(orig) > 1 {
		ptrs = append(ptrs, orig[1:]...)
	}
	ptrs = append(ptrs, 0)

	table := make([]byte, len(ptrs)*8)
	for i, p := range ptrs {
		binary.LittleEndian.PutUint64(table[i*8:], p)
	}
	tableAddr, err := t.ScratchWrite(table)
	if err != nil {
		return err
	}
	c.SetArg(argvArg, uint64(tableAddr))
	return nil
}

// CommitExec runs at PTRACE_EVENT_EXEC, when the loader image is mapped
// but has not executed an instruction yet: the load script is poked
// into the loader's buffer and the no-translation window opens until
// the loader's handoff syscall.
func (l *Loader) CommitExec(t *ptracer.Tracee) error {
	pe, ok := t.PendingExec.(*pending)
	if !ok || pe == nil {
		// exec event without our redirection (should not happen; the
		// root tracee's very first exec also goes through Enter)
		return fmt.Errorf("execve: exec event with no pending state on pid %d", t.Pid)
	}
	if err := t.Mem.WriteBytes(uintptr(l.ScriptAddr), pe.script); err != nil {
		return fmt.Errorf("execve: write load script: %w", err)
	}
	t.Exe = pe.newExe
	t.NewExe = ""
	t.InLoader = true
	t.PendingExec = nil
	return nil
}

// ExitFailed clears staged state when the kernel reported an exec
// failure at syscall-exit.
func ExitFailed(t *ptracer.Tracee) {
	t.PendingExec = nil
	t.NewExe = ""
}
