// Command proot-loader is the bootstrap substituted at every execve a
// tracee performs: the tracer execs this program instead of the guest
// image, pokes a load script into scriptArea while the fresh image is
// still stopped, and this program then maps the real ELF (and its
// interpreter) itself, builds a fresh ABI stack and jumps to the entry
// point. The guest's dynamic linker therefore runs from its translated
// host path without the host kernel ever resolving guest paths.
package main

import (
	"os"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/proot-me/proot-go/loader"
)

// scriptArea is written by the tracer; see loader.ScriptAreaSymbol.
var scriptArea [loader.AreaSize]byte

func main() {
	runtime.LockOSThread()

	script, err := loader.Decode(scriptArea[:])
	if err != nil {
		fatal("not launched by the tracer (no load script present)")
	}

	prog, err := mapObject(&script.Program)
	if err != nil {
		fatal("map program: " + err.Error())
	}
	entry := prog.entry
	var interpBase uint64
	if script.HasInterp {
		interp, err := mapObject(&script.Interp)
		if err != nil {
			fatal("map interpreter: " + err.Error())
		}
		interpBase = interp.base
		entry = interp.entry
	}

	sp, err := buildStack(script, prog, interpBase)
	if err != nil {
		fatal("build stack: " + err.Error())
	}

	// handoff marker: the tracer re-enables path translation on this
	// exact syscall (a nil buffer makes it a no-op for the kernel)
	unix.Syscall(unix.SYS_GETCWD, 0, loader.DoneMagic, 0)

	jump(uintptr(entry), uintptr(sp))
	panic("unreachable")
}

func fatal(msg string) {
	os.Stderr.WriteString("proot-loader: " + msg + "\n")
	os.Exit(127)
}
