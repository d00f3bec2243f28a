package main

import (
	"encoding/binary"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/proot-me/proot-go/loader"
)

const stackSize = 8 << 20

// auxv keys the image cares about
const (
	atNull   = 0
	atPhdr   = 3
	atPhent  = 4
	atPhnum  = 5
	atPagesz = 6
	atBase   = 7
	atFlags  = 8
	atEntry  = 9
	atUID    = 11
	atEUID   = 12
	atGID    = 13
	atEGID   = 14
	atHwcap  = 16
	atClktck = 17
	atSecure = 23
	atRandom = 25
	atHwcap2 = 26
	atExecFn = 31
)

// buildStack lays out a fresh stack for the target image per the ELF
// ABI: strings at the top, then the auxiliary vector, the environment
// and argument pointer arrays, and argc at the final stack pointer.
// argv and envp are the ones this bootstrap was exec'd with, which the
// tracer already shaped for the target.
func buildStack(script *loader.Script, prog *mapped, interpBase uint64) (uint64, error) {
	bottom, err := rawMmap(0, stackSize, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_GROWSDOWN, -1, 0)
	if err != nil {
		return 0, err
	}
	top := bottom + stackSize

	// string area grows down from the top
	strTop := top
	pushString := func(s string) uint64 {
		n := uint64(len(s) + 1)
		strTop -= n
		buf := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(strTop))), n)
		copy(buf, s)
		buf[len(s)] = 0
		return strTop
	}

	argv := os.Args
	envv := os.Environ()

	argvPtrs := make([]uint64, 0, len(argv))
	for _, a := range argv {
		argvPtrs = append(argvPtrs, pushString(a))
	}
	envpPtrs := make([]uint64, 0, len(envv))
	for _, e := range envv {
		envpPtrs = append(envpPtrs, pushString(e))
	}
	execfnPtr := pushString(script.ExecFn)

	var random [16]byte
	unix.Getrandom(random[:], 0)
	strTop -= 16
	copy(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(strTop))), 16), random[:])
	randomPtr := strTop

	aux := [][2]uint64{
		{atPhdr, prog.phdrAddr},
		{atPhent, uint64(script.Program.PhEnt)},
		{atPhnum, uint64(script.Program.PhNum)},
		{atPagesz, pageSize},
		{atBase, interpBase},
		{atFlags, 0},
		{atEntry, prog.entry},
		{atUID, uint64(unix.Getuid())},
		{atEUID, uint64(unix.Geteuid())},
		{atGID, uint64(unix.Getgid())},
		{atEGID, uint64(unix.Getegid())},
		{atSecure, 0},
		{atRandom, randomPtr},
		{atExecFn, execfnPtr},
	}
	// forward the hardware capabilities and clock tick of our own auxv
	for _, key := range []uint64{atHwcap, atHwcap2, atClktck} {
		if v, ok := ownAuxval(key); ok {
			aux = append(aux, [2]uint64{key, v})
		}
	}
	aux = append(aux, [2]uint64{atNull, 0})

	// pointer area: argc + argv + NULL + envp + NULL + auxv
	words := 1 + len(argvPtrs) + 1 + len(envpPtrs) + 1 + 2*len(aux)
	sp := (strTop - uint64(words*8)) &^ 15

	w := unsafe.Slice((*uint64)(unsafe.Pointer(uintptr(sp))), words)
	i := 0
	w[i] = uint64(len(argvPtrs))
	i++
	for _, p := range argvPtrs {
		w[i] = p
		i++
	}
	w[i] = 0
	i++
	for _, p := range envpPtrs {
		w[i] = p
		i++
	}
	w[i] = 0
	i++
	for _, kv := range aux {
		w[i] = kv[0]
		w[i+1] = kv[1]
		i += 2
	}

	return sp, nil
}

// ownAuxval reads one entry of this process's auxiliary vector.
func ownAuxval(key uint64) (uint64, bool) {
	data, err := os.ReadFile("/proc/self/auxv")
	if err != nil {
		return 0, false
	}
	for off := 0; off+16 <= len(data); off += 16 {
		k := binary.LittleEndian.Uint64(data[off:])
		if k == key {
			return binary.LittleEndian.Uint64(data[off+8:]), true
		}
		if k == atNull {
			break
		}
	}
	return 0, false
}
