package ptracer

import (
	"bytes"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

var pageSize = os.Getpagesize()

const wordSize = int(unsafe.Sizeof(uintptr(0)))

// Mem gives byte-level access to a tracee's address space. Bulk reads go
// through process_vm_readv and fall back to PTRACE_PEEKDATA when the
// kernel refuses (e.g. under Yama restrictions that still permit
// ptrace). Writes always go word-at-a-time through PTRACE_POKEDATA,
// merging the preserved bytes of a partial trailing word.
type Mem struct {
	Pid int
}

func vmRead(pid int, addr uintptr, buff []byte) (int, error) {
	localIov := []unix.Iovec{getIovec(&buff[0], len(buff))}
	remoteIov := []unix.RemoteIovec{{Base: addr, Len: len(buff)}}
	return unix.ProcessVMReadv(pid, localIov, remoteIov, 0)
}

// ReadBytes fills buff from the tracee's memory at addr.
func (m Mem) ReadBytes(addr uintptr, buff []byte) error {
	if len(buff) == 0 {
		return nil
	}
	if n, err := vmRead(m.Pid, addr, buff); err == nil && n == len(buff) {
		return nil
	}
	_, err := syscall.PtracePeekData(m.Pid, addr, buff)
	return err
}

// ReadString reads a NUL-terminated string at addr, up to max bytes.
// Reads are chunked at page boundaries so scanning cannot fault past
// the end of the mapping that holds the string.
func (m Mem) ReadString(addr uintptr, max int) (string, error) {
	buff := make([]byte, 0, 64)
	chunk := make([]byte, pageSize)
	for len(buff) < max {
		next := pageSize - int((addr+uintptr(len(buff)))%uintptr(pageSize))
		if rest := max - len(buff); rest < next {
			next = rest
		}
		cur := chunk[:next]
		if err := m.ReadBytes(addr+uintptr(len(buff)), cur); err != nil {
			return "", err
		}
		if i := bytes.IndexByte(cur, 0); i >= 0 {
			return string(append(buff, cur[:i]...)), nil
		}
		buff = append(buff, cur...)
	}
	return "", unix.ENAMETOOLONG
}

// WriteBytes copies data into the tracee's memory at addr.
func (m Mem) WriteBytes(addr uintptr, data []byte) error {
	full := len(data) / wordSize * wordSize
	for i := 0; i < full; i += wordSize {
		if err := pokeWord(m.Pid, addr+uintptr(i), wordFromBytes(data[i:i+wordSize])); err != nil {
			return err
		}
	}
	if tail := data[full:]; len(tail) > 0 {
		// merge the trailing bytes with what the tracee already has
		existing, err := peekWord(m.Pid, addr+uintptr(full))
		if err != nil {
			return err
		}
		var word [8]byte
		bytesFromWord(existing, word[:wordSize])
		copy(word[:], tail)
		if err := pokeWord(m.Pid, addr+uintptr(full), wordFromBytes(word[:wordSize])); err != nil {
			return err
		}
	}
	return nil
}

// WriteString writes s into the tracee's memory at addr, including the
// terminating NUL.
func (m Mem) WriteString(addr uintptr, s string) error {
	data := make([]byte, len(s)+1)
	copy(data, s)
	return m.WriteBytes(addr, data)
}

// ReadWord reads one machine word at addr.
func (m Mem) ReadWord(addr uintptr) (uint64, error) {
	return peekWord(m.Pid, addr)
}

// WriteWord writes one machine word at addr.
func (m Mem) WriteWord(addr uintptr, v uint64) error {
	return pokeWord(m.Pid, addr, v)
}

func peekWord(pid int, addr uintptr) (uint64, error) {
	var buff [8]byte
	if _, err := syscall.PtracePeekData(pid, addr, buff[:wordSize]); err != nil {
		return 0, err
	}
	return wordFromBytes(buff[:wordSize]), nil
}

func pokeWord(pid int, addr uintptr, v uint64) error {
	var buff [8]byte
	bytesFromWord(v, buff[:wordSize])
	_, err := syscall.PtracePokeData(pid, addr, buff[:wordSize])
	return err
}

func wordFromBytes(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func bytesFromWord(v uint64, b []byte) {
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
}
