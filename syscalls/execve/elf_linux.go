package execve

import (
	"debug/elf"
	"encoding/binary"
	"os"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/proot-me/proot-go/loader"
)

// nativeMachine is the only machine this tracer can host; foreign
// binaries fail with ENOEXEC like they would under a kernel without a
// binfmt handler for them.
var nativeMachine = map[string]elf.Machine{
	"amd64": elf.EM_X86_64,
	"arm64": elf.EM_AARCH64,
}[runtime.GOARCH]

// parseObject reads the ELF at hostPath into a load-script object and
// returns the PT_INTERP value, if any. Malformed or foreign images
// yield ENOEXEC.
func parseObject(hostPath string) (loader.Object, string, error) {
	var obj loader.Object

	raw, err := os.Open(hostPath)
	if err != nil {
		return obj, "", unix.ENOEXEC
	}
	defer raw.Close()

	f, err := elf.NewFile(raw)
	if err != nil {
		return obj, "", unix.ENOEXEC
	}

	if f.Machine != nativeMachine || f.Class != elf.ELFCLASS64 {
		return obj, "", unix.ENOEXEC
	}
	if f.Type != elf.ET_EXEC && f.Type != elf.ET_DYN {
		return obj, "", unix.ENOEXEC
	}

	// e_phoff feeds AT_PHDR; debug/elf does not surface it
	var hdr [64]byte
	if _, err := raw.ReadAt(hdr[:], 0); err != nil {
		return obj, "", unix.ENOEXEC
	}
	phoff := binary.LittleEndian.Uint64(hdr[0x20:])

	obj = loader.Object{
		Path:  hostPath,
		Type:  uint16(f.Type),
		Entry: f.Entry,
		PhOff: phoff,
		PhEnt: 56,
		PhNum: uint16(len(f.Progs)),
	}

	var interp string
	for _, p := range f.Progs {
		switch p.Type {
		case elf.PT_LOAD:
			obj.Segments = append(obj.Segments, loader.Segment{
				Offset: p.Off,
				Vaddr:  p.Vaddr,
				FileSz: p.Filesz,
				MemSz:  p.Memsz,
				Prot:   protFromFlags(p.Flags),
			})
		case elf.PT_INTERP:
			buf := make([]byte, p.Filesz)
			if _, err := p.ReadAt(buf, 0); err != nil {
				return obj, "", unix.ENOEXEC
			}
			// the value is NUL-terminated on disk
			for i, b := range buf {
				if b == 0 {
					buf = buf[:i]
					break
				}
			}
			interp = string(buf)
		}
	}
	if len(obj.Segments) == 0 {
		return obj, "", unix.ENOEXEC
	}
	return obj, interp, nil
}

func protFromFlags(flags elf.ProgFlag) uint32 {
	var prot uint32
	if flags&elf.PF_R != 0 {
		prot |= unix.PROT_READ
	}
	if flags&elf.PF_W != 0 {
		prot |= unix.PROT_WRITE
	}
	if flags&elf.PF_X != 0 {
		prot |= unix.PROT_EXEC
	}
	return prot
}
