package main

import (
	"errors"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/proot-me/proot-go/loader"
)

var pageSize = uint64(os.Getpagesize())

func pageDown(v uint64) uint64 { return v &^ (pageSize - 1) }
func pageUp(v uint64) uint64   { return (v + pageSize - 1) &^ (pageSize - 1) }

type mapped struct {
	// base is the load bias: 0 for ET_EXEC, the chosen base for ET_DYN.
	base uint64
	// entry is the biased entry point.
	entry uint64
	// phdrAddr is the biased address of the program header table.
	phdrAddr uint64
}

// rawMmap wraps the syscall; the unix.Mmap wrapper takes no address, so
// it cannot express MAP_FIXED at computed addresses.
func rawMmap(addr, length uint64, prot uint32, flags int, fd int, off uint64) (uint64, error) {
	r, _, errno := unix.Syscall6(unix.SYS_MMAP,
		uintptr(addr), uintptr(length), uintptr(prot),
		uintptr(flags), uintptr(fd), uintptr(off))
	if errno != 0 {
		return 0, errno
	}
	return uint64(r), nil
}

// mapObject maps every PT_LOAD segment of one object the way the
// kernel's ELF loader would: ET_DYN objects get their whole span
// reserved first so the kernel picks a base, then each segment is
// placed with MAP_FIXED relative to that base; memsz beyond filesz is
// zeroed and backed by anonymous pages.
func mapObject(o *loader.Object) (*mapped, error) {
	f, err := os.Open(o.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fd := int(f.Fd())

	if len(o.Segments) == 0 {
		return nil, errors.New("no loadable segments")
	}

	minVaddr := pageDown(o.Segments[0].Vaddr)
	maxVaddr := uint64(0)
	for _, seg := range o.Segments {
		if v := pageDown(seg.Vaddr); v < minVaddr {
			minVaddr = v
		}
		if end := pageUp(seg.Vaddr + seg.MemSz); end > maxVaddr {
			maxVaddr = end
		}
	}

	var base uint64
	if o.Type == 3 { // ET_DYN
		reserve, err := rawMmap(0, maxVaddr-minVaddr, unix.PROT_NONE,
			unix.MAP_PRIVATE|unix.MAP_ANONYMOUS, -1, 0)
		if err != nil {
			return nil, err
		}
		base = reserve - minVaddr
	}

	for _, seg := range o.Segments {
		start := base + pageDown(seg.Vaddr)
		slack := seg.Vaddr - pageDown(seg.Vaddr)
		if seg.FileSz > 0 {
			if _, err := rawMmap(start, slack+seg.FileSz, seg.Prot,
				unix.MAP_PRIVATE|unix.MAP_FIXED, fd, pageDown(seg.Offset)); err != nil {
				return nil, err
			}
		}
		if seg.MemSz > seg.FileSz {
			if err := mapBSS(base, seg); err != nil {
				return nil, err
			}
		}
	}

	m := &mapped{base: base, entry: base + o.Entry}

	// AT_PHDR: the headers live inside whichever segment covers their
	// file offset
	for _, seg := range o.Segments {
		if o.PhOff >= seg.Offset && o.PhOff < seg.Offset+seg.FileSz {
			m.phdrAddr = base + seg.Vaddr + (o.PhOff - seg.Offset)
			break
		}
	}
	return m, nil
}

// mapBSS zeroes the file tail of a segment's last mapped page and backs
// the rest of memsz with anonymous memory.
func mapBSS(base uint64, seg loader.Segment) error {
	fileEnd := base + seg.Vaddr + seg.FileSz
	memEnd := base + seg.Vaddr + seg.MemSz

	if tail := pageUp(fileEnd) - fileEnd; tail > 0 && seg.FileSz > 0 {
		if seg.Prot&unix.PROT_WRITE == 0 {
			// make the partial page writable long enough to zero it
			if _, _, errno := unix.Syscall(unix.SYS_MPROTECT,
				uintptr(pageDown(fileEnd)), uintptr(pageSize),
				uintptr(seg.Prot|unix.PROT_WRITE)); errno != 0 {
				return errno
			}
		}
		zero(fileEnd, tail)
		if seg.Prot&unix.PROT_WRITE == 0 {
			if _, _, errno := unix.Syscall(unix.SYS_MPROTECT,
				uintptr(pageDown(fileEnd)), uintptr(pageSize),
				uintptr(seg.Prot)); errno != 0 {
				return errno
			}
		}
	}

	if pageUp(fileEnd) < memEnd {
		if _, err := rawMmap(pageUp(fileEnd), memEnd-pageUp(fileEnd), seg.Prot,
			unix.MAP_PRIVATE|unix.MAP_FIXED|unix.MAP_ANONYMOUS, -1, 0); err != nil {
			return err
		}
	}
	return nil
}

func zero(addr, n uint64) {
	buf := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), n)
	for i := range buf {
		buf[i] = 0
	}
}
