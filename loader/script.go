// Package loader defines the load-script handed from the tracer to the
// bootstrap loader at execve time: which ELF objects to map, where
// their segments go, and what the auxiliary vector should advertise.
// The format is private to one build of this module; the tracer and
// cmd/proot-loader must come from the same tree.
package loader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// AreaSize is the capacity of the loader's script buffer. The tracer
// pokes an encoded script into that buffer after the loader image is
// mapped and before it runs.
const AreaSize = 16 << 10

// ScriptAreaSymbol is the ELF symbol of the loader's script buffer; the
// loader binary must not be stripped.
const ScriptAreaSymbol = "main.scriptArea"

const (
	scriptMagic   = 0x50724c64 // "PrLd"
	scriptVersion = 1

	flagHasInterp = 1 << 0
)

// DoneMagic marks the loader's handoff syscall: right before jumping to
// the mapped image the loader issues getcwd(0, DoneMagic), which the
// tracer consumes to leave the no-translation window.
const DoneMagic = 0x70724f6f745f646e

// Segment describes one PT_LOAD program header.
type Segment struct {
	Offset uint64
	Vaddr  uint64
	FileSz uint64
	MemSz  uint64
	Prot   uint32
}

// Object describes one ELF object to map: the program itself and, for
// dynamically linked programs, its interpreter.
type Object struct {
	// Path is the host path the loader opens.
	Path string
	// Type is ET_EXEC or ET_DYN.
	Type uint16
	// Entry, PhOff, PhEnt, PhNum mirror the ELF header fields used to
	// build the auxiliary vector.
	Entry uint64
	PhOff uint64
	PhEnt uint16
	PhNum uint16

	Segments []Segment
}

// Script is everything the bootstrap needs to become the target image.
type Script struct {
	// ExecFn is the guest path of the image, for AT_EXECFN.
	ExecFn string

	Program Object

	HasInterp bool
	Interp    Object
}

var errScript = errors.New("loader: malformed load script")

// Encode serializes the script. It fails when the result would not fit
// the loader's buffer.
func (s *Script) Encode() ([]byte, error) {
	var buf bytes.Buffer
	w := func(v any) { binary.Write(&buf, binary.LittleEndian, v) }

	var flags uint32
	if s.HasInterp {
		flags |= flagHasInterp
	}
	w(uint32(scriptMagic))
	w(uint32(scriptVersion))
	w(uint32(0)) // total length, patched below
	w(flags)
	writeString(&buf, s.ExecFn)
	writeObject(&buf, &s.Program)
	if s.HasInterp {
		writeObject(&buf, &s.Interp)
	}

	out := buf.Bytes()
	if len(out) > AreaSize {
		return nil, fmt.Errorf("loader: script too large (%d bytes)", len(out))
	}
	binary.LittleEndian.PutUint32(out[8:], uint32(len(out)))
	return out, nil
}

// Decode parses a script out of the loader's buffer.
func Decode(data []byte) (*Script, error) {
	r := &reader{data: data}
	if r.u32() != scriptMagic {
		return nil, errScript
	}
	if r.u32() != scriptVersion {
		return nil, errScript
	}
	total := r.u32()
	if int(total) > len(data) {
		return nil, errScript
	}
	flags := r.u32()

	var s Script
	s.ExecFn = r.str()
	readObject(r, &s.Program)
	if flags&flagHasInterp != 0 {
		s.HasInterp = true
		readObject(r, &s.Interp)
	}
	if r.failed {
		return nil, errScript
	}
	return &s, nil
}

func writeObject(buf *bytes.Buffer, o *Object) {
	writeString(buf, o.Path)
	w := func(v any) { binary.Write(buf, binary.LittleEndian, v) }
	w(o.Type)
	w(o.PhEnt)
	w(o.PhNum)
	w(uint16(len(o.Segments)))
	w(o.Entry)
	w(o.PhOff)
	for _, seg := range o.Segments {
		w(seg.Offset)
		w(seg.Vaddr)
		w(seg.FileSz)
		w(seg.MemSz)
		w(seg.Prot)
	}
}

func readObject(r *reader, o *Object) {
	o.Path = r.str()
	o.Type = r.u16()
	o.PhEnt = r.u16()
	o.PhNum = r.u16()
	nsegs := int(r.u16())
	o.Entry = r.u64()
	o.PhOff = r.u64()
	if r.failed || nsegs > 64 {
		r.failed = true
		return
	}
	o.Segments = make([]Segment, nsegs)
	for i := range o.Segments {
		o.Segments[i] = Segment{
			Offset: r.u64(),
			Vaddr:  r.u64(),
			FileSz: r.u64(),
			MemSz:  r.u64(),
			Prot:   r.u32(),
		}
	}
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint16(len(s)))
	buf.WriteString(s)
}

type reader struct {
	data   []byte
	off    int
	failed bool
}

func (r *reader) take(n int) []byte {
	if r.failed || r.off+n > len(r.data) {
		r.failed = true
		return make([]byte, n)
	}
	out := r.data[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) u16() uint16 { return binary.LittleEndian.Uint16(r.take(2)) }
func (r *reader) u32() uint32 { return binary.LittleEndian.Uint32(r.take(4)) }
func (r *reader) u64() uint64 { return binary.LittleEndian.Uint64(r.take(8)) }
func (r *reader) str() string { return string(r.take(int(r.u16()))) }
