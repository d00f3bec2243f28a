package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptRoundTrip(t *testing.T) {
	in := &Script{
		ExecFn: "/bin/sh",
		Program: Object{
			Path:  "/rootfs/bin/sh",
			Type:  2, // ET_EXEC
			Entry: 0x401000,
			PhOff: 64,
			PhEnt: 56,
			PhNum: 9,
			Segments: []Segment{
				{Offset: 0, Vaddr: 0x400000, FileSz: 0x1000, MemSz: 0x1000, Prot: 4},
				{Offset: 0x1000, Vaddr: 0x401000, FileSz: 0x8000, MemSz: 0x9000, Prot: 5},
			},
		},
		HasInterp: true,
		Interp: Object{
			Path:     "/rootfs/lib/ld-musl-x86_64.so.1",
			Type:     3, // ET_DYN
			Entry:    0x1c30,
			PhOff:    64,
			PhEnt:    56,
			PhNum:    6,
			Segments: []Segment{{Offset: 0, Vaddr: 0, FileSz: 0x5000, MemSz: 0x6000, Prot: 5}},
		},
	}

	data, err := in.Encode()
	require.NoError(t, err)
	require.LessOrEqual(t, len(data), AreaSize)

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode(make([]byte, 64))
	assert.Error(t, err)

	_, err = Decode(nil)
	assert.Error(t, err)
}
