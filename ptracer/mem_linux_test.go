package ptracer

import (
	"os"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordBytesRoundTrip(t *testing.T) {
	var buf [8]byte
	bytesFromWord(0x0102030405060708, buf[:])
	assert.Equal(t, uint64(0x0102030405060708), wordFromBytes(buf[:]))

	// partial words keep little-endian order
	bytesFromWord(0xa1b2c3, buf[:3])
	assert.Equal(t, []byte{0xc3, 0xb2, 0xa1}, append([]byte(nil), buf[:3]...))
	assert.Equal(t, uint64(0xa1b2c3), wordFromBytes(buf[:3]))
}

// process_vm_readv also works on the calling process, which lets the
// read paths be exercised without a stopped tracee.
func TestMemReadSelf(t *testing.T) {
	m := Mem{Pid: os.Getpid()}

	data := []byte("guest path translation\x00trailing")
	addr := uintptr(unsafe.Pointer(&data[0]))

	buf := make([]byte, 10)
	require.NoError(t, m.ReadBytes(addr, buf))
	assert.Equal(t, []byte("guest path"), buf)

	s, err := m.ReadString(addr, 4096)
	require.NoError(t, err)
	assert.Equal(t, "guest path translation", s)
}

func TestMemReadStringTooLong(t *testing.T) {
	m := Mem{Pid: os.Getpid()}

	data := []byte("abcdefgh")
	addr := uintptr(unsafe.Pointer(&data[0]))

	_, err := m.ReadString(addr, 4)
	assert.Error(t, err)
}
