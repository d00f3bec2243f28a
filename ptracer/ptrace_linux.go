package ptracer

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ptrace constants absent from the syscall package
const (
	_NT_PRSTATUS        = 1
	_NT_ARM_SYSTEM_CALL = 0x404
)

func ptrace(request int, pid int, addr uintptr, data uintptr) (err error) {
	_, _, e1 := syscall.Syscall6(syscall.SYS_PTRACE, uintptr(request), uintptr(pid), addr, data, 0, 0)
	if e1 != 0 {
		err = e1
	}
	return
}

func ptraceGetRegSet(pid int, regs *syscall.PtraceRegs) error {
	iov := getIovec((*byte)(unsafe.Pointer(regs)), int(unsafe.Sizeof(*regs)))
	return ptrace(syscall.PTRACE_GETREGSET, pid, _NT_PRSTATUS, uintptr(unsafe.Pointer(&iov)))
}

func ptraceSetRegSet(pid int, regs *syscall.PtraceRegs) error {
	iov := getIovec((*byte)(unsafe.Pointer(regs)), int(unsafe.Sizeof(*regs)))
	return ptrace(syscall.PTRACE_SETREGSET, pid, _NT_PRSTATUS, uintptr(unsafe.Pointer(&iov)))
}

func getIovec(base *byte, l int) unix.Iovec {
	return unix.Iovec{Base: base, Len: uint64(l)}
}
