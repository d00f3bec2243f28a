package seccomp

import (
	"strconv"

	"github.com/elastic/go-seccomp-bpf/arch"
)

var info, errInfo = arch.GetInfo("")

// SyscallName resolves a syscall number of the native ABI to its name,
// falling back to the number itself.
func SyscallName(sysno uint64) string {
	if errInfo != nil {
		return strconv.FormatUint(sysno, 10)
	}
	if name, ok := info.SyscallNumbers[int(sysno)]; ok {
		return name
	}
	return strconv.FormatUint(sysno, 10)
}

// SyscallNames maps the given syscall numbers to names, skipping the
// ones unknown to the native ABI.
func SyscallNames(sysnos []uint64) []string {
	names := make([]string, 0, len(sysnos))
	for _, no := range sysnos {
		if errInfo == nil {
			if name, ok := info.SyscallNumbers[int(no)]; ok {
				names = append(names, name)
			}
		}
	}
	return names
}
