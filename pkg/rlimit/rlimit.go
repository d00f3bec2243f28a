// Package rlimit provides data structure for resource limits applied
// to the root tracee before it execs the guest command.
package rlimit

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"
)

// RLimit is a resource limit defined by Linux setrlimit.
type RLimit struct {
	// Res is the resource type (e.g. syscall.RLIMIT_CPU)
	Res int
	// Rlim is the limit applied to that resource
	Rlim syscall.Rlimit
}

var resByName = map[string]int{
	"as":      syscall.RLIMIT_AS,
	"core":    syscall.RLIMIT_CORE,
	"cpu":     syscall.RLIMIT_CPU,
	"data":    syscall.RLIMIT_DATA,
	"fsize":   syscall.RLIMIT_FSIZE,
	"nofile":  syscall.RLIMIT_NOFILE,
	"stack":   syscall.RLIMIT_STACK,
	"nproc":   0x6, // RLIMIT_NPROC
	"memlock": 0x8, // RLIMIT_MEMLOCK
}

// Parse reads a command-line limit of the form NAME=SOFT[:HARD], e.g.
// "cpu=10" or "fsize=1048576:2097152".
func Parse(spec string) (RLimit, error) {
	name, value, ok := strings.Cut(spec, "=")
	if !ok {
		return RLimit{}, fmt.Errorf("rlimit: missing '=' in %q", spec)
	}
	res, ok := resByName[strings.ToLower(name)]
	if !ok {
		return RLimit{}, fmt.Errorf("rlimit: unknown resource %q", name)
	}
	softStr, hardStr, hasHard := strings.Cut(value, ":")
	soft, err := strconv.ParseUint(softStr, 10, 64)
	if err != nil {
		return RLimit{}, fmt.Errorf("rlimit: bad value in %q: %w", spec, err)
	}
	hard := soft
	if hasHard {
		if hard, err = strconv.ParseUint(hardStr, 10, 64); err != nil {
			return RLimit{}, fmt.Errorf("rlimit: bad hard value in %q: %w", spec, err)
		}
	}
	if hard < soft {
		return RLimit{}, fmt.Errorf("rlimit: hard limit below soft limit in %q", spec)
	}
	return RLimit{Res: res, Rlim: syscall.Rlimit{Cur: soft, Max: hard}}, nil
}

func (r RLimit) String() string {
	for name, res := range resByName {
		if res == r.Res {
			return fmt.Sprintf("%s[%d:%d]", name, r.Rlim.Cur, r.Rlim.Max)
		}
	}
	return fmt.Sprintf("res%d[%d:%d]", r.Res, r.Rlim.Cur, r.Rlim.Max)
}
