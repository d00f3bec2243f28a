package memfd

import (
	"io"
	"os"
	"strconv"
	"strings"
	"testing"
)

func TestDupToMemfd(t *testing.T) {
	const content = "#!/bin/echo loader"

	file, err := DupToMemfd("test", strings.NewReader(content))
	if err != nil {
		t.Fatal("DupToMemfd:", err)
	}
	defer file.Close()

	got, err := io.ReadAll(file)
	if err != nil {
		t.Fatal("read memfd:", err)
	}
	if string(got) != content {
		t.Errorf("content = %q, want %q", got, content)
	}

	// sealed: writes must fail
	if _, err := file.Write([]byte("x")); err == nil {
		t.Error("write to sealed memfd succeeded")
	}
}

func TestMemfdReachableThroughProc(t *testing.T) {
	file, err := DupToMemfd("test", strings.NewReader("data"))
	if err != nil {
		t.Fatal("DupToMemfd:", err)
	}
	defer file.Close()

	// this is how tracees reach the loader
	reopened, err := os.Open("/proc/self/fd/" + strconv.Itoa(int(file.Fd())))
	if err != nil {
		t.Fatal("reopen through proc:", err)
	}
	defer reopened.Close()

	got, err := io.ReadAll(reopened)
	if err != nil {
		t.Fatal("read reopened:", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q, want %q", got, "data")
	}
}

