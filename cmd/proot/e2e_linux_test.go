package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// The end-to-end scenarios need a built proot + proot-loader pair and a
// guest rootfs containing busybox:
//
//	PROOT_TEST_BIN=/path/to/proot PROOT_TEST_ROOTFS=/path/to/rootfs go test ./cmd/proot
func e2eEnv(t *testing.T) (bin, rootfs string) {
	t.Helper()
	bin = os.Getenv("PROOT_TEST_BIN")
	rootfs = os.Getenv("PROOT_TEST_ROOTFS")
	if bin == "" || rootfs == "" {
		t.Skip("PROOT_TEST_BIN / PROOT_TEST_ROOTFS not set")
	}
	return bin, rootfs
}

func runProot(t *testing.T, bin string, args ...string) (string, int) {
	t.Helper()
	cmd := exec.Command(bin, args...)
	out, err := cmd.Output()
	code := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	} else if err != nil {
		t.Fatalf("run %v: %v", args, err)
	}
	return string(out), code
}

func TestE2EPwdAtRoot(t *testing.T) {
	bin, rootfs := e2eEnv(t)
	out, code := runProot(t, bin, "-r", rootfs, "--", "/bin/pwd", "-P")
	if code != 0 || out != "/\n" {
		t.Fatalf("pwd -P = %q (exit %d), want %q", out, code, "/\n")
	}
}

func TestE2EInitialCwd(t *testing.T) {
	bin, rootfs := e2eEnv(t)
	_, code := runProot(t, bin, "-r", rootfs, "-w", "/bin", "--", "./true")
	if code != 0 {
		t.Fatalf("./true from /bin: exit %d", code)
	}
}

func TestE2EShellChdir(t *testing.T) {
	bin, rootfs := e2eEnv(t)
	out, code := runProot(t, bin, "-r", rootfs, "--", "/bin/sh", "-c", "cd /etc; pwd -P")
	if code != 0 || out != "/etc\n" {
		t.Fatalf("cd /etc; pwd -P = %q (exit %d), want %q", out, code, "/etc\n")
	}
}

func TestE2EBindDiff(t *testing.T) {
	bin, _ := e2eEnv(t)
	if _, err := exec.LookPath("diff"); err != nil {
		t.Skip("no diff on the host")
	}
	out, code := runProot(t, bin, "-b", "/etc:/home", "--", "/bin/diff", "-r", "/etc", "/home")
	if code != 0 {
		t.Fatalf("diff /etc /home under a bind: exit %d, out %q", code, out)
	}
}

func TestE2EShebang(t *testing.T) {
	bin, rootfs := e2eEnv(t)
	script := filepath.Join(rootfs, "script")
	if err := os.WriteFile(script, []byte("#!/bin/echo 123\n"), 0o755); err != nil {
		t.Skipf("rootfs not writable: %v", err)
	}
	defer os.Remove(script)

	out, code := runProot(t, bin, "-r", rootfs, "--", "./script", "--x")
	if code != 0 || out != "123 ./script --x\n" {
		t.Fatalf("shebang run = %q (exit %d), want %q", out, code, "123 ./script --x\n")
	}
}

func TestE2ESignalExitCode(t *testing.T) {
	bin, rootfs := e2eEnv(t)
	_, code := runProot(t, bin, "-r", rootfs, "--", "/bin/sh", "-c", "kill -9 $$")
	if code != 128+9 {
		t.Fatalf("killed tracee: exit %d, want %d", code, 128+9)
	}
}
