// Command proot executes a program inside a guest rootfs without any
// privilege: every tracee syscall that names a path is intercepted
// with ptrace and rewritten between the guest and host views.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/proot-me/proot-go/config"
	"github.com/proot-me/proot-go/pkg/forkexec"
	"github.com/proot-me/proot-go/pkg/rlimit"
	"github.com/proot-me/proot-go/pkg/seccomp"
	"github.com/proot-me/proot-go/ptracer"
	"github.com/proot-me/proot-go/syscalls"
	"github.com/proot-me/proot-go/syscalls/execve"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		rootfs, cwd, profilePath, loaderPath  string
		binds, rlimits                        []string
		noDefaultBinds, noSeccomp, killOnExit bool
		verbose, showVersion                  bool
	)

	flags := pflag.NewFlagSet("proot", pflag.ContinueOnError)
	flags.SortFlags = false
	// leave everything after the command untouched
	flags.SetInterspersed(false)
	flags.StringVarP(&rootfs, "rootfs", "r", "", "guest root directory (default \"/\")")
	flags.StringVarP(&cwd, "cwd", "w", "", "initial guest working directory (default \"/\")")
	flags.StringArrayVarP(&binds, "bind", "b", nil, "bind HOST[:GUEST] into the guest view (repeatable)")
	flags.StringVar(&profilePath, "config", "", "YAML profile seeding the options")
	flags.StringVar(&loaderPath, "loader", "", "bootstrap loader binary (default: next to this executable)")
	flags.StringArrayVar(&rlimits, "rlimit", nil, "NAME=SOFT[:HARD] resource limit for the command (repeatable)")
	flags.BoolVar(&noDefaultBinds, "no-default-bindings", false, "do not bind /dev, /proc, /sys, /tmp and the resolver files")
	flags.BoolVar(&noSeccomp, "no-seccomp", false, "disable the seccomp acceleration")
	flags.BoolVar(&killOnExit, "kill-on-exit", false, "kill remaining tracees when the tracer exits")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	flags.BoolVarP(&showVersion, "version", "V", false, "print version and exit")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: proot [options] command [args...]\n\n%s", flags.FlagUsages())
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintln(os.Stderr, "proot:", err)
		return 1
	}
	if showVersion {
		fmt.Println("proot", version)
		return 0
	}
	args := flags.Args()
	if len(args) == 0 {
		flags.Usage()
		return 1
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := &config.Config{}
	if profilePath != "" {
		var err error
		if cfg, err = config.LoadProfile(profilePath); err != nil {
			fmt.Fprintln(os.Stderr, "proot:", err)
			return 1
		}
	}
	if flags.Changed("rootfs") {
		cfg.RootFS = rootfs
	}
	if flags.Changed("cwd") {
		cfg.Cwd = cwd
	}
	if flags.Changed("bind") {
		cfg.Binds = append(cfg.Binds, binds...)
	}
	if flags.Changed("rlimit") {
		cfg.RLimits = append(cfg.RLimits, rlimits...)
	}
	if flags.Changed("no-default-bindings") {
		cfg.NoDefaultBinds = noDefaultBinds
	}
	if flags.Changed("no-seccomp") {
		cfg.NoSeccomp = noSeccomp
	}
	if flags.Changed("kill-on-exit") {
		cfg.KillOnExit = killOnExit
	}
	if flags.Changed("loader") {
		cfg.Loader = loaderPath
	}

	fs, initialCwd, err := cfg.BuildFS()
	if err != nil {
		fmt.Fprintln(os.Stderr, "proot:", err)
		return 1
	}

	ld, err := execve.NewLoader(resolveLoader(cfg.Loader))
	if err != nil {
		fmt.Fprintln(os.Stderr, "proot:", err)
		return 1
	}

	var limits []rlimit.RLimit
	for _, spec := range cfg.RLimits {
		l, err := rlimit.Parse(spec)
		if err != nil {
			fmt.Fprintln(os.Stderr, "proot:", err)
			return 1
		}
		limits = append(limits, l)
	}

	runner := &forkexec.Runner{
		Args:    args,
		Env:     os.Environ(),
		RLimits: limits,
	}
	// keep the kernel-side cwd roughly in step; the guest cwd is what
	// actually matters for translation
	if host, err := fs.Translate("/", initialCwd, true); err == nil {
		runner.WorkDir = host
	}

	accelerated := false
	if !cfg.NoSeccomp {
		filter, err := seccomp.BuildFilter(syscalls.TracedSyscalls())
		if err != nil {
			logger.Warn("seccomp acceleration unavailable", "err", err)
		} else {
			runner.Seccomp = filter.SockFprog()
			accelerated = true
		}
	}

	tracer := &ptracer.Tracer{
		Handler:    &syscalls.Handler{FS: fs, Loader: ld, Logger: logger},
		Runner:     runner,
		Logger:     logger,
		InitialCwd: initialCwd,
		Seccomp:    accelerated,
		KillOnExit: cfg.KillOnExit,
	}
	result := tracer.TraceRun()
	if result.Err != nil {
		fmt.Fprintln(os.Stderr, "proot:", result.Err)
		return 1
	}
	if result.Signal != 0 {
		return 128 + result.Signal
	}
	return result.ExitStatus
}

// resolveLoader finds the bootstrap loader: explicit setting first,
// then a proot-loader next to this executable.
func resolveLoader(configured string) string {
	if configured != "" {
		return configured
	}
	if exe, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(exe), "proot-loader")
	}
	return "proot-loader"
}
