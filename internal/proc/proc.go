// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

// Package proc runs the backend as a subprocess and classifies the outcome
// by exit status alone.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/marcelocantos/retrack/internal/errs"
	"github.com/marcelocantos/retrack/internal/interp"
	"github.com/marcelocantos/retrack/internal/logging"
)

// Defaults applied by New.
const (
	DefaultModule      = "src.cli"
	DefaultFallbackDir = "../backend"
	DefaultWaitDelay   = 2 * time.Second
)

// CommandFunc creates the command to run. exec.CommandContext by default;
// tests substitute a helper process.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Options configures an Executor.
type Options struct {
	Module      string        // backend entry module, run with -m
	FallbackDir string        // working directory for system interpreters
	Timeout     time.Duration // applied when the caller's context has no deadline; 0 disables
	WaitDelay   time.Duration // bound on output draining after the process is killed
	CommandFunc CommandFunc
	Environ     func() []string
	Getwd       func() (string, error)
	Logger      *logging.Logger
}

// Result is the outcome of one backend process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Success reports a zero exit status. Output content is never consulted.
func (r *Result) Success() bool { return r.ExitCode == 0 }

// Executor launches the backend.
type Executor struct {
	module      string
	fallbackDir string
	timeout     time.Duration
	waitDelay   time.Duration
	commandFunc CommandFunc
	environ     func() []string
	getwd       func() (string, error)
	log         *logging.Logger
}

// New returns an Executor for opts.
func New(opts Options) *Executor {
	e := &Executor{
		module:      opts.Module,
		fallbackDir: opts.FallbackDir,
		timeout:     opts.Timeout,
		waitDelay:   opts.WaitDelay,
		commandFunc: opts.CommandFunc,
		environ:     opts.Environ,
		getwd:       opts.Getwd,
		log:         opts.Logger,
	}
	if e.module == "" {
		e.module = DefaultModule
	}
	if e.fallbackDir == "" {
		e.fallbackDir = DefaultFallbackDir
	}
	if e.waitDelay == 0 {
		e.waitDelay = DefaultWaitDelay
	}
	if e.commandFunc == nil {
		e.commandFunc = exec.CommandContext
	}
	if e.environ == nil {
		e.environ = os.Environ
	}
	if e.getwd == nil {
		e.getwd = os.Getwd
	}
	return e
}

// WorkDir returns the directory the backend runs in: the handle's backend
// root for bundled runtimes, otherwise the fallback directory resolved
// against the current working directory.
func (e *Executor) WorkDir(h interp.Handle) (string, error) {
	if h.Bundled() && h.BackendRoot != "" {
		return h.BackendRoot, nil
	}
	if filepath.IsAbs(e.fallbackDir) {
		return filepath.Clean(e.fallbackDir), nil
	}
	wd, err := e.getwd()
	if err != nil {
		return "", fmt.Errorf("working directory: %w", err)
	}
	return filepath.Join(wd, e.fallbackDir), nil
}

// Env returns the child environment: the parent's, with UTF-8 output
// forced. Bundled runtimes are also activated the way a virtual
// environment's activate script would, and the backend root is put on the
// module search path.
func (e *Executor) Env(h interp.Handle) []string {
	env := e.environ()
	env = setenv(env, "PYTHONIOENCODING", "utf-8")
	env = setenv(env, "PYTHONUTF8", "1")
	if !h.Bundled() {
		return env
	}
	if h.RuntimeDir != "" {
		env = setenv(env, "VIRTUAL_ENV", h.RuntimeDir)
	}
	bin := filepath.Dir(h.Path)
	if path, ok := getenv(env, "PATH"); ok && path != "" {
		env = setenv(env, "PATH", bin+string(os.PathListSeparator)+path)
	} else {
		env = setenv(env, "PATH", bin)
	}
	env = unsetenv(env, "PYTHONHOME")
	if h.BackendRoot != "" {
		env = setenv(env, "PYTHONPATH", h.BackendRoot)
	}
	return env
}

// Run executes "<interpreter> -m <module> args..." once and waits for it.
// A nonzero exit is not an error: it is reported in Result.ExitCode.
// Errors are *errs.LaunchError when the process could not start and
// *errs.CanceledError when ctx ended first; the whole process group is
// killed in that case.
func (e *Executor) Run(ctx context.Context, h interp.Handle, args []string) (*Result, error) {
	dir, err := e.WorkDir(h)
	if err != nil {
		return nil, &errs.LaunchError{Path: h.Path, Err: err}
	}

	if _, ok := ctx.Deadline(); !ok && e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	full := make([]string, 0, 2+len(args))
	full = append(full, "-m", e.module)
	full = append(full, args...)

	var stdout, stderr bytes.Buffer
	cmd := e.commandFunc(ctx, h.Path, full...)
	cmd.Dir = dir
	cmd.Env = e.Env(h)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = e.waitDelay
	Configure(cmd)
	g := newGroup(cmd)
	defer g.close()

	e.log.Debug("spawning backend", "interpreter", h.Path, "dir", dir, "args", strings.Join(args, " "))

	start := time.Now()
	err = cmd.Start()
	if err == nil {
		if gerr := g.attach(cmd); gerr != nil {
			e.log.Warn("backend descendants may outlive cancellation", "error", gerr)
		}
		err = cmd.Wait()
	}
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil && !errors.Is(err, exec.ErrWaitDelay) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, &errs.CanceledError{Operation: strings.Join(args, " "), Err: ctxErr}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			e.log.Debug("backend exited", "exit_code", res.ExitCode, "duration", res.Duration)
			return res, nil
		}
		return nil, &errs.LaunchError{Path: h.Path, Err: err}
	}

	res.ExitCode = cmd.ProcessState.ExitCode()
	e.log.Debug("backend exited", "exit_code", res.ExitCode, "duration", res.Duration)
	return res, nil
}

func getenv(env []string, key string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		k, v, ok := strings.Cut(env[i], "=")
		if ok && envKeyEqual(k, key) {
			return v, true
		}
	}
	return "", false
}

func setenv(env []string, key, value string) []string {
	return append(unsetenv(env, key), key+"="+value)
}

func unsetenv(env []string, key string) []string {
	out := env[:0:0]
	for _, kv := range env {
		k, _, _ := strings.Cut(kv, "=")
		if envKeyEqual(k, key) {
			continue
		}
		out = append(out, kv)
	}
	return out
}
