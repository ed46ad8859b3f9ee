// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package proc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/marcelocantos/retrack/internal/errs"
	"github.com/marcelocantos/retrack/internal/interp"
)

// TestHelperProcess stands in for the backend. It is not a real test: it
// runs only when re-executed by helperCommand.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	// args: -- <interpreter> -m <module> <backend args...>
	if len(args) < 5 {
		fmt.Fprintln(os.Stderr, "helper: missing command")
		os.Exit(2)
	}
	backend := args[4:]

	switch backend[0] {
	case "echo":
		fmt.Println("Loaded 3 records")
		fmt.Println(`{"id":7,"name":"Kitchen"}`)
		fmt.Println("Done")
	case "fail":
		fmt.Fprint(os.Stderr, "ProjectNotFound: id 42")
		os.Exit(1)
	case "fail-json":
		fmt.Println(`{"ok":true}`)
		os.Exit(3)
	case "env":
		wd, _ := os.Getwd()
		json.NewEncoder(os.Stdout).Encode(map[string]any{
			"wd":               wd,
			"argv":             args[1:],
			"PYTHONIOENCODING": os.Getenv("PYTHONIOENCODING"),
			"PYTHONUTF8":       os.Getenv("PYTHONUTF8"),
			"VIRTUAL_ENV":      os.Getenv("VIRTUAL_ENV"),
			"PYTHONPATH":       os.Getenv("PYTHONPATH"),
			"PATH":             os.Getenv("PATH"),
		})
	case "sleep":
		time.Sleep(time.Minute)
	case "tree":
		// Stand-in for a venv launcher: the real work runs in a child.
		child := exec.Command(os.Args[0], "-test.run=TestHelperProcess", "--", args[1], "-m", args[3], "sleep")
		if err := child.Start(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		fmt.Println(child.Process.Pid)
		time.Sleep(time.Minute)
	}
	os.Exit(0)
}

func helperCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
	return exec.CommandContext(ctx, os.Args[0], cs...)
}

func helperEnviron() []string {
	var env []string
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "VIRTUAL_ENV=") || strings.HasPrefix(kv, "PYTHONPATH=") {
			continue
		}
		env = append(env, kv)
	}
	return append(env, "GO_WANT_HELPER_PROCESS=1")
}

func newHelperExecutor(t *testing.T, opts Options) *Executor {
	t.Helper()
	opts.CommandFunc = helperCommand
	opts.Environ = helperEnviron
	if opts.FallbackDir == "" {
		opts.FallbackDir = t.TempDir()
	}
	return New(opts)
}

var system = interp.Handle{Path: "python3", Origin: interp.OriginSystem}

func TestRunSuccess(t *testing.T) {
	e := newHelperExecutor(t, Options{})
	res, err := e.Run(context.Background(), system, []string{"echo"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success() {
		t.Fatalf("exit %d, stderr %q", res.ExitCode, res.Stderr)
	}
	if !strings.Contains(res.Stdout, `{"id":7,"name":"Kitchen"}`) {
		t.Errorf("stdout = %q", res.Stdout)
	}
}

func TestRunFailureKeepsStderr(t *testing.T) {
	e := newHelperExecutor(t, Options{})
	res, err := e.Run(context.Background(), system, []string{"fail"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success() || res.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", res.ExitCode)
	}
	if res.Stderr != "ProjectNotFound: id 42" {
		t.Errorf("Stderr = %q", res.Stderr)
	}
}

func TestNonzeroExitWithJSONIsFailure(t *testing.T) {
	e := newHelperExecutor(t, Options{})
	res, err := e.Run(context.Background(), system, []string{"fail-json"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success() {
		t.Error("nonzero exit classified as success")
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
}

type helperEnv struct {
	WD               string   `json:"wd"`
	Argv             []string `json:"argv"`
	PYTHONIOENCODING string
	PYTHONUTF8       string
	VIRTUAL_ENV      string
	PYTHONPATH       string
	PATH             string
}

func runEnv(t *testing.T, e *Executor, h interp.Handle) helperEnv {
	t.Helper()
	res, err := e.Run(context.Background(), h, []string{"env", "--flag", "v"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success() {
		t.Fatalf("exit %d: %s", res.ExitCode, res.Stderr)
	}
	var got helperEnv
	if err := json.Unmarshal([]byte(res.Stdout), &got); err != nil {
		t.Fatalf("decode %q: %v", res.Stdout, err)
	}
	return got
}

func samePath(t *testing.T, got, want string) bool {
	t.Helper()
	g, err1 := filepath.EvalSymlinks(got)
	w, err2 := filepath.EvalSymlinks(want)
	if err1 != nil || err2 != nil {
		return got == want
	}
	return g == w
}

func TestSystemInterpreterEnvironment(t *testing.T) {
	dir := t.TempDir()
	e := newHelperExecutor(t, Options{FallbackDir: dir, Module: "app.main"})
	got := runEnv(t, e, system)

	if !samePath(t, got.WD, dir) {
		t.Errorf("wd = %q, want %q", got.WD, dir)
	}
	wantArgv := []string{"python3", "-m", "app.main", "env", "--flag", "v"}
	if !slices.Equal(got.Argv, wantArgv) {
		t.Errorf("argv = %q, want %q", got.Argv, wantArgv)
	}
	if got.PYTHONIOENCODING != "utf-8" || got.PYTHONUTF8 != "1" {
		t.Errorf("encoding vars = %q %q", got.PYTHONIOENCODING, got.PYTHONUTF8)
	}
	if got.VIRTUAL_ENV != "" || got.PYTHONPATH != "" {
		t.Errorf("system interpreter got runtime vars: %+v", got)
	}
}

func TestBundledInterpreterEnvironment(t *testing.T) {
	root := t.TempDir()
	h := interp.Handle{
		Path:        filepath.Join(root, "venv", "bin", "python"),
		Origin:      interp.OriginBundledUnix,
		RuntimeDir:  filepath.Join(root, "venv"),
		BackendRoot: root,
	}
	e := newHelperExecutor(t, Options{})
	got := runEnv(t, e, h)

	if !samePath(t, got.WD, root) {
		t.Errorf("wd = %q, want backend root %q", got.WD, root)
	}
	if got.VIRTUAL_ENV != h.RuntimeDir {
		t.Errorf("VIRTUAL_ENV = %q", got.VIRTUAL_ENV)
	}
	if got.PYTHONPATH != root {
		t.Errorf("PYTHONPATH = %q", got.PYTHONPATH)
	}
	bin := filepath.Join(root, "venv", "bin")
	if !strings.HasPrefix(got.PATH, bin+string(os.PathListSeparator)) {
		t.Errorf("PATH = %q, want %q first", got.PATH, bin)
	}
}

func TestEnvOverridesInherited(t *testing.T) {
	e := New(Options{Environ: func() []string {
		return []string{"PYTHONIOENCODING=latin-1", "PATH=/usr/bin", "PYTHONHOME=/opt/py", "HOME=/home/u"}
	}})
	h := interp.Handle{
		Path:        filepath.Join("/b", "venv", "bin", "python"),
		Origin:      interp.OriginBundledUnix,
		RuntimeDir:  filepath.Join("/b", "venv"),
		BackendRoot: "/b",
	}
	env := e.Env(h)

	get := func(k string) (string, bool) { return getenv(env, k) }
	if v, _ := get("PYTHONIOENCODING"); v != "utf-8" {
		t.Errorf("PYTHONIOENCODING = %q", v)
	}
	if _, ok := get("PYTHONHOME"); ok {
		t.Error("PYTHONHOME should be removed for bundled runtimes")
	}
	if v, _ := get("HOME"); v != "/home/u" {
		t.Errorf("HOME = %q", v)
	}
	wantPath := filepath.Join("/b", "venv", "bin") + string(os.PathListSeparator) + "/usr/bin"
	if v, _ := get("PATH"); v != wantPath {
		t.Errorf("PATH = %q, want %q", v, wantPath)
	}
	n := 0
	for _, kv := range env {
		if strings.HasPrefix(kv, "PYTHONIOENCODING=") {
			n++
		}
	}
	if n != 1 {
		t.Errorf("PYTHONIOENCODING appears %d times", n)
	}
}

func TestWorkDir(t *testing.T) {
	e := New(Options{Getwd: func() (string, error) { return filepath.FromSlash("/home/u/app/desktop"), nil }})
	got, err := e.WorkDir(system)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.FromSlash("/home/u/app/backend"); got != want {
		t.Errorf("WorkDir(system) = %q, want %q", got, want)
	}

	bundled := interp.Handle{Origin: interp.OriginBundledWindows, BackendRoot: filepath.FromSlash("/opt/backend")}
	if got, _ := e.WorkDir(bundled); got != bundled.BackendRoot {
		t.Errorf("WorkDir(bundled) = %q", got)
	}

	failing := New(Options{Getwd: func() (string, error) { return "", errors.New("gone") }})
	if _, err := failing.WorkDir(system); err == nil {
		t.Error("expected error from Getwd")
	}
}

func TestLaunchFailure(t *testing.T) {
	e := New(Options{FallbackDir: t.TempDir()})
	h := interp.Handle{Path: filepath.Join(t.TempDir(), "no-such-python"), Origin: interp.OriginSystem}
	_, err := e.Run(context.Background(), h, []string{"project", "list"})
	var le *errs.LaunchError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want *errs.LaunchError", err)
	}
	if errs.KindOf(err) != errs.KindLaunch {
		t.Errorf("kind = %s", errs.KindOf(err))
	}
}

func TestCancellationKillsBackend(t *testing.T) {
	e := newHelperExecutor(t, Options{WaitDelay: 500 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := e.Run(ctx, system, []string{"sleep"})
	if errs.KindOf(err) != errs.KindCanceled {
		t.Fatalf("err = %v, want canceled", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err does not wrap DeadlineExceeded: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Second {
		t.Errorf("Run returned after %v", elapsed)
	}
}

func TestCancellationKillsDescendants(t *testing.T) {
	e := newHelperExecutor(t, Options{WaitDelay: 500 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := e.Run(ctx, system, []string{"tree"})
	if errs.KindOf(err) != errs.KindCanceled {
		t.Fatalf("err = %v, want canceled", err)
	}
	if res == nil {
		t.Fatal("no partial result")
	}
	pid, perr := strconv.Atoi(strings.TrimSpace(res.Stdout))
	if perr != nil {
		t.Fatalf("child pid not reported: %q", res.Stdout)
	}

	deadline := time.Now().Add(10 * time.Second)
	for !processGone(pid) {
		if time.Now().After(deadline) {
			t.Fatalf("child %d outlived the canceled call", pid)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestDefaultTimeout(t *testing.T) {
	e := newHelperExecutor(t, Options{Timeout: 200 * time.Millisecond, WaitDelay: 500 * time.Millisecond})
	_, err := e.Run(context.Background(), system, []string{"sleep"})
	if errs.KindOf(err) != errs.KindCanceled {
		t.Fatalf("err = %v, want canceled", err)
	}
}
