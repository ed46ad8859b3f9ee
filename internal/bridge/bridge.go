// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

// Package bridge invokes backend operations. Each call authorizes the
// request, resolves an interpreter afresh, builds the argument vector,
// runs the backend and records the outcome in the audit sink.
//
// Calls share no mutable state, so any number may run concurrently. The
// bridge does not serialize calls that touch the same backend record;
// ordering between concurrent mutations is up to the backend.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/marcelocantos/retrack/internal/argv"
	"github.com/marcelocantos/retrack/internal/audit"
	"github.com/marcelocantos/retrack/internal/catalog"
	"github.com/marcelocantos/retrack/internal/config"
	"github.com/marcelocantos/retrack/internal/errs"
	"github.com/marcelocantos/retrack/internal/interp"
	"github.com/marcelocantos/retrack/internal/logging"
	"github.com/marcelocantos/retrack/internal/output"
	"github.com/marcelocantos/retrack/internal/proc"
)

// Source supplies the config for each call. *config.Watcher and
// config.Static implement it.
type Source interface {
	Current() *config.Config
}

// Runner executes a resolved interpreter. *proc.Executor implements it.
type Runner interface {
	Run(ctx context.Context, h interp.Handle, args []string) (*proc.Result, error)
	WorkDir(h interp.Handle) (string, error)
}

// Options configures a Bridge. Only Config and Registry are required.
type Options struct {
	Config      Source
	Registry    *catalog.Registry
	Audit       audit.Sink
	Logger      *logging.Logger
	Fs          afero.Fs
	Prober      interp.Prober
	CommandFunc proc.CommandFunc
	Environ     func() []string
	Getwd       func() (string, error)
	Build       func(argv.Request) []string
	NewRunner   func(proc.Options) Runner
}

// Bridge is safe for concurrent use.
type Bridge struct {
	source      Source
	reg         *catalog.Registry
	sink        audit.Sink
	log         *logging.Logger
	fs          afero.Fs
	prober      interp.Prober
	commandFunc proc.CommandFunc
	environ     func() []string
	getwd       func() (string, error)
	build       func(argv.Request) []string
	newRunner   func(proc.Options) Runner
}

// New returns a Bridge for opts.
func New(opts Options) *Bridge {
	b := &Bridge{
		source:      opts.Config,
		reg:         opts.Registry,
		sink:        opts.Audit,
		log:         opts.Logger,
		fs:          opts.Fs,
		prober:      opts.Prober,
		commandFunc: opts.CommandFunc,
		environ:     opts.Environ,
		getwd:       opts.Getwd,
		build:       opts.Build,
		newRunner:   opts.NewRunner,
	}
	if b.sink == nil {
		b.sink = audit.Discard{}
	}
	if b.fs == nil {
		b.fs = afero.NewOsFs()
	}
	if b.getwd == nil {
		b.getwd = os.Getwd
	}
	if b.build == nil {
		b.build = argv.Build
	}
	if b.newRunner == nil {
		b.newRunner = func(o proc.Options) Runner { return proc.New(o) }
	}
	return b
}

// Reply is the outcome of a call that reached the backend.
type Reply struct {
	CallID      string
	Operation   string
	Interpreter interp.Handle
	Args        []string
	Result      *proc.Result
}

type callOptions struct {
	retry   bool
	timeout time.Duration
}

// CallOption adjusts a single call.
type CallOption func(*callOptions)

// WithRetry bypasses config rules for this call. Hardcoded rules and
// disabled tiers still apply.
func WithRetry(retry bool) CallOption {
	return func(o *callOptions) { o.retry = retry }
}

// WithTimeout bounds this call, overriding the configured default.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

// Invoke runs req and returns the backend's raw result. A nonzero exit
// returns both the Reply and an *errs.ExecutionError carrying the
// backend's stderr.
func (b *Bridge) Invoke(ctx context.Context, req argv.Request, opts ...CallOption) (*Reply, error) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := b.source.Current()
	reply := &Reply{CallID: uuid.NewString(), Operation: req.Name()}
	log := b.log.With("call_id", reply.CallID, "operation", reply.Operation)
	entry := audit.Entry{
		CallID:    reply.CallID,
		Operation: reply.Operation,
		Retry:     o.retry,
		ExitCode:  -1,
	}
	start := time.Now()

	err := b.invoke(ctx, cfg, req, o, reply, &entry, log)

	entry.Duration = audit.Millis(time.Since(start))
	if err != nil {
		entry.ErrorKind = errs.KindOf(err).String()
		entry.Error = err.Error()
		log.Info("backend call failed", "kind", entry.ErrorKind, "error", err, "duration", time.Since(start))
	} else {
		log.Info("backend call finished", "interpreter", entry.Interpreter, "exit_code", entry.ExitCode, "duration", time.Since(start))
	}
	if rerr := b.sink.Record(context.WithoutCancel(ctx), entry); rerr != nil {
		log.Warn("audit record failed", "error", rerr)
	}

	if reply.Result == nil {
		return nil, err
	}
	return reply, err
}

func (b *Bridge) invoke(ctx context.Context, cfg *config.Config, req argv.Request, o callOptions, reply *Reply, entry *audit.Entry, log *logging.Logger) error {
	op, err := b.reg.Authorize(req, o.retry)
	if op.Name() != "" {
		entry.Tier = op.Tier.String()
	}
	if err != nil {
		return &errs.DeniedError{Operation: req.Name(), Reason: err.Error()}
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	base, err := b.base(cfg)
	if err != nil {
		return &errs.LaunchError{Path: cfg.Backend.Root, Err: err}
	}

	h, err := b.resolver(cfg, base, log).Resolve(ctx)
	if err != nil {
		return err
	}
	reply.Interpreter = h
	entry.Interpreter = h.Path

	args := b.build(req)
	reply.Args = args
	entry.Args = args

	runner := b.runner(cfg, base, log)
	cwd, err := runner.WorkDir(h)
	if err != nil {
		// Run fails with a LaunchError for the same reason.
		log.Warn("backend working directory unavailable", "error", err)
	}
	entry.Cwd = cwd

	res, err := runner.Run(ctx, h, args)
	if res != nil {
		reply.Result = res
		entry.ExitCode = res.ExitCode
	}
	if err != nil {
		return err
	}
	if !res.Success() {
		return &errs.ExecutionError{Operation: req.Name(), ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return nil
}

// Text runs req and returns its stdout unchanged.
func (b *Bridge) Text(ctx context.Context, req argv.Request, opts ...CallOption) (string, error) {
	reply, err := b.Invoke(ctx, req, opts...)
	if err != nil {
		return "", err
	}
	return output.Raw(reply.Result.Stdout), nil
}

// Structured runs req and extracts the first JSON line of its stdout.
// Output without one yields an *errs.ParseError.
func (b *Bridge) Structured(ctx context.Context, req argv.Request, opts ...CallOption) (output.Payload, error) {
	reply, err := b.Invoke(ctx, req, opts...)
	if err != nil {
		return output.Payload{}, err
	}
	p := output.Extract(reply.Result.Stdout, b.log.With("call_id", reply.CallID))
	return p, p.Err()
}

// Decode runs req and unmarshals the first JSON line of its stdout into T.
func Decode[T any](ctx context.Context, b *Bridge, req argv.Request, opts ...CallOption) (T, error) {
	reply, err := b.Invoke(ctx, req, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return output.Decode[T](reply.Result.Stdout, b.log.With("call_id", reply.CallID))
}

// Resolve finds the interpreter the next call would use.
func (b *Bridge) Resolve(ctx context.Context) (interp.Handle, error) {
	cfg := b.source.Current()
	base, err := b.base(cfg)
	if err != nil {
		return interp.Handle{}, err
	}
	return b.resolver(cfg, base, b.log).Resolve(ctx)
}

// Info describes the interpreter and whether it can run the backend.
type Info struct {
	Executable  string `json:"executable"`
	Version     string `json:"version"`
	Origin      string `json:"origin"`
	BackendRoot string `json:"backend_root"`
	HasBackend  bool   `json:"has_backend"`
}

// Check resolves an interpreter and asks the backend module for its help
// text, using the same working directory and environment as a real call.
// When the module cannot run, Info is still filled in and the error is an
// *errs.BackendError.
func (b *Bridge) Check(ctx context.Context) (Info, error) {
	cfg := b.source.Current()
	base, err := b.base(cfg)
	if err != nil {
		return Info{}, err
	}
	h, err := b.resolver(cfg, base, b.log).Resolve(ctx)
	if err != nil {
		return Info{}, err
	}
	runner := b.runner(cfg, base, b.log)
	info := Info{Executable: h.Path, Version: h.Version, Origin: h.Origin.String()}
	if info.BackendRoot, err = runner.WorkDir(h); err != nil {
		b.log.Warn("backend working directory unavailable", "error", err)
	}

	res, err := runner.Run(ctx, h, []string{"--help"})
	if err == nil && res.Success() {
		info.HasBackend = true
		return info, nil
	}
	if errs.KindOf(err) == errs.KindCanceled {
		return info, err
	}
	be := &errs.BackendError{Interpreter: h.Path, Module: cfg.Backend.Module, Err: err}
	if res != nil {
		be.Detail = res.Stderr
		if err == nil {
			be.Err = fmt.Errorf("exit status %d", res.ExitCode)
		}
	}
	return info, be
}

func (b *Bridge) base(cfg *config.Config) (string, error) {
	root := cfg.Backend.Root
	if root == "" {
		root = proc.DefaultFallbackDir
	}
	if filepath.IsAbs(root) {
		return filepath.Clean(root), nil
	}
	wd, err := b.getwd()
	if err != nil {
		return "", fmt.Errorf("working directory: %w", err)
	}
	return filepath.Join(wd, root), nil
}

func (b *Bridge) resolver(cfg *config.Config, base string, log *logging.Logger) *interp.Resolver {
	layouts, err := cfg.Layouts()
	if err != nil {
		// LoadFrom validates layouts; a hand-built config may not have been.
		log.Warn("ignoring configured layouts", "error", err)
		layouts = nil
	}
	prober := b.prober
	if prober == nil {
		prober = &interp.ExecProber{
			Timeout:     cfg.Exec.ProbeTimeoutDuration(),
			CommandFunc: b.commandFunc,
			Prepare:     proc.Configure,
		}
	}
	return interp.New(interp.Options{
		Base:        base,
		Fs:          b.fs,
		Prober:      prober,
		Layouts:     layouts,
		SystemNames: cfg.SystemNames(),
		Logger:      log,
	})
}

func (b *Bridge) runner(cfg *config.Config, base string, log *logging.Logger) Runner {
	return b.newRunner(proc.Options{
		Module:      cfg.Backend.Module,
		FallbackDir: base,
		Timeout:     cfg.Exec.TimeoutDuration(),
		CommandFunc: b.commandFunc,
		Environ:     b.environ,
		Getwd:       b.getwd,
		Logger:      log,
	})
}

// ExitCode maps an error from the bridge to a process exit status: the
// backend's own status for execution failures, a fixed code per kind
// otherwise.
func ExitCode(err error) int {
	var ee *errs.ExecutionError
	if errors.As(err, &ee) && ee.ExitCode > 0 {
		return ee.ExitCode
	}
	switch errs.KindOf(err) {
	case errs.KindNone:
		return 0
	case errs.KindInterpreterNotFound:
		return 3
	case errs.KindBackendUnavailable:
		return 4
	case errs.KindLaunch:
		return 5
	case errs.KindParse:
		return 6
	case errs.KindDenied:
		return 7
	case errs.KindCanceled:
		return 130
	default:
		return 1
	}
}
