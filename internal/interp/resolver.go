// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

// Package interp finds a runnable interpreter for the backend.
//
// A Resolver is cheap and holds no results: callers build one per call so
// every call sees the filesystem as it is now. Filesystem access and
// verification subprocesses are injected, so tests need neither.
package interp

import (
	"context"
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"

	"github.com/marcelocantos/retrack/internal/errs"
	"github.com/marcelocantos/retrack/internal/logging"
)

// Candidate is an interpreter considered during resolution.
type Candidate struct {
	Path        string // absolute path for bundled runtimes, bare name for system ones
	Origin      Origin
	Layout      string
	RuntimeDir  string
	BackendRoot string // empty for system candidates
	Verified    bool
}

// Handle is the verified interpreter chosen for one call.
type Handle struct {
	Path        string
	Origin      Origin
	Layout      string
	RuntimeDir  string
	BackendRoot string
	Version     string
}

// Bundled reports whether the handle refers to a bundled runtime.
func (h Handle) Bundled() bool { return h.Origin.Bundled() }

// Options configures a Resolver. Zero values select the defaults.
type Options struct {
	Base        string // backend base directory; layouts are relative to it
	Fs          afero.Fs
	Prober      Prober
	Layouts     []Layout // bundled layouts, highest priority first
	SystemNames []string
	Logger      *logging.Logger
}

// Resolver evaluates candidates in a fixed priority order.
type Resolver struct {
	base        string
	fs          afero.Fs
	prober      Prober
	layouts     []Layout
	systemNames []string
	log         *logging.Logger
}

// New returns a Resolver for opts.
func New(opts Options) *Resolver {
	r := &Resolver{
		base:        opts.Base,
		fs:          opts.Fs,
		prober:      opts.Prober,
		layouts:     opts.Layouts,
		systemNames: opts.SystemNames,
		log:         opts.Logger,
	}
	if r.fs == nil {
		r.fs = afero.NewOsFs()
	}
	if r.prober == nil {
		r.prober = &ExecProber{}
	}
	if r.layouts == nil {
		r.layouts = DefaultLayouts(runtime.GOOS)
	}
	if r.systemNames == nil {
		r.systemNames = DefaultSystemNames
	}
	return r
}

// Candidates returns every candidate in priority order, unverified.
func (r *Resolver) Candidates() []Candidate {
	out := make([]Candidate, 0, len(r.layouts)+len(r.systemNames))
	for _, l := range r.layouts {
		out = append(out, Candidate{
			Path:        r.abs(l.Interpreter),
			Origin:      l.Origin,
			Layout:      l.Name,
			RuntimeDir:  r.abs(l.Runtime),
			BackendRoot: r.abs(l.BackendRoot),
		})
	}
	for _, name := range r.systemNames {
		out = append(out, Candidate{Path: name, Origin: OriginSystem, Layout: "system"})
	}
	return out
}

// Resolve returns the first candidate that verifies. Bundled candidates
// missing from the filesystem are skipped without spawning anything;
// every other candidate costs one probe, run sequentially.
func (r *Resolver) Resolve(ctx context.Context) (Handle, error) {
	var tried []string
	for _, c := range r.Candidates() {
		if err := ctx.Err(); err != nil {
			return Handle{}, &errs.CanceledError{Operation: "resolve interpreter", Err: err}
		}
		if c.Origin.Bundled() {
			if _, err := r.fs.Stat(c.Path); err != nil {
				r.log.Debug("bundled interpreter absent", "layout", c.Layout, "path", c.Path)
				continue
			}
		}
		tried = append(tried, c.Path)
		version, err := r.prober.Probe(ctx, c.Path)
		if err != nil {
			r.log.Debug("interpreter probe failed", "candidate", c.Path, "origin", c.Origin.String(), "error", err)
			continue
		}
		c.Verified = true
		r.log.Debug("interpreter resolved", "candidate", c.Path, "origin", c.Origin.String(), "version", version)
		return Handle{
			Path:        c.Path,
			Origin:      c.Origin,
			Layout:      c.Layout,
			RuntimeDir:  c.RuntimeDir,
			BackendRoot: c.BackendRoot,
			Version:     version,
		}, nil
	}
	if err := ctx.Err(); err != nil {
		return Handle{}, &errs.CanceledError{Operation: "resolve interpreter", Err: err}
	}
	return Handle{}, &errs.NotFoundError{Tried: tried}
}

func (r *Resolver) abs(rel string) string {
	if rel == "" {
		rel = "."
	}
	p := filepath.FromSlash(rel)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(r.base, p)
}
