// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package interp

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Prober verifies that a candidate interpreter runs.
type Prober interface {
	// Probe runs the interpreter with a version query and returns the
	// reported version. A non-nil error means the candidate is unusable.
	Probe(ctx context.Context, path string) (string, error)
}

// ExecProber probes by running "<path> --version" as a subprocess.
type ExecProber struct {
	Timeout     time.Duration
	CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd
	Prepare     func(cmd *exec.Cmd) // platform process attributes, optional
}

func (p *ExecProber) Probe(ctx context.Context, path string) (string, error) {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmdFn := p.CommandFunc
	if cmdFn == nil {
		cmdFn = exec.CommandContext
	}
	cmd := cmdFn(ctx, path, "--version")
	if p.Prepare != nil {
		p.Prepare(cmd)
	}

	// Older interpreters print the version on stderr.
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%s --version timed out after %v", path, timeout)
		}
		return "", fmt.Errorf("%s --version: %w", path, err)
	}
	return strings.TrimSpace(string(out)), nil
}
