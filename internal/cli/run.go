package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/marcelocantos/retrack/internal/argv"
	"github.com/marcelocantos/retrack/internal/bridge"
	"github.com/marcelocantos/retrack/internal/errs"
)

// call runs one backend operation. The backend's stdout is passed through
// unchanged, even when it exits nonzero; with --json only the first JSON
// line is printed.
func (a *App) call(ctx context.Context, req argv.Request) error {
	opts := []bridge.CallOption{bridge.WithRetry(a.Globals.Retry)}
	if a.Globals.Timeout > 0 {
		opts = append(opts, bridge.WithTimeout(a.Globals.Timeout))
	}

	if a.Globals.JSON {
		p, err := a.Bridge.Structured(ctx, req, opts...)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Stdout, "%s\n", p.Value)
		return nil
	}

	reply, err := a.Bridge.Invoke(ctx, req, opts...)
	if reply != nil {
		io.WriteString(a.Stdout, reply.Result.Stdout)
	}
	return err
}

// report prints err and returns the exit status. A backend that exited
// nonzero has its stderr relayed verbatim and its status propagated; other
// failures are reported with their kind.
func (a *App) report(err error) int {
	if err == nil {
		return 0
	}
	var ee *errs.ExecutionError
	if errors.As(err, &ee) {
		if ee.Stderr != "" {
			io.WriteString(a.Stderr, ee.Stderr)
		} else {
			fmt.Fprintf(a.Stderr, "retrack: %v\n", err)
		}
		return bridge.ExitCode(err)
	}
	kind := errs.KindOf(err)
	fmt.Fprintf(a.Stderr, "retrack: %s: %v\n", kind, err)
	if kind == errs.KindDenied && !a.Globals.Retry {
		fmt.Fprintln(a.Stderr, "retrack: if the user approves, re-run with --retry")
	}
	return bridge.ExitCode(err)
}
