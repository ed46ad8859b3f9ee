// Package errs defines the failure taxonomy of the backend bridge.
//
// Every error returned across the bridge boundary renders as a single
// descriptive message and also carries a machine-readable Kind, so hosts can
// branch on the failure class without parsing text:
//
//	switch errs.KindOf(err) {
//	case errs.KindInterpreterNotFound:
//		// offer to install a runtime
//	case errs.KindExecution:
//		var ee *errs.ExecutionError
//		errors.As(err, &ee) // ee.Stderr holds the backend's message
//	}
package errs

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a bridge failure.
type Kind int

const (
	KindNone Kind = iota
	KindInterpreterNotFound
	KindBackendUnavailable
	KindLaunch
	KindExecution
	KindParse
	KindDenied
	KindCanceled
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInterpreterNotFound:
		return "interpreter_not_found"
	case KindBackendUnavailable:
		return "backend_unavailable"
	case KindLaunch:
		return "process_launch_failure"
	case KindExecution:
		return "process_execution_failure"
	case KindParse:
		return "output_parse_failure"
	case KindDenied:
		return "operation_denied"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Sentinel errors, one per Kind.
var (
	ErrInterpreterNotFound = errors.New("interpreter not found")
	ErrBackendUnavailable  = errors.New("backend unavailable")
	ErrLaunch              = errors.New("process launch failed")
	ErrExecution           = errors.New("backend process failed")
	ErrParse               = errors.New("no structured output")
	ErrDenied              = errors.New("operation denied")
	ErrCanceled            = errors.New("call canceled")
)

// NotFoundError reports that no interpreter candidate verified.
type NotFoundError struct {
	Tried []string // candidates that were probed, in order
}

func (e *NotFoundError) Error() string {
	if len(e.Tried) == 0 {
		return "no usable interpreter found (no candidates examined)"
	}
	return fmt.Sprintf("no usable interpreter found (tried: %s)", strings.Join(e.Tried, ", "))
}

func (e *NotFoundError) Unwrap() error { return ErrInterpreterNotFound }

// BackendError reports a verified interpreter that cannot import the backend module.
type BackendError struct {
	Interpreter string
	Module      string
	Detail      string // stderr of the import check, if any
	Err         error
}

func (e *BackendError) Error() string {
	msg := fmt.Sprintf("backend module %s is not importable by %s", e.Module, e.Interpreter)
	if d := strings.TrimSpace(e.Detail); d != "" {
		msg += ": " + d
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BackendError) Unwrap() []error { return []error{ErrBackendUnavailable, e.Err} }

// LaunchError reports that the OS could not spawn the process.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() []error { return []error{ErrLaunch, e.Err} }

// ExecutionError reports a backend process that exited with a nonzero status.
// Stderr holds the backend's error text exactly as captured.
type ExecutionError struct {
	Operation string
	ExitCode  int
	Stderr    string
}

func (e *ExecutionError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = "no error output"
	}
	if e.Operation != "" {
		return fmt.Sprintf("%s failed (exit %d): %s", e.Operation, e.ExitCode, msg)
	}
	return fmt.Sprintf("backend failed (exit %d): %s", e.ExitCode, msg)
}

func (e *ExecutionError) Unwrap() error { return ErrExecution }

// ParseError reports output without any decodable structured line, or a
// structured line that does not fit the requested type (Err set).
// Text holds the full original output.
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("structured output does not decode: %v", e.Err)
	}
	return fmt.Sprintf("no valid JSON found in backend output: %s", e.Text)
}

func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Err} }

// DeniedError reports a call refused before any process was spawned.
type DeniedError struct {
	Operation string
	Reason    string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Operation, e.Reason)
}

func (e *DeniedError) Unwrap() error { return ErrDenied }

// CanceledError reports a call terminated by its context.
type CanceledError struct {
	Operation string
	Err       error
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("%s: canceled: %v", e.Operation, e.Err)
}

func (e *CanceledError) Unwrap() []error { return []error{ErrCanceled, e.Err} }

// KindOf classifies err. Context errors that were not wrapped by the bridge
// are reported as KindCanceled.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInterpreterNotFound):
		return KindInterpreterNotFound
	case errors.Is(err, ErrBackendUnavailable):
		return KindBackendUnavailable
	case errors.Is(err, ErrCanceled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, ErrLaunch):
		return KindLaunch
	case errors.Is(err, ErrExecution):
		return KindExecution
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrDenied):
		return KindDenied
	default:
		return KindUnknown
	}
}
