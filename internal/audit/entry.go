// Package audit records every backend call, allowed, refused or failed.
package audit

import (
	"context"
	"time"
)

// Entry represents a single audit record.
type Entry struct {
	Seq         uint64    `json:"seq"`
	Time        time.Time `json:"ts"`
	PrevHash    string    `json:"prev_hash,omitempty"`
	CallID      string    `json:"call_id"`
	Operation   string    `json:"operation"`             // "project create"
	Args        []string  `json:"args"`                  // argv passed after the module flags
	Tier        string    `json:"tier"`                  // tier of the operation
	Retry       bool      `json:"retry,omitempty"`       // true if config rules were bypassed
	Interpreter string    `json:"interpreter,omitempty"` // resolved interpreter path
	ExitCode    int       `json:"exit_code"`             // backend exit status; -1 when no process ran
	ErrorKind   string    `json:"error_kind,omitempty"`
	Error       string    `json:"error,omitempty"`
	Duration    float64   `json:"duration_ms"`
	Cwd         string    `json:"cwd,omitempty"` // backend working directory
	Hash        string    `json:"hash,omitempty"`
}

// Sink stores audit entries. Implementations assign Seq and Time.
type Sink interface {
	Record(ctx context.Context, e Entry) error
	Tail(ctx context.Context, n int) ([]Entry, error)
	Close() error
}

// Millis converts d to the fractional milliseconds stored in Entry.Duration.
func Millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
