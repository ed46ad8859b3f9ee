package audit

import (
	"context"
	"fmt"
)

// Drivers accepted by Open.
const (
	DriverJSONL  = "jsonl"
	DriverSQLite = "sqlite"
	DriverNone   = "none"
)

// Open returns the sink for driver. DriverNone returns a sink that drops
// everything.
func Open(ctx context.Context, driver, path string) (Sink, error) {
	switch driver {
	case DriverJSONL, "":
		return OpenChain(path)
	case DriverSQLite:
		return NewSQLite(ctx, path)
	case DriverNone:
		return Discard{}, nil
	default:
		return nil, fmt.Errorf("unknown audit driver: %q", driver)
	}
}

// Discard is a Sink that keeps nothing.
type Discard struct{}

func (Discard) Record(context.Context, Entry) error        { return nil }
func (Discard) Tail(context.Context, int) ([]Entry, error) { return nil, nil }
func (Discard) Close() error                               { return nil }
