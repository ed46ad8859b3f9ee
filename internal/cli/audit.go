package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marcelocantos/retrack/internal/audit"
)

type AuditCmd struct {
	Verify AuditVerifyCmd `cmd:"" help:"Check the hash chain of the JSONL audit log."`
	Show   AuditShowCmd   `cmd:"" help:"Show the most recent audit entries."`
}

type AuditVerifyCmd struct{}

func (c *AuditVerifyCmd) Run(app *App) error {
	switch app.Config.Audit.Driver {
	case audit.DriverJSONL, "":
	default:
		return fmt.Errorf("audit verify: the %s driver keeps no hash chain", app.Config.Audit.Driver)
	}
	n, err := audit.Verify(app.Config.Audit.Path)
	if err != nil {
		return fmt.Errorf("audit verification FAILED after %d entries: %w", n, err)
	}
	fmt.Fprintf(app.Stdout, "audit log integrity verified (%d entries)\n", n)
	return nil
}

type AuditShowCmd struct {
	N int `short:"n" default:"20" help:"Number of entries."`
}

func (c *AuditShowCmd) Run(app *App, ctx context.Context) error {
	entries, err := app.Audit.Tail(ctx, c.N)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(app.Stdout, "no audit entries")
		return nil
	}
	for _, e := range entries {
		if app.Globals.JSON {
			data, _ := json.Marshal(e)
			fmt.Fprintf(app.Stdout, "%s\n", data)
			continue
		}
		data, _ := json.MarshalIndent(e, "", "  ")
		fmt.Fprintf(app.Stdout, "%s\n", data)
	}
	return nil
}
