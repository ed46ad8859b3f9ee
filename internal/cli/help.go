package cli

import (
	_ "embed"
	"fmt"
)

//go:embed help_agent.md
var helpAgent string

type GuideCmd struct{}

// Run prints the tier table followed by the agent guide.
func (c *GuideCmd) Run(app *App) error {
	fmt.Fprintln(app.Stdout, "retrack: renovation tracker bridge")
	fmt.Fprintln(app.Stdout)
	fmt.Fprintln(app.Stdout, "tiers:")
	for _, op := range app.Registry.All() {
		fmt.Fprintf(app.Stdout, "  %-16s %s\n", op.Name(), op.Tier)
	}
	fmt.Fprintln(app.Stdout)
	fmt.Fprint(app.Stdout, helpAgent)
	return nil
}
