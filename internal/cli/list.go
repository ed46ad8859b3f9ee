package cli

import (
	"fmt"

	"github.com/marcelocantos/retrack/internal/catalog"
)

type OpsCmd struct {
	Tier string `help:"Only list operations of this tier (read, write, dangerous)."`
}

func (c *OpsCmd) Run(app *App) error {
	var filter *catalog.Tier
	if c.Tier != "" {
		t, err := catalog.ParseTier(c.Tier)
		if err != nil {
			return err
		}
		filter = &t
	}

	for _, op := range app.Registry.All() {
		if filter != nil && op.Tier != *filter {
			continue
		}
		state := ""
		if app.Registry.CheckTier(op.Tier) != nil {
			state = " (disabled)"
		}
		fmt.Fprintf(app.Stdout, "%-16s %-10s %s%s\n", op.Name(), op.Tier, op.Description, state)
	}
	return nil
}
