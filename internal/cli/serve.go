package cli

import (
	"context"

	"github.com/marcelocantos/retrack/internal/bridge"
	"github.com/marcelocantos/retrack/internal/config"
	"github.com/marcelocantos/retrack/internal/mcpserver"
)

type ServeCmd struct {
	NoWatch bool `help:"Do not reload the config file when it changes."`
}

func (c *ServeCmd) Run(app *App, ctx context.Context) error {
	var src bridge.Source = config.Static{Config: app.Config}
	if !c.NoWatch {
		w, err := config.Watch(app.ConfigPath, app.Config, app.Log, func(cfg *config.Config) {
			cfg.Apply(app.Registry)
		})
		if err != nil {
			app.Log.Warn("config reload disabled", "path", app.ConfigPath, "error", err)
		} else {
			defer w.Close()
			src = w
		}
	}
	s := mcpserver.New(app.NewBridge(src), app.Registry, app.Audit, app.Log, app.Version)
	return s.Serve(ctx, app.Stdin, app.Stdout)
}
