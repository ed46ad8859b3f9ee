// Package cli implements the retrack command line: one subcommand per
// backend operation plus interpreter, audit and server administration.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/marcelocantos/retrack/internal/audit"
	"github.com/marcelocantos/retrack/internal/bridge"
	"github.com/marcelocantos/retrack/internal/catalog"
	"github.com/marcelocantos/retrack/internal/config"
	"github.com/marcelocantos/retrack/internal/logging"
)

// Globals are flags accepted by every command.
type Globals struct {
	Config   string        `help:"Config file (default: $XDG_CONFIG_HOME/retrack/config.yaml)." type:"path" env:"RETRACK_CONFIG"`
	JSON     bool          `help:"Print only the first JSON line of the backend output."`
	Retry    bool          `help:"Bypass configurable rules for this call. Hardcoded rules still apply."`
	Timeout  time.Duration `help:"Per-call timeout; overrides exec.timeout."`
	LogLevel string        `help:"Log level (debug, info, warn, error); overrides log.level."`
}

// CLI is the kong command tree.
type CLI struct {
	Globals

	Init    InitCmd    `cmd:"" help:"Create the backend database."`
	Status  StatusCmd  `cmd:"" help:"Show backend and database status."`
	Reset   ResetCmd   `cmd:"" help:"Delete all data and recreate the database."`
	Version VersionCmd `cmd:"" help:"Show the retrack and backend versions."`

	Project ProjectCmd `cmd:"" help:"Manage projects."`
	Room    RoomCmd    `cmd:"" help:"Manage a project's rooms."`
	Expense ExpenseCmd `cmd:"" help:"Manage a project's expenses."`
	Budget  BudgetCmd  `cmd:"" help:"Budget reports."`
	Export  ExportCmd  `cmd:"" help:"Export project data."`

	Python PythonCmd `cmd:"" help:"Inspect the interpreter the backend runs under."`
	Audit  AuditCmd  `cmd:"" help:"Inspect the audit log."`
	Ops    OpsCmd    `cmd:"" help:"List backend operations and their tiers."`
	Guide  GuideCmd  `cmd:"" help:"Print the usage guide for agents driving retrack."`
	Serve  ServeCmd  `cmd:"" help:"Serve the operations as MCP tools on stdio."`
}

// Options wires Run to its environment. Zero values select the process's
// own streams and os.Exit.
type Options struct {
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Version string
	Exit    func(int)

	// Bridge seeds the bridge options; Run fills in the config, registry,
	// audit sink and logger.
	Bridge bridge.Options
}

// App is the state shared by commands after flags are parsed.
type App struct {
	Globals    *Globals
	ConfigPath string
	Config     *config.Config
	Registry   *catalog.Registry
	Audit      audit.Sink
	Log        *logging.Logger
	Bridge     *bridge.Bridge
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
	Version    string

	bridgeOpts bridge.Options
}

// NewBridge returns a bridge reading its config from src.
func (a *App) NewBridge(src bridge.Source) *bridge.Bridge {
	opts := a.bridgeOpts
	opts.Config = src
	opts.Registry = a.Registry
	opts.Audit = a.Audit
	opts.Logger = a.Log
	return bridge.New(opts)
}

// Run parses args, runs the selected command and returns the exit status.
func Run(ctx context.Context, args []string, opts Options) int {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Exit == nil {
		opts.Exit = os.Exit
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	var c CLI
	parser, err := kong.New(&c,
		kong.Name("retrack"),
		kong.Description("Drive the renovation tracker backend from the command line or an MCP host."),
		kong.UsageOnError(),
		kong.Writers(opts.Stdout, opts.Stderr),
		kong.Exit(opts.Exit),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "retrack: %v\n", err)
		return 2
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "retrack: %v\n", err)
		return 2
	}

	app, err := setup(ctx, &c.Globals, opts)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "retrack: %v\n", err)
		return 1
	}
	defer app.close()

	return app.report(kctx.Run(app))
}

func setup(ctx context.Context, g *Globals, opts Options) (*App, error) {
	path := g.Config
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}

	log, err := logging.New(cfg.Log.Path, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}

	reg := catalog.NewRegistry()
	cfg.Apply(reg)

	sink, err := audit.Open(ctx, cfg.Audit.Driver, cfg.Audit.Path)
	if err != nil {
		// Continue without audit logging.
		log.Warn("audit log unavailable", "driver", cfg.Audit.Driver, "path", cfg.Audit.Path, "error", err)
		sink = audit.Discard{}
	}

	app := &App{
		Globals:    g,
		ConfigPath: path,
		Config:     cfg,
		Registry:   reg,
		Audit:      sink,
		Log:        log,
		Stdin:      opts.Stdin,
		Stdout:     opts.Stdout,
		Stderr:     opts.Stderr,
		Version:    opts.Version,
		bridgeOpts: opts.Bridge,
	}
	app.Bridge = app.NewBridge(config.Static{Config: cfg})
	return app, nil
}

func (a *App) close() {
	if err := a.Audit.Close(); err != nil {
		a.Log.Warn("closing audit log", "error", err)
	}
	a.Log.Close()
}
