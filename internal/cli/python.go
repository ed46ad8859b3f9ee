package cli

import (
	"context"
	"encoding/json"
	"fmt"
)

type PythonCmd struct {
	Path  PythonPathCmd  `cmd:"" help:"Print the interpreter the next call would use."`
	Check PythonCheckCmd `cmd:"" help:"Check that the interpreter can run the backend."`
}

type PythonPathCmd struct{}

func (c *PythonPathCmd) Run(app *App, ctx context.Context) error {
	h, err := app.Bridge.Resolve(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(app.Stdout, h.Path)
	return nil
}

type PythonCheckCmd struct{}

func (c *PythonCheckCmd) Run(app *App, ctx context.Context) error {
	info, err := app.Bridge.Check(ctx)
	if info.Executable == "" {
		return err
	}
	if app.Globals.JSON {
		data, merr := json.Marshal(info)
		if merr != nil {
			return merr
		}
		fmt.Fprintf(app.Stdout, "%s\n", data)
	} else {
		fmt.Fprintf(app.Stdout, "executable:   %s\n", info.Executable)
		fmt.Fprintf(app.Stdout, "version:      %s\n", info.Version)
		fmt.Fprintf(app.Stdout, "origin:       %s\n", info.Origin)
		fmt.Fprintf(app.Stdout, "backend root: %s\n", info.BackendRoot)
		fmt.Fprintf(app.Stdout, "has backend:  %t\n", info.HasBackend)
	}
	return err
}
