package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/marcelocantos/retrack/internal/catalog"
)

// Optional flags are plain values; the zero value means "not given".
func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

func optFloat(f float64) *float64 {
	if f == 0 {
		return nil
	}
	return &f
}

// optNumber parses a flag that may legitimately be zero, e.g. a budget.
func optNumber(name, s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("--%s: %q is not a number", name, s)
	}
	return &f, nil
}

type InitCmd struct{}

func (c *InitCmd) Run(app *App, ctx context.Context) error {
	return app.call(ctx, catalog.Init())
}

type StatusCmd struct{}

func (c *StatusCmd) Run(app *App, ctx context.Context) error {
	return app.call(ctx, catalog.Status())
}

type ResetCmd struct {
	Confirm bool `help:"Confirm that all data should be deleted."`
}

func (c *ResetCmd) Run(app *App, ctx context.Context) error {
	return app.call(ctx, catalog.Reset(c.Confirm))
}

type VersionCmd struct{}

func (c *VersionCmd) Run(app *App, ctx context.Context) error {
	fmt.Fprintf(app.Stdout, "retrack %s\n", app.Version)
	return app.call(ctx, catalog.Version())
}

type ProjectCmd struct {
	List   ProjectListCmd   `cmd:"" help:"List all projects."`
	Show   ProjectShowCmd   `cmd:"" help:"Show one project."`
	Create ProjectCreateCmd `cmd:"" help:"Create a project."`
	Update ProjectUpdateCmd `cmd:"" help:"Update a project."`
	Delete ProjectDeleteCmd `cmd:"" help:"Delete a project with its rooms and expenses."`
}

type ProjectListCmd struct{}

func (c *ProjectListCmd) Run(app *App, ctx context.Context) error {
	return app.call(ctx, catalog.ListProjects())
}

type ProjectShowCmd struct {
	ID int `arg:"" help:"Project id."`
}

func (c *ProjectShowCmd) Run(app *App, ctx context.Context) error {
	return app.call(ctx, catalog.ShowProject(c.ID))
}

type ProjectCreateCmd struct {
	Name          string  `arg:"" help:"Project name."`
	Budget        float64 `arg:"" help:"Total budget."`
	PropertyType  string  `arg:"" help:"Property type."`
	PropertyClass string  `arg:"" help:"Property class."`
	Description   string  `help:"Project description."`
	Floors        int     `help:"Number of floors."`
	Sqft          float64 `help:"Square footage."`
	Address       string  `help:"Property address."`
}

func (c *ProjectCreateCmd) Run(app *App, ctx context.Context) error {
	return app.call(ctx, catalog.CreateProject(catalog.ProjectData{
		Name:          c.Name,
		Budget:        c.Budget,
		PropertyType:  c.PropertyType,
		PropertyClass: c.PropertyClass,
		Description:   optString(c.Description),
		Floors:        optInt(c.Floors),
		Sqft:          optFloat(c.Sqft),
		Address:       optString(c.Address),
	}))
}

type ProjectUpdateCmd struct {
	ID          int    `arg:"" help:"Project id."`
	Name        string `help:"New name."`
	Budget      string `help:"New budget."`
	Description string `help:"New description."`
	Status      string `help:"New status."`
	Address     string `help:"New address."`
}

func (c *ProjectUpdateCmd) Run(app *App, ctx context.Context) error {
	budget, err := optNumber("budget", c.Budget)
	if err != nil {
		return err
	}
	return app.call(ctx, catalog.UpdateProject(c.ID, catalog.ProjectUpdate{
		Name:        optString(c.Name),
		Budget:      budget,
		Description: optString(c.Description),
		Status:      optString(c.Status),
		Address:     optString(c.Address),
	}))
}

type ProjectDeleteCmd struct {
	ID    int  `arg:"" help:"Project id."`
	Force bool `help:"Skip the backend's confirmation."`
}

func (c *ProjectDeleteCmd) Run(app *App, ctx context.Context) error {
	return app.call(ctx, catalog.DeleteProject(c.ID, c.Force))
}

type RoomCmd struct {
	List   RoomListCmd   `cmd:"" help:"List a project's rooms."`
	Add    RoomAddCmd    `cmd:"" help:"Add a room to a project."`
	Delete RoomDeleteCmd `cmd:"" help:"Delete a room and its expenses."`
}

type RoomListCmd struct {
	ProjectID int `arg:"" help:"Project id."`
}

func (c *RoomListCmd) Run(app *App, ctx context.Context) error {
	return app.call(ctx, catalog.ListRooms(c.ProjectID))
}

type RoomAddCmd struct {
	ProjectID int     `arg:"" help:"Project id."`
	Name      string  `arg:"" help:"Room name."`
	Floor     int     `arg:"" help:"Floor number."`
	Length    float64 `help:"Length in feet."`
	Width     float64 `help:"Width in feet."`
	Height    float64 `help:"Height in feet."`
	Condition int     `help:"Condition rating, 1 to 10."`
	Notes     string  `help:"Notes."`
}

func (c *RoomAddCmd) Run(app *App, ctx context.Context) error {
	return app.call(ctx, catalog.AddRoom(c.ProjectID, catalog.RoomData{
		Name:      c.Name,
		Floor:     c.Floor,
		Length:    optFloat(c.Length),
		Width:     optFloat(c.Width),
		Height:    optFloat(c.Height),
		Condition: optInt(c.Condition),
		Notes:     optString(c.Notes),
	}))
}

type RoomDeleteCmd struct {
	ProjectID int    `arg:"" help:"Project id."`
	Name      string `arg:"" help:"Room name."`
	Force     bool   `help:"Skip the backend's confirmation."`
}

func (c *RoomDeleteCmd) Run(app *App, ctx context.Context) error {
	return app.call(ctx, catalog.DeleteRoom(c.ProjectID, c.Name, c.Force))
}

type ExpenseCmd struct {
	List   ExpenseListCmd   `cmd:"" help:"List a project's expenses."`
	Add    ExpenseAddCmd    `cmd:"" help:"Add an expense to a room."`
	Delete ExpenseDeleteCmd `cmd:"" help:"Delete an expense."`
}

type ExpenseListCmd struct {
	ProjectID int    `arg:"" help:"Project id."`
	Room      string `help:"Only this room."`
	Category  string `help:"Only this category."`
}

func (c *ExpenseListCmd) Run(app *App, ctx context.Context) error {
	return app.call(ctx, catalog.ListExpenses(c.ProjectID, catalog.ExpenseFilter{
		Room:     optString(c.Room),
		Category: optString(c.Category),
	}))
}

type ExpenseAddCmd struct {
	ProjectID int     `arg:"" help:"Project id."`
	Room      string  `arg:"" help:"Room name."`
	Category  string  `arg:"" help:"Expense category."`
	Cost      float64 `arg:"" help:"Cost."`
	Hours     float64 `help:"Labor hours."`
	Condition int     `help:"Condition rating after the work, 1 to 10."`
	Notes     string  `help:"Notes."`
}

func (c *ExpenseAddCmd) Run(app *App, ctx context.Context) error {
	return app.call(ctx, catalog.AddExpense(c.ProjectID, catalog.ExpenseData{
		RoomName:  c.Room,
		Category:  c.Category,
		Cost:      c.Cost,
		Hours:     optFloat(c.Hours),
		Condition: optInt(c.Condition),
		Notes:     optString(c.Notes),
	}))
}

type ExpenseDeleteCmd struct {
	ID    int  `arg:"" help:"Expense id."`
	Force bool `help:"Skip the backend's confirmation."`
}

func (c *ExpenseDeleteCmd) Run(app *App, ctx context.Context) error {
	return app.call(ctx, catalog.DeleteExpense(c.ID, c.Force))
}

type BudgetCmd struct {
	Status  BudgetStatusCmd  `cmd:"" help:"Show a project's budget status."`
	Summary BudgetSummaryCmd `cmd:"" help:"Summarize budgets across projects."`
}

type BudgetStatusCmd struct {
	ProjectID int `arg:"" help:"Project id."`
}

func (c *BudgetStatusCmd) Run(app *App, ctx context.Context) error {
	return app.call(ctx, catalog.BudgetStatus(c.ProjectID))
}

type BudgetSummaryCmd struct{}

func (c *BudgetSummaryCmd) Run(app *App, ctx context.Context) error {
	return app.call(ctx, catalog.BudgetSummary())
}

type ExportCmd struct {
	CSV     ExportCSVCmd     `cmd:"" name:"csv" help:"Export a project as CSV."`
	Summary ExportSummaryCmd `cmd:"" help:"Export a summary of all projects."`
}

type ExportCSVCmd struct {
	ProjectID  int    `arg:"" help:"Project id."`
	Output     string `short:"o" help:"Output file."`
	NoRooms    bool   `help:"Leave out rooms."`
	NoExpenses bool   `help:"Leave out expenses."`
}

func (c *ExportCSVCmd) Run(app *App, ctx context.Context) error {
	return app.call(ctx, catalog.ExportCSV(c.ProjectID, catalog.ExportOptions{
		Output:     optString(c.Output),
		NoRooms:    c.NoRooms,
		NoExpenses: c.NoExpenses,
	}))
}

type ExportSummaryCmd struct {
	Output string `short:"o" help:"Output file."`
}

func (c *ExportSummaryCmd) Run(app *App, ctx context.Context) error {
	return app.call(ctx, catalog.ExportSummary(optString(c.Output)))
}
