package catalog

import "github.com/marcelocantos/retrack/internal/argv"

// ProjectData describes a new project. Nil and blank optional fields are
// not passed to the backend; zero or negative floors and zero square
// footage count as absent.
type ProjectData struct {
	Name          string   `json:"name"`
	Budget        float64  `json:"budget"`
	PropertyType  string   `json:"property_type"`
	PropertyClass string   `json:"property_class"`
	Description   *string  `json:"description,omitempty"`
	Floors        *int     `json:"floors,omitempty"`
	Sqft          *float64 `json:"sqft,omitempty"`
	Address       *string  `json:"address,omitempty"`
}

// ProjectUpdate lists the fields that may change after creation. Property
// type, class, floors and square footage are fixed at creation.
type ProjectUpdate struct {
	Name        *string  `json:"name,omitempty"`
	Budget      *float64 `json:"budget,omitempty"`
	Description *string  `json:"description,omitempty"`
	Status      *string  `json:"status,omitempty"`
	Address     *string  `json:"address,omitempty"`
}

// RoomData describes a room to add. Zero dimensions and a zero condition
// count as absent, leaving the backend's defaults in place.
type RoomData struct {
	Name      string   `json:"name"`
	Floor     int      `json:"floor"`
	Length    *float64 `json:"length,omitempty"`
	Width     *float64 `json:"width,omitempty"`
	Height    *float64 `json:"height,omitempty"`
	Condition *int     `json:"condition,omitempty"`
	Notes     *string  `json:"notes,omitempty"`
}

// ExpenseData describes an expense to add. Zero hours count as absent.
type ExpenseData struct {
	RoomName  string   `json:"room_name"`
	Category  string   `json:"category"`
	Cost      float64  `json:"cost"`
	Hours     *float64 `json:"hours,omitempty"`
	Condition *int     `json:"condition,omitempty"`
	Notes     *string  `json:"notes,omitempty"`
}

// ExpenseFilter narrows an expense listing.
type ExpenseFilter struct {
	Room     *string `json:"room,omitempty"`
	Category *string `json:"category,omitempty"`
}

// ExportOptions controls a CSV export.
type ExportOptions struct {
	Output     *string `json:"output,omitempty"`
	NoRooms    bool    `json:"no_rooms,omitempty"`
	NoExpenses bool    `json:"no_expenses,omitempty"`
}

func Init() argv.Request    { return argv.Request{Subject: "init"} }
func Version() argv.Request { return argv.Request{Subject: "version"} }
func Status() argv.Request  { return argv.Request{Subject: "status"} }

// Reset wipes the backend database. The backend refuses to proceed
// without confirm.
func Reset(confirm bool) argv.Request {
	return argv.Request{
		Subject: "reset",
		Options: []argv.Option{argv.Switch("--confirm", confirm)},
	}
}

func ListProjects() argv.Request {
	return argv.Request{Subject: "project", Verb: "list"}
}

func ShowProject(id int) argv.Request {
	return argv.Request{Subject: "project", Verb: "show", Positional: []string{argv.FormatInt(id)}}
}

func CreateProject(d ProjectData) argv.Request {
	return argv.Request{
		Subject: "project",
		Verb:    "create",
		Positional: []string{
			d.Name,
			argv.FormatFloat(d.Budget),
			d.PropertyType,
			d.PropertyClass,
		},
		Options: []argv.Option{
			argv.Text("--description", d.Description),
			argv.PositiveInt("--floors", d.Floors),
			argv.NonZeroFloat("--sqft", d.Sqft),
			argv.Text("--address", d.Address),
		},
	}
}

func UpdateProject(id int, u ProjectUpdate) argv.Request {
	return argv.Request{
		Subject:    "project",
		Verb:       "update",
		Positional: []string{argv.FormatInt(id)},
		Options: []argv.Option{
			argv.Text("--name", u.Name),
			argv.Float("--budget", u.Budget),
			argv.Text("--description", u.Description),
			argv.Text("--status", u.Status),
			argv.Text("--address", u.Address),
		},
	}
}

func DeleteProject(id int, force bool) argv.Request {
	return argv.Request{
		Subject:    "project",
		Verb:       "delete",
		Positional: []string{argv.FormatInt(id)},
		Options:    []argv.Option{argv.Switch("--force", force)},
	}
}

func ListRooms(projectID int) argv.Request {
	return argv.Request{Subject: "room", Verb: "list", Positional: []string{argv.FormatInt(projectID)}}
}

func AddRoom(projectID int, d RoomData) argv.Request {
	return argv.Request{
		Subject:    "room",
		Verb:       "add",
		Positional: []string{argv.FormatInt(projectID), d.Name, argv.FormatInt(d.Floor)},
		Options: []argv.Option{
			argv.NonZeroFloat("--length", d.Length),
			argv.NonZeroFloat("--width", d.Width),
			argv.NonZeroFloat("--height", d.Height),
			argv.PositiveInt("--condition", d.Condition),
			argv.Text("--notes", d.Notes),
		},
	}
}

func DeleteRoom(projectID int, name string, force bool) argv.Request {
	return argv.Request{
		Subject:    "room",
		Verb:       "delete",
		Positional: []string{argv.FormatInt(projectID), name},
		Options:    []argv.Option{argv.Switch("--force", force)},
	}
}

func ListExpenses(projectID int, f ExpenseFilter) argv.Request {
	return argv.Request{
		Subject:    "expense",
		Verb:       "list",
		Positional: []string{argv.FormatInt(projectID)},
		Options: []argv.Option{
			argv.Text("--room", f.Room),
			argv.Text("--category", f.Category),
		},
	}
}

func AddExpense(projectID int, d ExpenseData) argv.Request {
	return argv.Request{
		Subject: "expense",
		Verb:    "add",
		Positional: []string{
			argv.FormatInt(projectID),
			d.RoomName,
			d.Category,
			argv.FormatFloat(d.Cost),
		},
		Options: []argv.Option{
			argv.NonZeroFloat("--hours", d.Hours),
			argv.PositiveInt("--condition", d.Condition),
			argv.Text("--notes", d.Notes),
		},
	}
}

func DeleteExpense(id int, force bool) argv.Request {
	return argv.Request{
		Subject:    "expense",
		Verb:       "delete",
		Positional: []string{argv.FormatInt(id)},
		Options:    []argv.Option{argv.Switch("--force", force)},
	}
}

func BudgetStatus(projectID int) argv.Request {
	return argv.Request{Subject: "budget", Verb: "status", Positional: []string{argv.FormatInt(projectID)}}
}

func BudgetSummary() argv.Request {
	return argv.Request{Subject: "budget", Verb: "summary"}
}

func ExportCSV(projectID int, o ExportOptions) argv.Request {
	return argv.Request{
		Subject:    "export",
		Verb:       "csv",
		Positional: []string{argv.FormatInt(projectID)},
		Options: []argv.Option{
			argv.Text("--output", o.Output),
			argv.Switch("--no-rooms", o.NoRooms),
			argv.Switch("--no-expenses", o.NoExpenses),
		},
	}
}

func ExportSummary(output *string) argv.Request {
	return argv.Request{
		Subject: "export",
		Verb:    "summary",
		Options: []argv.Option{argv.Text("--output", output)},
	}
}
