package catalog

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/marcelocantos/retrack/internal/argv"
)

// ParamKind is the value type of an operation parameter.
type ParamKind int

const (
	ParamString ParamKind = iota
	ParamInt
	ParamNumber
	ParamBool
)

// Param describes one input of an operation, named the way hosts send it.
type Param struct {
	Name        string
	Kind        ParamKind
	Required    bool
	Description string
}

// Args is a source of named parameter values.
type Args interface {
	Int(name string) (int, bool)
	Float(name string) (float64, bool)
	String(name string) (string, bool)
	Bool(name string) bool
}

// Operation is one backend command.
type Operation struct {
	Subject     string
	Verb        string
	Description string
	Tier        Tier
	Params      []Param
	build       func(Args) argv.Request
}

// Name returns "subject verb", or just the subject for top-level commands.
func (o Operation) Name() string {
	if o.Verb == "" {
		return o.Subject
	}
	return o.Subject + " " + o.Verb
}

// ToolName returns the name with words joined by underscores.
func (o Operation) ToolName() string {
	return strings.ReplaceAll(o.Name(), " ", "_")
}

// Missing returns the names of required parameters absent from a.
func (o Operation) Missing(a Args) []string {
	var missing []string
	for _, p := range o.Params {
		if !p.Required {
			continue
		}
		var ok bool
		switch p.Kind {
		case ParamInt:
			_, ok = a.Int(p.Name)
		case ParamNumber:
			_, ok = a.Float(p.Name)
		case ParamString:
			_, ok = a.String(p.Name)
		case ParamBool:
			ok = true
		}
		if !ok {
			missing = append(missing, p.Name)
		}
	}
	return missing
}

// Request builds the operation's request from a. Callers check Missing
// first; absent required values are passed as zero values.
func (o Operation) Request(a Args) argv.Request {
	return o.build(a)
}

// MapArgs reads parameters from decoded JSON arguments.
type MapArgs map[string]any

func (m MapArgs) Float(name string) (float64, bool) {
	switch v := m[name].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Int accepts integral numbers only; 2.5 is not an id.
func (m MapArgs) Int(name string) (int, bool) {
	f, ok := m.Float(name)
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f >= float64(math.MaxInt) || f < float64(math.MinInt) {
		return 0, false
	}
	return int(f), true
}

func (m MapArgs) String(name string) (string, bool) {
	s, ok := m[name].(string)
	return s, ok
}

func (m MapArgs) Bool(name string) bool {
	b, _ := m[name].(bool)
	return b
}

func optString(a Args, name string) *string {
	if s, ok := a.String(name); ok {
		return &s
	}
	return nil
}

func optFloat(a Args, name string) *float64 {
	if f, ok := a.Float(name); ok {
		return &f
	}
	return nil
}

func optInt(a Args, name string) *int {
	if i, ok := a.Int(name); ok {
		return &i
	}
	return nil
}

func reqInt(a Args, name string) int {
	i, _ := a.Int(name)
	return i
}

func reqFloat(a Args, name string) float64 {
	f, _ := a.Float(name)
	return f
}

func reqString(a Args, name string) string {
	s, _ := a.String(name)
	return s
}

var (
	pID        = Param{Name: "id", Kind: ParamInt, Required: true, Description: "Record id"}
	pProjectID = Param{Name: "project_id", Kind: ParamInt, Required: true, Description: "Project id"}
	pForce     = Param{Name: "force", Kind: ParamBool, Description: "Skip the backend's confirmation"}
	pNotes     = Param{Name: "notes", Kind: ParamString, Description: "Free-form notes"}
	pCondition = Param{Name: "condition", Kind: ParamInt, Description: "Condition rating 1-5"}
	pOutput    = Param{Name: "output", Kind: ParamString, Description: "Output file path"}
)

// Operations returns every backend operation in catalog order.
func Operations() []Operation {
	return []Operation{
		{
			Subject: "init", Tier: TierWrite,
			Description: "Initialise the backend database",
			build:       func(Args) argv.Request { return Init() },
		},
		{
			Subject: "version", Tier: TierRead,
			Description: "Show the backend version",
			build:       func(Args) argv.Request { return Version() },
		},
		{
			Subject: "status", Tier: TierRead,
			Description: "Show backend and database status",
			build:       func(Args) argv.Request { return Status() },
		},
		{
			Subject: "reset", Tier: TierDangerous,
			Description: "Delete all data and recreate the database",
			Params:      []Param{{Name: "confirm", Kind: ParamBool, Description: "Confirm the reset"}},
			build:       func(a Args) argv.Request { return Reset(a.Bool("confirm")) },
		},
		{
			Subject: "project", Verb: "list", Tier: TierRead,
			Description: "List all projects",
			build:       func(Args) argv.Request { return ListProjects() },
		},
		{
			Subject: "project", Verb: "show", Tier: TierRead,
			Description: "Show one project",
			Params:      []Param{pID},
			build:       func(a Args) argv.Request { return ShowProject(reqInt(a, "id")) },
		},
		{
			Subject: "project", Verb: "create", Tier: TierWrite,
			Description: "Create a project",
			Params: []Param{
				{Name: "name", Kind: ParamString, Required: true, Description: "Project name"},
				{Name: "budget", Kind: ParamNumber, Required: true, Description: "Total budget"},
				{Name: "property_type", Kind: ParamString, Required: true, Description: "Property type, e.g. flip or rental"},
				{Name: "property_class", Kind: ParamString, Required: true, Description: "Property class, e.g. residential"},
				{Name: "description", Kind: ParamString, Description: "Project description"},
				{Name: "floors", Kind: ParamInt, Description: "Number of floors"},
				{Name: "sqft", Kind: ParamNumber, Description: "Square footage"},
				{Name: "address", Kind: ParamString, Description: "Property address"},
			},
			build: func(a Args) argv.Request {
				return CreateProject(ProjectData{
					Name:          reqString(a, "name"),
					Budget:        reqFloat(a, "budget"),
					PropertyType:  reqString(a, "property_type"),
					PropertyClass: reqString(a, "property_class"),
					Description:   optString(a, "description"),
					Floors:        optInt(a, "floors"),
					Sqft:          optFloat(a, "sqft"),
					Address:       optString(a, "address"),
				})
			},
		},
		{
			Subject: "project", Verb: "update", Tier: TierWrite,
			Description: "Update a project's mutable fields",
			Params: []Param{
				pID,
				{Name: "name", Kind: ParamString, Description: "New name"},
				{Name: "budget", Kind: ParamNumber, Description: "New budget"},
				{Name: "description", Kind: ParamString, Description: "New description"},
				{Name: "status", Kind: ParamString, Description: "New status"},
				{Name: "address", Kind: ParamString, Description: "New address"},
			},
			build: func(a Args) argv.Request {
				return UpdateProject(reqInt(a, "id"), ProjectUpdate{
					Name:        optString(a, "name"),
					Budget:      optFloat(a, "budget"),
					Description: optString(a, "description"),
					Status:      optString(a, "status"),
					Address:     optString(a, "address"),
				})
			},
		},
		{
			Subject: "project", Verb: "delete", Tier: TierDangerous,
			Description: "Delete a project and its rooms and expenses",
			Params:      []Param{pID, pForce},
			build:       func(a Args) argv.Request { return DeleteProject(reqInt(a, "id"), a.Bool("force")) },
		},
		{
			Subject: "room", Verb: "list", Tier: TierRead,
			Description: "List a project's rooms",
			Params:      []Param{pProjectID},
			build:       func(a Args) argv.Request { return ListRooms(reqInt(a, "project_id")) },
		},
		{
			Subject: "room", Verb: "add", Tier: TierWrite,
			Description: "Add a room to a project",
			Params: []Param{
				pProjectID,
				{Name: "name", Kind: ParamString, Required: true, Description: "Room name"},
				{Name: "floor", Kind: ParamInt, Required: true, Description: "Floor number"},
				{Name: "length", Kind: ParamNumber, Description: "Length in feet"},
				{Name: "width", Kind: ParamNumber, Description: "Width in feet"},
				{Name: "height", Kind: ParamNumber, Description: "Height in feet"},
				pCondition,
				pNotes,
			},
			build: func(a Args) argv.Request {
				return AddRoom(reqInt(a, "project_id"), RoomData{
					Name:      reqString(a, "name"),
					Floor:     reqInt(a, "floor"),
					Length:    optFloat(a, "length"),
					Width:     optFloat(a, "width"),
					Height:    optFloat(a, "height"),
					Condition: optInt(a, "condition"),
					Notes:     optString(a, "notes"),
				})
			},
		},
		{
			Subject: "room", Verb: "delete", Tier: TierDangerous,
			Description: "Delete a room and its expenses",
			Params: []Param{
				pProjectID,
				{Name: "name", Kind: ParamString, Required: true, Description: "Room name"},
				pForce,
			},
			build: func(a Args) argv.Request {
				return DeleteRoom(reqInt(a, "project_id"), reqString(a, "name"), a.Bool("force"))
			},
		},
		{
			Subject: "expense", Verb: "list", Tier: TierRead,
			Description: "List a project's expenses",
			Params: []Param{
				pProjectID,
				{Name: "room", Kind: ParamString, Description: "Only this room"},
				{Name: "category", Kind: ParamString, Description: "Only this category"},
			},
			build: func(a Args) argv.Request {
				return ListExpenses(reqInt(a, "project_id"), ExpenseFilter{
					Room:     optString(a, "room"),
					Category: optString(a, "category"),
				})
			},
		},
		{
			Subject: "expense", Verb: "add", Tier: TierWrite,
			Description: "Add an expense to a room",
			Params: []Param{
				pProjectID,
				{Name: "room", Kind: ParamString, Required: true, Description: "Room name"},
				{Name: "category", Kind: ParamString, Required: true, Description: "Expense category"},
				{Name: "cost", Kind: ParamNumber, Required: true, Description: "Cost"},
				{Name: "hours", Kind: ParamNumber, Description: "Labor hours"},
				pCondition,
				pNotes,
			},
			build: func(a Args) argv.Request {
				return AddExpense(reqInt(a, "project_id"), ExpenseData{
					RoomName:  reqString(a, "room"),
					Category:  reqString(a, "category"),
					Cost:      reqFloat(a, "cost"),
					Hours:     optFloat(a, "hours"),
					Condition: optInt(a, "condition"),
					Notes:     optString(a, "notes"),
				})
			},
		},
		{
			Subject: "expense", Verb: "delete", Tier: TierDangerous,
			Description: "Delete an expense",
			Params:      []Param{pID, pForce},
			build:       func(a Args) argv.Request { return DeleteExpense(reqInt(a, "id"), a.Bool("force")) },
		},
		{
			Subject: "budget", Verb: "status", Tier: TierRead,
			Description: "Show a project's budget status",
			Params:      []Param{pProjectID},
			build:       func(a Args) argv.Request { return BudgetStatus(reqInt(a, "project_id")) },
		},
		{
			Subject: "budget", Verb: "summary", Tier: TierRead,
			Description: "Summarise budgets across projects",
			build:       func(Args) argv.Request { return BudgetSummary() },
		},
		{
			Subject: "export", Verb: "csv", Tier: TierWrite,
			Description: "Export a project to CSV",
			Params: []Param{
				pProjectID,
				pOutput,
				{Name: "no_rooms", Kind: ParamBool, Description: "Leave rooms out"},
				{Name: "no_expenses", Kind: ParamBool, Description: "Leave expenses out"},
			},
			build: func(a Args) argv.Request {
				return ExportCSV(reqInt(a, "project_id"), ExportOptions{
					Output:     optString(a, "output"),
					NoRooms:    a.Bool("no_rooms"),
					NoExpenses: a.Bool("no_expenses"),
				})
			},
		},
		{
			Subject: "export", Verb: "summary", Tier: TierWrite,
			Description: "Export a summary of all projects",
			Params:      []Param{pOutput},
			build:       func(a Args) argv.Request { return ExportSummary(optString(a, "output")) },
		},
	}
}
