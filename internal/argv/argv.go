// Package argv turns operation requests into backend argument vectors.
//
// A Request is built once per call and never mutated. Build is pure: the
// same Request always yields the same tokens, in this order:
//
//	subject verb positional... [--flag value | --switch]...
//
// Optional values decide their own presence when the Option is
// constructed, so Build never has to know a field's sentinel.
package argv

import (
	"strconv"
	"strings"
)

// Option is one optional flag of a request.
type Option struct {
	Flag    string // including leading dashes, e.g. "--floors"
	Value   string
	Switch  bool // emitted as a bare flag without a value
	Present bool
}

// Request is a typed backend operation reduced to its argv parts.
type Request struct {
	Subject    string
	Verb       string // empty for top-level commands such as "init"
	Positional []string
	Options    []Option
}

// Name returns "subject verb", or just the subject for top-level commands.
func (r Request) Name() string {
	if r.Verb == "" {
		return r.Subject
	}
	return r.Subject + " " + r.Verb
}

// Flags returns the flags that Build would emit, in declared order.
func (r Request) Flags() []string {
	var flags []string
	for _, o := range r.Options {
		if o.Present {
			flags = append(flags, o.Flag)
		}
	}
	return flags
}

// Build returns the argument vector for r.
func Build(r Request) []string {
	out := make([]string, 0, 2+len(r.Positional)+2*len(r.Options))
	out = append(out, r.Subject)
	if r.Verb != "" {
		out = append(out, r.Verb)
	}
	out = append(out, r.Positional...)
	for _, o := range r.Options {
		if !o.Present {
			continue
		}
		out = append(out, o.Flag)
		if !o.Switch {
			out = append(out, o.Value)
		}
	}
	return out
}

// FormatFloat renders v in the shortest decimal form that round-trips,
// without exponent or grouping: 250000, 12.5, 0.75.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatInt renders v in base 10.
func FormatInt(v int) string {
	return strconv.Itoa(v)
}

// Float is present whenever v is non-nil.
func Float(flag string, v *float64) Option {
	if v == nil {
		return Option{Flag: flag}
	}
	return Option{Flag: flag, Value: FormatFloat(*v), Present: true}
}

// NonZeroFloat treats zero as absent.
func NonZeroFloat(flag string, v *float64) Option {
	if v == nil || *v == 0 {
		return Option{Flag: flag}
	}
	return Float(flag, v)
}

// Int is present whenever v is non-nil.
func Int(flag string, v *int) Option {
	if v == nil {
		return Option{Flag: flag}
	}
	return Option{Flag: flag, Value: FormatInt(*v), Present: true}
}

// PositiveInt treats zero and negative values as absent.
func PositiveInt(flag string, v *int) Option {
	if v == nil || *v <= 0 {
		return Option{Flag: flag}
	}
	return Int(flag, v)
}

// String is present whenever v is non-nil, even when empty.
func String(flag string, v *string) Option {
	if v == nil {
		return Option{Flag: flag}
	}
	return Option{Flag: flag, Value: *v, Present: true}
}

// Text is a free-text field: absent when nil or blank after trimming.
// The value is passed through untrimmed.
func Text(flag string, v *string) Option {
	if v == nil || strings.TrimSpace(*v) == "" {
		return Option{Flag: flag}
	}
	return String(flag, v)
}

// Switch emits a bare flag when on.
func Switch(flag string, on bool) Option {
	return Option{Flag: flag, Switch: true, Present: on}
}
