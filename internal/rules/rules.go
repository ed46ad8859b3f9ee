package rules

import (
	"strings"

	"github.com/marcelocantos/retrack/internal/argv"
)

// CheckFunc validates a request before it is sent to the backend.
// Returns a non-nil error to refuse the call.
type CheckFunc func(req argv.Request) error

// RuleSet holds an ordered list of validation rules. Hardcoded rules run first
// and cannot be removed. Config rules are appended after.
type RuleSet struct {
	hardcoded []CheckFunc
	config    []CheckFunc
}

// NewRuleSet creates a RuleSet with the given hardcoded rules.
func NewRuleSet(hardcoded ...CheckFunc) *RuleSet {
	return &RuleSet{hardcoded: hardcoded}
}

// AddConfig appends a config-driven rule.
func (rs *RuleSet) AddConfig(fn CheckFunc) {
	rs.config = append(rs.config, fn)
}

// Check runs all rules against req. Hardcoded rules always run first. When
// retry is true, config rules are skipped (the user has explicitly approved
// the call).
func (rs *RuleSet) Check(req argv.Request, retry bool) error {
	for _, fn := range rs.hardcoded {
		if err := fn(req); err != nil {
			return err
		}
	}
	if retry {
		return nil
	}
	for _, fn := range rs.config {
		if err := fn(req); err != nil {
			return err
		}
	}
	return nil
}

// firstFlag returns the first of flags present in set, matching either the
// exact flag or its "--flag=value" form.
func firstFlag(set []string, flags ...string) (string, bool) {
	for _, arg := range set {
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		for _, flag := range flags {
			if arg == flag || strings.HasPrefix(arg, flag+"=") {
				return flag, true
			}
		}
	}
	return "", false
}
