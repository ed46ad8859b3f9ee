package rules

import (
	"fmt"
	"sort"

	"github.com/marcelocantos/retrack/internal/argv"
)

// SubjectRuleConfig represents one subject's rules from YAML config. A
// top-level command such as "reset" is a subject without verbs.
type SubjectRuleConfig struct {
	RejectFlags []string                  `yaml:"reject_flags"`
	Verbs       map[string]VerbRuleConfig `yaml:"verbs"`
}

// VerbRuleConfig represents rules for a specific verb of a subject.
type VerbRuleConfig struct {
	RejectFlags []string `yaml:"reject_flags"`
}

// Defaults returns the config rules applied when the config file declares
// none: forced project deletion and database reset need explicit approval.
func Defaults() map[string]SubjectRuleConfig {
	return map[string]SubjectRuleConfig{
		"project": {Verbs: map[string]VerbRuleConfig{
			"delete": {RejectFlags: []string{"--force"}},
		}},
		"reset": {RejectFlags: []string{"--confirm"}},
	}
}

// CompileSubjectRule turns a single subject's config into CheckFuncs.
func CompileSubjectRule(subject string, cfg SubjectRuleConfig) []CheckFunc {
	var fns []CheckFunc

	if len(cfg.RejectFlags) > 0 {
		flags := cfg.RejectFlags
		fns = append(fns, func(req argv.Request) error {
			if req.Subject != subject {
				return nil
			}
			if flag, ok := firstFlag(req.Flags(), flags...); ok {
				return fmt.Errorf("%s: rejected flag %s (config rule). Ask the user for explicit permission, then retry the call with retry enabled", req.Name(), flag)
			}
			return nil
		})
	}

	verbs := make([]string, 0, len(cfg.Verbs))
	for v := range cfg.Verbs {
		verbs = append(verbs, v)
	}
	sort.Strings(verbs)

	for _, verb := range verbs {
		flags := cfg.Verbs[verb].RejectFlags
		if len(flags) == 0 {
			continue
		}
		fns = append(fns, func(req argv.Request) error {
			if req.Subject != subject || req.Verb != verb {
				return nil
			}
			if flag, ok := firstFlag(req.Flags(), flags...); ok {
				return fmt.Errorf("%s: rejected flag %s (config rule). Ask the user for explicit permission, then retry the call with retry enabled", req.Name(), flag)
			}
			return nil
		})
	}

	return fns
}

// Compile builds a RuleSet from the hardcoded rules plus every subject in
// cfg, in subject order.
func Compile(cfg map[string]SubjectRuleConfig) *RuleSet {
	rs := NewRuleSet(Hardcoded()...)
	subjects := make([]string, 0, len(cfg))
	for s := range cfg {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	for _, s := range subjects {
		for _, fn := range CompileSubjectRule(s, cfg[s]) {
			rs.AddConfig(fn)
		}
	}
	return rs
}
