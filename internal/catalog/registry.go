// Package catalog lists the backend operations retrack can invoke, with the
// safety tier of each, and gates calls on enabled tiers and rules.
package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/marcelocantos/retrack/internal/argv"
	"github.com/marcelocantos/retrack/internal/rules"
)

// Tier represents the safety level of an operation.
type Tier int

const (
	TierRead      Tier = iota // queries (list, show, status, budget)
	TierWrite                 // mutations (create, update, add, init, export)
	TierDangerous             // destructive operations (delete, reset)
)

func (t Tier) String() string {
	switch t {
	case TierRead:
		return "read"
	case TierWrite:
		return "write"
	case TierDangerous:
		return "dangerous"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier converts a string to a Tier.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "read":
		return TierRead, nil
	case "write":
		return TierWrite, nil
	case "dangerous":
		return TierDangerous, nil
	default:
		return 0, fmt.Errorf("unknown tier: %q", s)
	}
}

// Registry maps operation names to their definitions and controls tier
// access. It is safe for concurrent use; tiers and rules may be swapped
// while calls are in flight.
type Registry struct {
	mu    sync.RWMutex
	ops   map[string]Operation
	tiers map[Tier]bool
	rules *rules.RuleSet
}

// NewRegistry creates a registry holding every backend operation, with all
// tiers enabled except Dangerous. Hardcoded rules are always active.
func NewRegistry() *Registry {
	r := &Registry{
		ops: make(map[string]Operation),
		tiers: map[Tier]bool{
			TierRead:      true,
			TierWrite:     true,
			TierDangerous: false,
		},
		rules: rules.NewRuleSet(rules.Hardcoded()...),
	}
	for _, op := range Operations() {
		r.Register(op)
	}
	return r
}

// Register adds an operation to the registry.
func (r *Registry) Register(op Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[op.Name()] = op
}

// Lookup returns an operation by name ("project create", "init").
func (r *Registry) Lookup(name string) (Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	if !ok {
		return Operation{}, fmt.Errorf("unknown operation: %q", name)
	}
	return op, nil
}

// CheckTier returns an error if the given tier is not enabled.
func (r *Registry) CheckTier(t Tier) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.tiers[t] {
		return fmt.Errorf("tier %q is disabled", t)
	}
	return nil
}

// SetTier enables or disables a tier.
func (r *Registry) SetTier(t Tier, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tiers[t] = enabled
}

// SetRules replaces the rule set.
func (r *Registry) SetRules(rs *rules.RuleSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = rs
}

// CheckRules validates req against all rules. When retry is true, only
// hardcoded rules are checked.
func (r *Registry) CheckRules(req argv.Request, retry bool) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.rules == nil {
		return nil
	}
	return r.rules.Check(req, retry)
}

// Authorize looks up the operation for req and checks its tier and rules.
// The returned error is the reason for refusal.
func (r *Registry) Authorize(req argv.Request, retry bool) (Operation, error) {
	op, err := r.Lookup(req.Name())
	if err != nil {
		return Operation{}, err
	}
	if err := r.CheckTier(op.Tier); err != nil {
		return op, err
	}
	if err := r.CheckRules(req, retry); err != nil {
		return op, err
	}
	return op, nil
}

// All returns all registered operations sorted by name.
func (r *Registry) All() []Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ops := make([]Operation, 0, len(r.ops))
	for _, op := range r.ops {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].Name() < ops[j].Name()
	})
	return ops
}
