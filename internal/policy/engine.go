package policy

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/trustgate-dev/trustgate/internal/guardian"
)

// Engine holds the rule registry and evaluates contexts against it. An
// engine is created once per process or session; rules are registered at
// setup and read many times after. Evaluation takes a snapshot of the
// registry, so concurrent evaluations are safe even while rules are being
// added.
type Engine struct {
	mu    sync.RWMutex
	rules map[string]Rule
	order []string // insertion order, the tie-break for equal priorities
	env   *Env
}

// NewEngine builds an engine with the default rule set over the given gate.
func NewEngine(gate *guardian.Gate) *Engine {
	e := NewEmptyEngine(gate)
	for _, r := range defaultRules() {
		e.AddRule(r)
	}
	return e
}

// NewEmptyEngine builds an engine with no rules, for callers that compose
// their own set.
func NewEmptyEngine(gate *guardian.Gate) *Engine {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return &Engine{
		rules: map[string]Rule{},
		env:   &Env{Gate: gate, HomeDir: home},
	}
}

// AddRule registers a rule. Re-adding an existing ID replaces the rule;
// last write wins.
func (e *Engine) AddRule(r Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.rules[r.ID]; !exists {
		e.order = append(e.order, r.ID)
	}
	e.rules[r.ID] = r
}

// RemoveRule deletes a rule by ID and reports whether it existed.
func (e *Engine) RemoveRule(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.rules[id]; !exists {
		return false
	}
	delete(e.rules, id)
	for i, rid := range e.order {
		if rid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return true
}

// Rules returns the registered rules sorted by priority descending,
// insertion order breaking ties.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	rules := make([]Rule, 0, len(e.rules))
	for _, id := range e.order {
		rules = append(rules, e.rules[id])
	}
	e.mu.RUnlock()

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
	return rules
}

// WithRules returns a new engine holding the union of the current rules and
// the extras. The copy is genuinely independent: mutating either engine
// afterwards never affects the other.
func (e *Engine) WithRules(extra ...Rule) *Engine {
	e.mu.RLock()
	clone := &Engine{
		rules: make(map[string]Rule, len(e.rules)+len(extra)),
		order: make([]string, len(e.order)),
		env:   &Env{Gate: e.env.Gate, HomeDir: e.env.HomeDir},
	}
	copy(clone.order, e.order)
	for id, r := range e.rules {
		clone.rules[id] = r
	}
	e.mu.RUnlock()

	for _, r := range extra {
		clone.AddRule(r)
	}
	return clone
}

// Evaluate runs every registered rule against the context and reduces the
// matches to the most severe action. A rule whose condition panics or
// returns an error is skipped; the scan always completes. No match at all
// yields allow.
func (e *Engine) Evaluate(ctx *Context) Result {
	result := Result{Decision: ActionAllow}

	for _, rule := range e.Rules() {
		matched, err := evalCondition(rule, e.env, ctx)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedRule{RuleID: rule.ID, Err: err.Error()})
			continue
		}
		if !matched {
			continue
		}

		result.MatchedRules = append(result.MatchedRules, RuleMatch{Rule: rule, Reason: rule.Description})
		if rule.Action == ActionWarn {
			result.Warnings = append(result.Warnings, rule.Description)
		}
		if severity(rule.Action) > severity(result.Decision) {
			result.Decision = rule.Action
		}
	}

	result.Blocked = result.Decision == ActionBlock
	result.RequiresApproval = result.Decision == ActionNeedsApproval
	return result
}

// evalCondition evaluates one rule's condition, converting panics into
// errors so a misbehaving predicate cannot abort the scan.
func evalCondition(rule Rule, env *Env, ctx *Context) (matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
			err = fmt.Errorf("condition panic: %v", r)
		}
	}()
	if rule.Condition == nil {
		return false, fmt.Errorf("rule %s has no condition", rule.ID)
	}
	return rule.Condition.Eval(env, ctx)
}

// IsAllowed reports whether the context would proceed without blocking or
// approval.
func (e *Engine) IsAllowed(ctx *Context) bool {
	d := e.Evaluate(ctx).Decision
	return d == ActionAllow || d == ActionWarn
}

// NeedsApproval reports whether the context requires human confirmation.
func (e *Engine) NeedsApproval(ctx *Context) bool {
	return e.Evaluate(ctx).RequiresApproval
}

// IsBlocked reports whether the context is denied outright.
func (e *Engine) IsBlocked(ctx *Context) bool {
	return e.Evaluate(ctx).Blocked
}

// BlockReason joins the descriptions of all block-action matches for a
// result, for display by the calling layer.
func BlockReason(result Result) string {
	var reasons []string
	for _, m := range result.MatchedRules {
		if m.Rule.Action == ActionBlock {
			reasons = append(reasons, m.Reason)
		}
	}
	return strings.Join(reasons, "; ")
}
