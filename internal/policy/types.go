// Package policy evaluates proposed agent operations against a prioritized
// rule set and reduces the matches to a single decision. Rules are value
// objects whose conditions are built from a small combinator algebra, so
// they stay pure, serializable, and testable in isolation.
package policy

import "fmt"

// Operation is the kind of action an agent proposes.
type Operation string

const (
	OpRead   Operation = "read"
	OpWrite  Operation = "write"
	OpDelete Operation = "delete"
	OpExec   Operation = "exec"
)

// ApprovalMode controls how aggressively operations require confirmation.
type ApprovalMode string

const (
	ModeStrict   ApprovalMode = "strict"
	ModeBalanced ApprovalMode = "balanced"
	ModeFast     ApprovalMode = "fast"
)

// Action is a rule's verdict. The fixed severity order is
// block > needs_approval > warn > allow.
type Action string

const (
	ActionAllow         Action = "allow"
	ActionWarn          Action = "warn"
	ActionNeedsApproval Action = "needs_approval"
	ActionBlock         Action = "block"
)

// severity returns a numeric rank for reduction; higher is more restrictive.
func severity(a Action) int {
	switch a {
	case ActionBlock:
		return 3
	case ActionNeedsApproval:
		return 2
	case ActionWarn:
		return 1
	case ActionAllow:
		return 0
	default:
		return -1
	}
}

// ParseOperation validates an operation name.
func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case OpRead, OpWrite, OpDelete, OpExec:
		return Operation(s), nil
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// ParseMode validates an approval mode name.
func ParseMode(s string) (ApprovalMode, error) {
	switch ApprovalMode(s) {
	case ModeStrict, ModeBalanced, ModeFast:
		return ApprovalMode(s), nil
	}
	return "", fmt.Errorf("unknown approval mode %q", s)
}

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionAllow, ActionWarn, ActionNeedsApproval, ActionBlock:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// TargetKind declares what part of the context a rule inspects.
type TargetKind string

const (
	TargetPath    TargetKind = "path"
	TargetCommand TargetKind = "command"
	TargetContent TargetKind = "content"
)

// Context describes one proposed operation. It is constructed per call and
// never mutated after creation.
type Context struct {
	Operation  Operation
	Path       string
	Command    string
	Content    string
	WorkingDir string
	Mode       ApprovalMode
	UserID     string
	Metadata   map[string]string
}

// Rule maps a condition to an action. IDs are unique within an engine;
// re-adding an ID replaces the rule.
type Rule struct {
	ID          string
	Name        string
	Description string
	Target      TargetKind
	Action      Action
	Priority    int
	Condition   Condition
}

// RuleMatch records one matched rule with its reason.
type RuleMatch struct {
	Rule   Rule
	Reason string
}

// SkippedRule records a rule whose condition failed to evaluate. Evaluation
// errors never abort the scan; they are surfaced here for the caller to log.
type SkippedRule struct {
	RuleID string
	Err    string
}

// Result is the engine's verdict over a context.
type Result struct {
	Decision         Action
	MatchedRules     []RuleMatch
	RequiresApproval bool
	Blocked          bool
	Warnings         []string
	Skipped          []SkippedRule
}
