package policy

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/trustgate-dev/trustgate/internal/catalog"
	"github.com/trustgate-dev/trustgate/internal/guardian"
	"github.com/trustgate-dev/trustgate/internal/shellscan"
)

// Env gives conditions access to the scanning collaborators without letting
// them capture mutable engine state.
type Env struct {
	Gate    *guardian.Gate
	HomeDir string
}

// Condition is a pure predicate over a Context. Implementations must not
// mutate the context or perform I/O; an evaluation error makes the engine
// skip the rule, never abort the scan.
type Condition interface {
	Eval(env *Env, ctx *Context) (bool, error)
}

// OperationIn matches when the context operation is one of Ops.
type OperationIn struct {
	Ops []Operation
}

func (c OperationIn) Eval(_ *Env, ctx *Context) (bool, error) {
	for _, op := range c.Ops {
		if ctx.Operation == op {
			return true, nil
		}
	}
	return false, nil
}

// ModeIs matches a specific approval mode.
type ModeIs struct {
	Mode ApprovalMode
}

func (c ModeIs) Eval(_ *Env, ctx *Context) (bool, error) {
	return ctx.Mode == c.Mode, nil
}

// PathOutsideRoot matches paths that traverse upward or resolve outside the
// working directory.
type PathOutsideRoot struct{}

func (PathOutsideRoot) Eval(env *Env, ctx *Context) (bool, error) {
	if ctx.Path == "" {
		return false, nil
	}
	result := env.Gate.ScanPath(ctx.Path, ctx.WorkingDir)
	for _, issue := range result.Issues {
		if issue.Kind == guardian.IssueTraversal || issue.Kind == guardian.IssueOutsideRoot {
			return true, nil
		}
	}
	return false, nil
}

// PathDenylisted matches filenames on the sensitive-file denylist.
type PathDenylisted struct{}

func (PathDenylisted) Eval(env *Env, ctx *Context) (bool, error) {
	if ctx.Path == "" {
		return false, nil
	}
	for _, issue := range env.Gate.ScanPath(ctx.Path, ctx.WorkingDir).Issues {
		if issue.Kind == guardian.IssueDenylist {
			return true, nil
		}
	}
	return false, nil
}

// PathGlob matches the context path against doublestar patterns. A leading
// "~/" in a pattern is expanded against the environment's home directory.
type PathGlob struct {
	Patterns []string
}

func (c PathGlob) Eval(env *Env, ctx *Context) (bool, error) {
	if ctx.Path == "" {
		return false, nil
	}
	path := expandHome(ctx.Path, env.HomeDir)
	for _, pattern := range c.Patterns {
		ok, err := doublestar.Match(expandHome(pattern, env.HomeDir), path)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// DotfileDelete matches deletion of dotfiles, except names under the
// designated config prefix.
type DotfileDelete struct {
	ExceptPrefix string
}

func (c DotfileDelete) Eval(_ *Env, ctx *Context) (bool, error) {
	if ctx.Operation != OpDelete || ctx.Path == "" {
		return false, nil
	}
	base := filepath.Base(filepath.Clean(strings.ReplaceAll(ctx.Path, "\\", "/")))
	if !strings.HasPrefix(base, ".") || base == "." || base == ".." {
		return false, nil
	}
	if c.ExceptPrefix != "" && strings.HasPrefix(base, c.ExceptPrefix) {
		return false, nil
	}
	return true, nil
}

// CommandDenylisted matches commands on the destructive-command denylist.
type CommandDenylisted struct{}

func (CommandDenylisted) Eval(_ *Env, ctx *Context) (bool, error) {
	if ctx.Command == "" {
		return false, nil
	}
	_, denied := shellscan.Denylisted(ctx.Command)
	return denied, nil
}

// CommandAllowlisted matches commands whose every segment is on the curated
// safe-command allowlist.
type CommandAllowlisted struct{}

func (CommandAllowlisted) Eval(_ *Env, ctx *Context) (bool, error) {
	if ctx.Command == "" {
		return false, nil
	}
	return shellscan.Allowlisted(ctx.Command), nil
}

// CommandPrefix matches commands starting with any of the given prefixes.
// A prefix matches on a word boundary, so "git" does not match "gitx".
type CommandPrefix struct {
	Prefixes []string
}

func (c CommandPrefix) Eval(_ *Env, ctx *Context) (bool, error) {
	cmd := strings.TrimSpace(ctx.Command)
	if cmd == "" {
		return false, nil
	}
	for _, p := range c.Prefixes {
		if cmd == p {
			return true, nil
		}
		if strings.HasPrefix(cmd, p) && len(cmd) > len(p) && cmd[len(p)] == ' ' {
			return true, nil
		}
	}
	return false, nil
}

// CommandRegex matches the raw command string against a compiled pattern.
type CommandRegex struct {
	Pattern *regexp.Regexp
}

func (c CommandRegex) Eval(_ *Env, ctx *Context) (bool, error) {
	if ctx.Command == "" || c.Pattern == nil {
		return false, nil
	}
	return c.Pattern.MatchString(ctx.Command), nil
}

// ContentHasSecrets matches content containing any catalog or custom secret.
type ContentHasSecrets struct{}

func (ContentHasSecrets) Eval(env *Env, ctx *Context) (bool, error) {
	if ctx.Content == "" {
		return false, nil
	}
	return env.Gate.ScanSecrets(ctx.Content).Found, nil
}

// ContentRiskAtLeast matches content whose derived risk level reaches Level.
type ContentRiskAtLeast struct {
	Level catalog.RiskLevel
}

func (c ContentRiskAtLeast) Eval(env *Env, ctx *Context) (bool, error) {
	if ctx.Content == "" {
		return false, nil
	}
	return env.Gate.RiskLevel(ctx.Content) >= c.Level, nil
}

// All matches when every child condition matches.
type All struct {
	Conditions []Condition
}

func (c All) Eval(env *Env, ctx *Context) (bool, error) {
	for _, cond := range c.Conditions {
		if cond == nil {
			return false, errors.New("policy: nil condition in All")
		}
		ok, err := cond.Eval(env, ctx)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Any matches when at least one child condition matches.
type Any struct {
	Conditions []Condition
}

func (c Any) Eval(env *Env, ctx *Context) (bool, error) {
	for _, cond := range c.Conditions {
		if cond == nil {
			return false, errors.New("policy: nil condition in Any")
		}
		ok, err := cond.Eval(env, ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Not inverts a condition.
type Not struct {
	Condition Condition
}

func (c Not) Eval(env *Env, ctx *Context) (bool, error) {
	if c.Condition == nil {
		return false, errors.New("policy: nil condition in Not")
	}
	ok, err := c.Condition.Eval(env, ctx)
	return !ok, err
}

func expandHome(p, home string) string {
	if home == "" {
		return p
	}
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, p[2:])
	}
	return p
}
