package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/trustgate-dev/trustgate/internal/catalog"
	"github.com/trustgate-dev/trustgate/internal/guardian"
	"github.com/trustgate-dev/trustgate/internal/policy"
)

// Pack is a YAML rule pack: extra secret signatures, sensitive filename
// globs, and declarative policy rules layered on top of the defaults.
type Pack struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	PackVersion string       `yaml:"version"`
	Author      string       `yaml:"author"`
	Secrets     []SecretSpec `yaml:"secret_patterns"`
	DenyFiles   []string     `yaml:"deny_filenames"`
	Rules       []RuleSpec   `yaml:"rules"`
}

type SecretSpec struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Description string `yaml:"description"`
}

// RuleSpec is the declarative form of a policy rule. Every non-empty match
// field must hold for the rule to fire.
type RuleSpec struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Action      string    `yaml:"action"`
	Priority    int       `yaml:"priority"`
	Target      string    `yaml:"target"`
	Match       MatchSpec `yaml:"match"`
}

type MatchSpec struct {
	Operations    []string `yaml:"operations"`
	CommandPrefix []string `yaml:"command_prefix"`
	CommandRegex  string   `yaml:"command_regex"`
	PathGlob      []string `yaml:"path_glob"`
	Mode          string   `yaml:"mode"`
	ContentRisk   string   `yaml:"content_risk"`
}

// PackInfo summarizes one pack file for listing and load reporting.
type PackInfo struct {
	Name      string
	Version   string
	Author    string
	Enabled   bool
	Path      string
	RuleCount int
	Err       error
}

// LoadPacks reads every .yaml file in dir. Files prefixed with an
// underscore are listed but not loaded. Malformed packs are reported in
// their PackInfo and skipped; they never abort the load.
func LoadPacks(dir string) ([]Pack, []PackInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	var packs []Pack
	var infos []PackInfo

	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		baseName := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		enabled := !strings.HasPrefix(baseName, "_")

		info := PackInfo{Name: baseName, Enabled: enabled, Path: path}

		data, err := os.ReadFile(path)
		if err != nil {
			info.Err = err
			infos = append(infos, info)
			continue
		}

		var pack Pack
		if err := yaml.Unmarshal(data, &pack); err != nil {
			info.Err = fmt.Errorf("failed to parse pack: %w", err)
			infos = append(infos, info)
			continue
		}

		if pack.Name != "" {
			info.Name = pack.Name
		}
		info.Version = pack.PackVersion
		info.Author = pack.Author
		info.RuleCount = len(pack.Rules)
		infos = append(infos, info)

		if enabled {
			packs = append(packs, pack)
		}
	}

	return packs, infos, nil
}

// Apply merges a pack into the gate and engine. It stops at the first bad
// entry so a partially broken pack does not half-apply silently.
func Apply(pack Pack, gate *guardian.Gate, engine *policy.Engine) error {
	for _, s := range pack.Secrets {
		if err := gate.AddSecretPattern(s.Name, s.Pattern, s.Description); err != nil {
			return fmt.Errorf("secret pattern %q: %w", s.Name, err)
		}
	}
	for _, g := range pack.DenyFiles {
		if err := gate.AddDenylistGlob(g); err != nil {
			return fmt.Errorf("deny filename %q: %w", g, err)
		}
	}
	for _, spec := range pack.Rules {
		rule, err := buildRule(spec)
		if err != nil {
			return fmt.Errorf("rule %q: %w", spec.ID, err)
		}
		engine.AddRule(rule)
	}
	return nil
}

func buildRule(spec RuleSpec) (policy.Rule, error) {
	if spec.ID == "" {
		return policy.Rule{}, fmt.Errorf("missing id")
	}
	action, err := policy.ParseAction(spec.Action)
	if err != nil {
		return policy.Rule{}, err
	}

	var conds []policy.Condition

	if len(spec.Match.Operations) > 0 {
		ops := make([]policy.Operation, 0, len(spec.Match.Operations))
		for _, o := range spec.Match.Operations {
			op, err := policy.ParseOperation(o)
			if err != nil {
				return policy.Rule{}, err
			}
			ops = append(ops, op)
		}
		conds = append(conds, policy.OperationIn{Ops: ops})
	}
	if len(spec.Match.CommandPrefix) > 0 {
		conds = append(conds, policy.CommandPrefix{Prefixes: spec.Match.CommandPrefix})
	}
	if spec.Match.CommandRegex != "" {
		re, err := regexp.Compile(spec.Match.CommandRegex)
		if err != nil {
			return policy.Rule{}, fmt.Errorf("command_regex: %w", err)
		}
		conds = append(conds, policy.CommandRegex{Pattern: re})
	}
	if len(spec.Match.PathGlob) > 0 {
		conds = append(conds, policy.PathGlob{Patterns: spec.Match.PathGlob})
	}
	if spec.Match.Mode != "" {
		mode, err := policy.ParseMode(spec.Match.Mode)
		if err != nil {
			return policy.Rule{}, err
		}
		conds = append(conds, policy.ModeIs{Mode: mode})
	}
	if spec.Match.ContentRisk != "" {
		level := catalog.ParseRiskLevel(spec.Match.ContentRisk)
		if level == catalog.RiskNone {
			return policy.Rule{}, fmt.Errorf("unknown content_risk %q", spec.Match.ContentRisk)
		}
		conds = append(conds, policy.ContentRiskAtLeast{Level: level})
	}

	if len(conds) == 0 {
		return policy.Rule{}, fmt.Errorf("no match conditions")
	}

	target := policy.TargetCommand
	switch spec.Target {
	case "path":
		target = policy.TargetPath
	case "content":
		target = policy.TargetContent
	case "command", "":
	default:
		return policy.Rule{}, fmt.Errorf("unknown target %q", spec.Target)
	}

	return policy.Rule{
		ID:          spec.ID,
		Name:        spec.Name,
		Description: spec.Description,
		Target:      target,
		Action:      action,
		Priority:    spec.Priority,
		Condition:   policy.All{Conditions: conds},
	}, nil
}

func isYAMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
