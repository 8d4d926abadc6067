// Package catalog holds the static signature tables the guardian and policy
// layers are built on: secret patterns, risky-construct patterns, the
// sensitive-filename denylist, and the destructive/safe command signatures.
// The tables are data only; nothing here performs I/O.
package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

// RiskLevel classifies how dangerous a risky construct is.
type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
)

// String returns the string representation of a RiskLevel.
func (l RiskLevel) String() string {
	switch l {
	case RiskNone:
		return "none"
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "unknown"
	}
}

// SecretPattern is a named signature for credential material.
type SecretPattern struct {
	Name        string
	Pattern     *regexp.Regexp
	Description string
}

// RiskyPattern is a named signature for a dangerous construct in content.
type RiskyPattern struct {
	Name        string
	Pattern     *regexp.Regexp
	Level       RiskLevel
	Description string
}

var secretPatterns = []SecretPattern{
	{
		Name:        "aws-access-key-id",
		Pattern:     regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
		Description: "AWS access key ID",
	},
	{
		Name:        "aws-credential-assignment",
		Pattern:     regexp.MustCompile(`(?i)(aws_access_key_id|aws_secret_access_key|aws_session_token)\s*[=:]\s*['"]?[A-Za-z0-9/+=]{16,}['"]?`),
		Description: "AWS credential assignment",
	},
	{
		Name:        "github-token",
		Pattern:     regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36}`),
		Description: "GitHub personal access / OAuth / app token",
	},
	{
		Name:        "github-token-assignment",
		Pattern:     regexp.MustCompile(`(?i)(github_token|gh_token|github_pat)\s*[=:]\s*['"]?[A-Za-z0-9_-]{30,}['"]?`),
		Description: "GitHub token assignment",
	},
	{
		Name:        "slack-token",
		Pattern:     regexp.MustCompile(`xox[baprs]-[0-9]{10,13}-[0-9]{10,13}[a-zA-Z0-9-]*`),
		Description: "Slack API token",
	},
	{
		Name:        "stripe-live-key",
		Pattern:     regexp.MustCompile(`(?:sk|rk)_live_[0-9a-zA-Z]{24,}`),
		Description: "Stripe live secret key",
	},
	{
		Name:        "openai-api-key",
		Pattern:     regexp.MustCompile(`sk-[A-Za-z0-9_-]{20}[A-Za-z0-9_-]+`),
		Description: "OpenAI-style API key",
	},
	{
		Name:        "generic-api-key",
		Pattern:     regexp.MustCompile(`(?i)(api[_-]?key|secret[_-]?key|access_token|auth_token)\s*[=:]\s*['"]?[A-Za-z0-9_-]{16,}['"]?`),
		Description: "Generic API key or token assignment",
	},
	{
		Name:        "private-key-header",
		Pattern:     regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY-----`),
		Description: "PEM private key header",
	},
	{
		Name:        "bearer-token",
		Pattern:     regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_.-]{20,}`),
		Description: "HTTP bearer token",
	},
	{
		Name:        "url-basic-auth",
		Pattern:     regexp.MustCompile(`https?://[^/\s:@]+:[^/\s@]+@`),
		Description: "Credentials embedded in a URL",
	},
	{
		Name:        "password-assignment",
		Pattern:     regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[=:]\s*['"]?[^\s'"]{8,}['"]?`),
		Description: "Password assignment",
	},
}

var riskyPatterns = []RiskyPattern{
	{
		Name:        "eval-call",
		Pattern:     regexp.MustCompile(`\beval\s*\(`),
		Level:       RiskHigh,
		Description: "Dynamic code evaluation via eval()",
	},
	{
		Name:        "function-constructor",
		Pattern:     regexp.MustCompile(`\bnew\s+Function\s*\(`),
		Level:       RiskHigh,
		Description: "Dynamic code construction via the Function constructor",
	},
	{
		Name:        "child-process",
		Pattern:     regexp.MustCompile(`child_process|execSync|spawnSync`),
		Level:       RiskHigh,
		Description: "Subprocess spawning from script code",
	},
	{
		Name:        "pipe-to-shell",
		Pattern:     regexp.MustCompile(`(?:curl|wget)[^|\n]*\|\s*(?:sudo\s+)?(?:ba)?sh`),
		Level:       RiskHigh,
		Description: "Remote script piped directly into a shell",
	},
	{
		Name:        "recursive-force-delete",
		Pattern:     regexp.MustCompile(`\brm\s+(-[a-zA-Z]*[rf][a-zA-Z]*\s+)+`),
		Level:       RiskHigh,
		Description: "Recursive or forced file deletion",
	},
	{
		Name:        "fork-bomb",
		Pattern:     regexp.MustCompile(`:\s*\(\s*\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;`),
		Level:       RiskHigh,
		Description: "Shell fork bomb",
	},
	{
		Name:        "disk-overwrite",
		Pattern:     regexp.MustCompile(`\bdd\s+[^|\n]*of=/dev/(?:sd|hd|nvme|disk)`),
		Level:       RiskHigh,
		Description: "Raw write to a block device",
	},
	{
		Name:        "base64-decode-to-shell",
		Pattern:     regexp.MustCompile(`base64\s+(?:-d|--decode)[^|\n]*\|\s*(?:ba)?sh`),
		Level:       RiskHigh,
		Description: "Obfuscated payload decoded and piped into a shell",
	},
	{
		Name:        "sudo-invocation",
		Pattern:     regexp.MustCompile(`\bsudo\s+`),
		Level:       RiskMedium,
		Description: "Privilege escalation via sudo",
	},
	{
		Name:        "world-writable-chmod",
		Pattern:     regexp.MustCompile(`\bchmod\s+(-[a-zA-Z]+\s+)*0?777\b`),
		Level:       RiskMedium,
		Description: "World-writable permission change",
	},
	{
		Name:        "sql-drop",
		Pattern:     regexp.MustCompile(`(?i)\bDROP\s+(?:TABLE|DATABASE|SCHEMA)\b`),
		Level:       RiskMedium,
		Description: "Destructive SQL statement",
	},
	{
		Name:        "force-push",
		Pattern:     regexp.MustCompile(`\bgit\s+push\s+[^|\n]*(?:--force\b|-f\b)`),
		Level:       RiskMedium,
		Description: "Force push rewrites remote history",
	},
	{
		Name:        "dynamic-import",
		Pattern:     regexp.MustCompile(`\brequire\s*\(\s*[^'")\s]`),
		Level:       RiskMedium,
		Description: "Dynamic module loading with a computed specifier",
	},
	{
		Name:        "env-dump",
		Pattern:     regexp.MustCompile(`\b(?:printenv|env)\s*(?:\||>|$)`),
		Level:       RiskLow,
		Description: "Environment dump can expose credentials",
	},
	{
		Name:        "insecure-http",
		Pattern:     regexp.MustCompile(`http://[A-Za-z0-9.-]+`),
		Level:       RiskLow,
		Description: "Plain-HTTP URL",
	},
}

// filenameDenylist is the glob list of files that should never be touched by
// an autonomous agent. Matched against the basename only.
var filenameDenylist = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	"*.keystore",
	"id_rsa",
	"id_dsa",
	"id_ecdsa",
	"id_ed25519",
	"credentials.json",
	"credentials",
	".netrc",
	".npmrc",
	".pypirc",
	"secrets.yaml",
	"secrets.yml",
	"secrets.json",
	".htpasswd",
}

// DenylistedCommand is a destructive-command signature. These block in every
// approval mode.
type DenylistedCommand struct {
	Name        string
	Pattern     *regexp.Regexp
	Description string
}

var commandDenylist = []DenylistedCommand{
	{
		Name:        "rm-root",
		Pattern:     regexp.MustCompile(`(?:^|\s|;|&&|\|\|)rm\s+(-[a-zA-Z]+\s+)*(-[a-zA-Z]*[rf][a-zA-Z]*\s+)+/\s*(?:$|;|&|\|)`),
		Description: "Recursive delete at the filesystem root",
	},
	{
		Name:        "sudo",
		Pattern:     regexp.MustCompile(`(?:^|\s|;|&&|\|\|)sudo\s+`),
		Description: "Privilege escalation is not permitted for agent commands",
	},
	{
		Name:        "fork-bomb",
		Pattern:     regexp.MustCompile(`:\s*\(\s*\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;`),
		Description: "Shell fork bomb",
	},
	{
		Name:        "pipe-to-shell",
		Pattern:     regexp.MustCompile(`(?:curl|wget)[^|\n]*\|\s*(?:sudo\s+)?(?:ba|z)?sh(?:\s|$)`),
		Description: "Downloading and executing a remote script in one step",
	},
	{
		Name:        "disk-overwrite",
		Pattern:     regexp.MustCompile(`\bdd\s+[^|\n]*of=/dev/(?:sd|hd|nvme|disk)`),
		Description: "Raw write to a block device",
	},
	{
		Name:        "mkfs",
		Pattern:     regexp.MustCompile(`\bmkfs(\.[a-z0-9]+)?\s+`),
		Description: "Reformatting a filesystem",
	},
	{
		Name:        "chmod-root",
		Pattern:     regexp.MustCompile(`\bchmod\s+(-[a-zA-Z]+\s+)*0?777\s+/\s*(?:$|;|&)`),
		Description: "World-writable permissions on the filesystem root",
	},
	{
		Name:        "shutdown",
		Pattern:     regexp.MustCompile(`\b(?:shutdown|reboot|halt|poweroff)\b`),
		Description: "Host power-state change",
	},
}

// commandAllowlist lists executables (and optional subcommands) that are safe
// to auto-approve: read-only or otherwise side-effect-free commands. An entry
// "git status" allows only that subcommand; a bare "ls" allows any invocation.
var commandAllowlist = []string{
	"ls",
	"pwd",
	"whoami",
	"date",
	"echo",
	"cat",
	"head",
	"tail",
	"wc",
	"grep",
	"rg",
	"find",
	"which",
	"file",
	"stat",
	"du",
	"df",
	"env",
	"uname",
	"git status",
	"git diff",
	"git log",
	"git branch",
	"git show",
	"git remote",
	"go version",
	"go env",
	"node --version",
	"npm ls",
	"python --version",
}

// SecretPatterns returns the built-in secret signature table.
func SecretPatterns() []SecretPattern {
	return secretPatterns
}

// RiskyPatterns returns the built-in risky-construct signature table.
func RiskyPatterns() []RiskyPattern {
	return riskyPatterns
}

// FilenameDenylist returns the raw glob entries for sensitive filenames.
func FilenameDenylist() []string {
	return filenameDenylist
}

// CommandDenylist returns the destructive-command signatures.
func CommandDenylist() []DenylistedCommand {
	return commandDenylist
}

// CommandAllowlist returns the safe-command entries.
func CommandAllowlist() []string {
	return commandAllowlist
}

// CompiledDenylistMatchers translates every filename glob into an anchored
// regexp. Built-in entries always compile; the result is freshly allocated so
// callers may extend it without touching the catalog.
func CompiledDenylistMatchers() []*regexp.Regexp {
	matchers := make([]*regexp.Regexp, 0, len(filenameDenylist))
	for _, glob := range filenameDenylist {
		re, err := CompileGlob(glob)
		if err != nil {
			continue
		}
		matchers = append(matchers, re)
	}
	return matchers
}

// CompileGlob translates a filename glob into an anchored regexp. Every
// regexp metacharacter in the glob is escaped before `*` is substituted, so
// a denylist entry containing a literal dot cannot match arbitrary characters.
func CompileGlob(glob string) (*regexp.Regexp, error) {
	if glob == "" {
		return nil, fmt.Errorf("catalog: empty glob")
	}
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range glob {
		if r == '*' {
			sb.WriteString(".*")
			continue
		}
		sb.WriteString(regexp.QuoteMeta(string(r)))
	}
	sb.WriteString("$")
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("catalog: glob %q: %w", glob, err)
	}
	return re, nil
}

// CompileSecretPattern builds a SecretPattern from a caller-supplied
// expression. A malformed expression is an error for the caller to report;
// it never panics and never invalidates the built-in table.
func CompileSecretPattern(name, expr, description string) (SecretPattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return SecretPattern{}, fmt.Errorf("catalog: secret pattern %q: %w", name, err)
	}
	return SecretPattern{Name: name, Pattern: re, Description: description}, nil
}

// ParseRiskLevel converts a string into a RiskLevel, defaulting to none.
func ParseRiskLevel(s string) RiskLevel {
	switch strings.ToLower(s) {
	case "low":
		return RiskLow
	case "medium":
		return RiskMedium
	case "high":
		return RiskHigh
	default:
		return RiskNone
	}
}
