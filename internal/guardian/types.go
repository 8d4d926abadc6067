// Package guardian is the scanning and redaction gate: it finds secrets and
// risky constructs in content, flags unsafe paths, and derives a suggested
// decision for a proposed operation. Scanning is pure and in-memory; it
// never fails across the package boundary — broken custom patterns are
// skipped and the rest of the catalog still runs.
package guardian

import (
	"github.com/trustgate-dev/trustgate/internal/catalog"
)

// Operation is the kind of filesystem/exec action being proposed.
type Operation string

const (
	OpRead   Operation = "read"
	OpWrite  Operation = "write"
	OpDelete Operation = "delete"
	OpExec   Operation = "exec"
)

// Decision is the gate's suggested verdict for an operation. The policy
// engine owns the final word; these values deliberately mirror its actions
// so the calling layer can map them one-to-one.
type Decision string

const (
	DecisionAllow         Decision = "allow"
	DecisionWarn          Decision = "warn"
	DecisionNeedsApproval Decision = "needs_approval"
	DecisionBlock         Decision = "block"
)

// SecretMatch is one detected secret occurrence.
type SecretMatch struct {
	// Type is the catalog pattern name (e.g. "aws-access-key-id").
	Type string

	// Preview is a truncated view of the match for display.
	Preview string

	// Redacted is the safe form: first/last four characters kept for
	// matches longer than eight characters, "***" otherwise.
	Redacted string

	// Line is the 1-based line number of the match.
	Line int

	Description string
}

// SecretScanResult is the output of ScanSecrets.
type SecretScanResult struct {
	Found   bool
	Secrets []SecretMatch
}

// RiskMatch is one detected risky construct.
type RiskMatch struct {
	Type        string
	Level       catalog.RiskLevel
	Line        int
	Description string
}

// RiskScanResult is the output of ScanRisks.
type RiskScanResult struct {
	Found bool
	Risks []RiskMatch
}

// PathIssueKind classifies why a path is unsafe.
type PathIssueKind string

const (
	IssueTraversal   PathIssueKind = "traversal"
	IssueOutsideRoot PathIssueKind = "outside_root"
	IssueDenylist    PathIssueKind = "denylist"
)

// PathIssue is one problem found with a proposed path.
type PathIssue struct {
	Kind   PathIssueKind
	Detail string
}

// PathScanResult is the output of ScanPath. Safe iff Issues is empty.
type PathScanResult struct {
	Safe   bool
	Issues []PathIssue
}
