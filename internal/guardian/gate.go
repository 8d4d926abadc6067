package guardian

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/trustgate-dev/trustgate/internal/catalog"
)

const previewLimit = 40

// Gate scans content and paths against the pattern catalog plus any
// runtime-added custom patterns. One Gate is created per process or session;
// pattern registration happens at setup, scanning many times after. Reads
// take a snapshot under the lock so concurrent scans never observe an
// in-flight registration.
type Gate struct {
	mu            sync.RWMutex
	customSecrets []catalog.SecretPattern
	denyMatchers  []denyMatcher
	scanUnicode   bool
}

type denyMatcher struct {
	glob string
	re   matcher
}

type matcher interface {
	MatchString(string) bool
}

// NewGate builds a gate over the built-in catalog.
func NewGate() *Gate {
	g := &Gate{scanUnicode: true}
	for _, glob := range catalog.FilenameDenylist() {
		re, err := catalog.CompileGlob(glob)
		if err != nil {
			continue
		}
		g.denyMatchers = append(g.denyMatchers, denyMatcher{glob: glob, re: re})
	}
	return g
}

// AddSecretPattern registers a caller-supplied secret pattern. A malformed
// expression is reported to the caller; the gate is left unchanged.
func (g *Gate) AddSecretPattern(name, expr, description string) error {
	p, err := catalog.CompileSecretPattern(name, expr, description)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.customSecrets = append(g.customSecrets, p)
	g.mu.Unlock()
	return nil
}

// AddDenylistGlob registers an extra sensitive-filename glob.
func (g *Gate) AddDenylistGlob(glob string) error {
	re, err := catalog.CompileGlob(glob)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.denyMatchers = append(g.denyMatchers, denyMatcher{glob: glob, re: re})
	g.mu.Unlock()
	return nil
}

// secretMatchers snapshots the built-in plus custom secret patterns.
func (g *Gate) secretMatchers() []catalog.SecretPattern {
	g.mu.RLock()
	defer g.mu.RUnlock()
	patterns := make([]catalog.SecretPattern, 0, len(catalog.SecretPatterns())+len(g.customSecrets))
	patterns = append(patterns, catalog.SecretPatterns()...)
	patterns = append(patterns, g.customSecrets...)
	return patterns
}

// ScanSecrets runs every secret matcher over the content. All matches of
// every pattern are reported, each with a truncated preview, a redacted
// form, and a 1-based line number.
func (g *Gate) ScanSecrets(content string) SecretScanResult {
	var result SecretScanResult
	for _, p := range g.secretMatchers() {
		if p.Pattern == nil {
			continue
		}
		for _, loc := range p.Pattern.FindAllStringIndex(content, -1) {
			match := content[loc[0]:loc[1]]
			result.Secrets = append(result.Secrets, SecretMatch{
				Type:        p.Name,
				Preview:     truncate(match, previewLimit),
				Redacted:    RedactSecret(match),
				Line:        lineOf(content, loc[0]),
				Description: p.Description,
			})
		}
	}
	sort.SliceStable(result.Secrets, func(i, j int) bool {
		return result.Secrets[i].Line < result.Secrets[j].Line
	})
	result.Found = len(result.Secrets) > 0
	return result
}

// ScanRisks runs every risky-construct matcher over the content. Risky
// constructs are not secrets, so nothing is redacted. The unicode smuggling
// scan contributes additional findings unless disabled.
func (g *Gate) ScanRisks(content string) RiskScanResult {
	var result RiskScanResult
	for _, p := range catalog.RiskyPatterns() {
		for _, loc := range p.Pattern.FindAllStringIndex(content, -1) {
			result.Risks = append(result.Risks, RiskMatch{
				Type:        p.Name,
				Level:       p.Level,
				Line:        lineOf(content, loc[0]),
				Description: p.Description,
			})
		}
	}
	if g.scanUnicode {
		result.Risks = append(result.Risks, scanUnicode(content)...)
	}
	sort.SliceStable(result.Risks, func(i, j int) bool {
		return result.Risks[i].Line < result.Risks[j].Line
	})
	result.Found = len(result.Risks) > 0
	return result
}

// ScanPath checks a proposed path against the working directory. It flags
// parent-directory traversal, absolute paths resolving outside the root,
// and filenames on the denylist. Multiple issues may co-occur.
func (g *Gate) ScanPath(path, workingDir string) PathScanResult {
	result := PathScanResult{Safe: true}
	normalized := strings.ReplaceAll(path, "\\", "/")

	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			result.Issues = append(result.Issues, PathIssue{
				Kind:   IssueTraversal,
				Detail: fmt.Sprintf("path %q contains a parent-directory traversal segment", path),
			})
			break
		}
	}

	if filepath.IsAbs(normalized) && workingDir != "" {
		cleaned := filepath.Clean(normalized)
		root := filepath.Clean(strings.ReplaceAll(workingDir, "\\", "/"))
		if cleaned != root && !strings.HasPrefix(cleaned, root+"/") {
			result.Issues = append(result.Issues, PathIssue{
				Kind:   IssueOutsideRoot,
				Detail: fmt.Sprintf("path %q resolves outside working directory %q", path, workingDir),
			})
		}
	}

	base := filepath.Base(filepath.Clean(normalized))
	g.mu.RLock()
	matchers := make([]denyMatcher, len(g.denyMatchers))
	copy(matchers, g.denyMatchers)
	g.mu.RUnlock()
	for _, m := range matchers {
		if m.re.MatchString(base) {
			result.Issues = append(result.Issues, PathIssue{
				Kind:   IssueDenylist,
				Detail: fmt.Sprintf("filename %q matches denylist pattern %q", base, m.glob),
			})
			break
		}
	}

	result.Safe = len(result.Issues) == 0
	return result
}

// RedactContent returns a copy of content with every secret match replaced
// by its redacted form.
func (g *Gate) RedactContent(content string) string {
	result := content
	for _, p := range g.secretMatchers() {
		if p.Pattern == nil {
			continue
		}
		result = p.Pattern.ReplaceAllStringFunc(result, RedactSecret)
	}
	return result
}

// RedactSecret redacts a single matched value. Short matches are replaced
// entirely; longer ones keep the first and last four characters so a leaked
// key can still be identified without being usable.
func RedactSecret(value string) string {
	if len(value) <= 8 {
		return "***"
	}
	return value[:4] + "***" + value[len(value)-4:]
}

// RiskLevel derives a coarse risk classification for the content: high when
// any secret is present, otherwise the maximum matched risky level.
func (g *Gate) RiskLevel(content string) catalog.RiskLevel {
	if g.ScanSecrets(content).Found {
		return catalog.RiskHigh
	}
	level := catalog.RiskNone
	for _, r := range g.ScanRisks(content).Risks {
		if r.Level > level {
			level = r.Level
		}
	}
	return level
}

// DetermineDecision suggests a verdict for content in the context of an
// operation. Secrets on anything but a read block outright; high-risk
// constructs warn on read and need approval otherwise; medium risk needs
// approval on mutations.
func (g *Gate) DetermineDecision(content string, op Operation) Decision {
	if op != OpRead && g.ScanSecrets(content).Found {
		return DecisionBlock
	}

	level := catalog.RiskNone
	for _, r := range g.ScanRisks(content).Risks {
		if r.Level > level {
			level = r.Level
		}
	}

	switch {
	case level == catalog.RiskHigh && op == OpRead:
		return DecisionWarn
	case level == catalog.RiskHigh:
		return DecisionNeedsApproval
	case level == catalog.RiskMedium && op != OpRead:
		return DecisionNeedsApproval
	}
	return DecisionAllow
}

// lineOf computes the 1-based line number of a byte offset.
func lineOf(content string, offset int) int {
	if offset > len(content) {
		offset = len(content)
	}
	return 1 + strings.Count(content[:offset], "\n")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
