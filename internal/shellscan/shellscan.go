// Package shellscan parses shell commands into a structural form and matches
// them against the catalog's destructive-command denylist and safe-command
// allowlist. Parsing the AST instead of regexing the raw string handles flag
// reordering, long-form flags, and sudo wrapping.
package shellscan

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/trustgate-dev/trustgate/internal/catalog"
)

// maxInlineDepth bounds how far `sh -c '...'` style indirection is followed.
const maxInlineDepth = 2

// Command is the structural representation of a shell command line.
type Command struct {
	// Segments are the pipeline/operator-separated simple commands.
	Segments []Segment

	// Operators sit between consecutive segments: "|", "&&", "||", ";".
	Operators []string

	// Inline holds commands extracted from interpreter -c arguments.
	Inline []*Command
}

// Segment is one simple command within a pipeline.
type Segment struct {
	Raw        string
	Executable string
	Sub        string            // e.g. "status" for "git status"
	Args       []string          // positional arguments
	Flags      map[string]string // normalized: short flags split per char
	Sudo       bool              // segment was wrapped in sudo
	Shell      bool              // executable is a shell or code interpreter
}

// HasFlag reports whether a flag is set under any of the given names.
func (s Segment) HasFlag(names ...string) bool {
	for _, n := range names {
		if _, ok := s.Flags[n]; ok {
			return true
		}
	}
	return false
}

// Parse converts a raw command line into its structural form. A command the
// shell parser rejects falls back to whitespace/pipe splitting so matching
// still sees something.
func Parse(command string) *Command {
	return parseDepth(command, 0)
}

func parseDepth(command string, depth int) *Command {
	if depth >= maxInlineDepth {
		return nil
	}

	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return fallbackParse(command)
	}

	cmd := &Command{}
	for _, stmt := range file.Stmts {
		walkStmt(cmd, stmt, depth)
	}
	return cmd
}

func walkStmt(cmd *Command, stmt *syntax.Stmt, depth int) {
	if stmt == nil || stmt.Cmd == nil {
		return
	}

	switch node := stmt.Cmd.(type) {
	case *syntax.CallExpr:
		seg := buildSegment(node)
		if inline := inlineCode(seg); inline != "" {
			if sub := parseDepth(inline, depth+1); sub != nil {
				cmd.Inline = append(cmd.Inline, sub)
			}
		}
		cmd.Segments = append(cmd.Segments, seg)

	case *syntax.BinaryCmd:
		walkStmt(cmd, node.X, depth)
		cmd.Operators = append(cmd.Operators, binaryOp(node.Op))
		walkStmt(cmd, node.Y, depth)

	case *syntax.Subshell:
		for _, s := range node.Stmts {
			walkStmt(cmd, s, depth)
		}

	case *syntax.Block:
		for _, s := range node.Stmts {
			walkStmt(cmd, s, depth)
		}
	}
}

func buildSegment(call *syntax.CallExpr) Segment {
	seg := Segment{Flags: map[string]string{}}

	words := make([]string, 0, len(call.Args))
	printer := syntax.NewPrinter()
	for _, w := range call.Args {
		var sb strings.Builder
		printer.Print(&sb, w)
		words = append(words, strings.Trim(sb.String(), `'"`))
	}
	if len(words) == 0 {
		return seg
	}
	seg.Raw = strings.Join(words, " ")

	seg.Executable = words[0]
	rest := words[1:]

	// sudo is transparent for matching purposes: the wrapped command is what
	// gets classified, but Sudo stays set so rules can still see it.
	if seg.Executable == "sudo" {
		seg.Sudo = true
		for len(rest) > 0 && strings.HasPrefix(rest[0], "-") {
			// these sudo flags consume the following word
			if sudoValueFlags[rest[0]] && len(rest) > 1 {
				rest = rest[1:]
			}
			rest = rest[1:]
		}
		if len(rest) > 0 {
			seg.Executable = rest[0]
			rest = rest[1:]
		}
	}

	for _, w := range rest {
		switch {
		case strings.HasPrefix(w, "--") && len(w) > 2:
			name := w[2:]
			if i := strings.Index(name, "="); i >= 0 {
				seg.Flags[name[:i]] = name[i+1:]
			} else {
				seg.Flags[name] = ""
			}
		case strings.HasPrefix(w, "-") && len(w) > 1:
			for _, ch := range w[1:] {
				seg.Flags[string(ch)] = ""
			}
		default:
			seg.Args = append(seg.Args, w)
		}
	}

	if subcommandTools[seg.Executable] && len(seg.Args) > 0 {
		seg.Sub = seg.Args[0]
		seg.Args = seg.Args[1:]
	}
	seg.Shell = shells[seg.Executable] || interpreters[seg.Executable]
	return seg
}

// fallbackParse splits on pipes and whitespace when the AST parser fails.
func fallbackParse(command string) *Command {
	cmd := &Command{}
	parts := strings.Split(command, "|")
	for i, part := range parts {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) == 0 {
			continue
		}
		seg := Segment{
			Raw:        strings.TrimSpace(part),
			Executable: fields[0],
			Flags:      map[string]string{},
			Shell:      shells[fields[0]] || interpreters[fields[0]],
		}
		for _, w := range fields[1:] {
			if strings.HasPrefix(w, "-") && len(w) > 1 {
				for _, ch := range strings.TrimLeft(w, "-") {
					seg.Flags[string(ch)] = ""
				}
			} else {
				seg.Args = append(seg.Args, w)
			}
		}
		cmd.Segments = append(cmd.Segments, seg)
		if i < len(parts)-1 {
			cmd.Operators = append(cmd.Operators, "|")
		}
	}
	return cmd
}

// Denylisted reports whether a command matches the destructive-command
// denylist, either by catalog signature or by structural check, with the
// reason for the first match.
func Denylisted(command string) (string, bool) {
	for _, d := range catalog.CommandDenylist() {
		if d.Pattern.MatchString(command) {
			return d.Description, true
		}
	}

	cmd := Parse(command)
	if cmd == nil {
		return "", false
	}
	for _, check := range structuralChecks {
		if reason, ok := check(cmd); ok {
			return reason, true
		}
	}
	for _, inline := range cmd.Inline {
		for _, check := range structuralChecks {
			if reason, ok := check(inline); ok {
				return reason, true
			}
		}
	}
	return "", false
}

type structuralCheck func(*Command) (string, bool)

var structuralChecks = []structuralCheck{
	checkSudo,
	checkRecursiveDeleteRoot,
	checkDiskWrite,
	checkPipeToInterpreter,
	checkWorldWritableSystemPath,
}

func checkSudo(cmd *Command) (string, bool) {
	for _, seg := range cmd.Segments {
		if seg.Sudo {
			return "privilege escalation is not permitted for agent commands", true
		}
	}
	return "", false
}

func checkRecursiveDeleteRoot(cmd *Command) (string, bool) {
	for _, seg := range cmd.Segments {
		if seg.Executable != "rm" {
			continue
		}
		recursive := seg.HasFlag("r", "R", "recursive")
		force := seg.HasFlag("f", "force")
		if !recursive || !force {
			continue
		}
		for _, arg := range seg.Args {
			if isRootPath(arg) || isSystemDir(arg) {
				return fmt.Sprintf("recursive forced delete of %s", arg), true
			}
		}
	}
	return "", false
}

func checkDiskWrite(cmd *Command) (string, bool) {
	for _, seg := range cmd.Segments {
		if seg.Executable != "dd" && seg.Executable != "mkfs" && !strings.HasPrefix(seg.Executable, "mkfs.") {
			continue
		}
		if seg.Executable != "dd" {
			return fmt.Sprintf("%s reformats a filesystem", seg.Executable), true
		}
		for _, arg := range seg.Args {
			if strings.HasPrefix(arg, "of=") && isBlockDevice(arg[3:]) {
				return fmt.Sprintf("dd writing to block device %s", arg[3:]), true
			}
		}
	}
	return "", false
}

func checkPipeToInterpreter(cmd *Command) (string, bool) {
	for i := 0; i+1 < len(cmd.Segments); i++ {
		if i >= len(cmd.Operators) || cmd.Operators[i] != "|" {
			continue
		}
		left, right := cmd.Segments[i], cmd.Segments[i+1]
		if downloaders[left.Executable] && (shells[right.Executable] || interpreters[right.Executable]) {
			return fmt.Sprintf("download (%s) piped into interpreter (%s)", left.Executable, right.Executable), true
		}
	}
	return "", false
}

func checkWorldWritableSystemPath(cmd *Command) (string, bool) {
	for _, seg := range cmd.Segments {
		if seg.Executable != "chmod" {
			continue
		}
		for i, arg := range seg.Args {
			if !worldWritableMode(arg) {
				continue
			}
			for _, target := range seg.Args[i+1:] {
				if isRootPath(target) || isSystemDir(target) || underSystemDir(target) {
					return fmt.Sprintf("chmod %s on system path %s", arg, target), true
				}
			}
		}
	}
	return "", false
}

// Allowlisted reports whether every segment of a command is on the curated
// safe-command allowlist. A single non-allowlisted segment disqualifies the
// whole command, as does any sudo wrapping or inline interpreter code.
func Allowlisted(command string) bool {
	cmd := Parse(command)
	if cmd == nil || len(cmd.Segments) == 0 || len(cmd.Inline) > 0 {
		return false
	}
	for _, seg := range cmd.Segments {
		if seg.Sudo || !segmentAllowlisted(seg) {
			return false
		}
	}
	return true
}

func segmentAllowlisted(seg Segment) bool {
	for _, entry := range catalog.CommandAllowlist() {
		exe, sub, _ := strings.Cut(entry, " ")
		if seg.Executable != exe {
			continue
		}
		if sub == "" {
			return true
		}
		if seg.Sub == sub || seg.HasFlag(strings.TrimLeft(sub, "-")) {
			return true
		}
	}
	return false
}

func binaryOp(op syntax.BinCmdOperator) string {
	switch op {
	case syntax.Pipe:
		return "|"
	case syntax.AndStmt:
		return "&&"
	case syntax.OrStmt:
		return "||"
	default:
		return op.String()
	}
}

// inlineCode returns the code argument of `sh -c '...'` style invocations.
func inlineCode(seg Segment) string {
	if !seg.Shell {
		return ""
	}
	if _, ok := seg.Flags["c"]; ok && len(seg.Args) > 0 {
		return seg.Args[0]
	}
	return ""
}

var sudoValueFlags = map[string]bool{
	"-u": true, "-g": true, "-p": true, "-C": true,
	"-h": true, "-U": true, "-r": true, "-t": true,
}

var shells = map[string]bool{
	"sh": true, "bash": true, "zsh": true, "dash": true,
	"ksh": true, "fish": true, "csh": true, "tcsh": true,
}

var interpreters = map[string]bool{
	"python": true, "python3": true, "python2": true,
	"node": true, "ruby": true, "perl": true, "lua": true, "php": true,
}

var downloaders = map[string]bool{
	"curl": true, "wget": true, "fetch": true, "aria2c": true,
}

var subcommandTools = map[string]bool{
	"npm": true, "pip": true, "pip3": true, "yarn": true, "pnpm": true,
	"cargo": true, "go": true, "git": true, "docker": true,
	"kubectl": true, "brew": true, "apt": true, "apt-get": true,
	"systemctl": true, "service": true,
}

var systemDirs = map[string]bool{
	"/etc": true, "/usr": true, "/usr/local": true, "/usr/bin": true,
	"/usr/lib": true, "/var": true, "/var/log": true, "/boot": true,
	"/sys": true, "/proc": true, "/lib": true, "/lib64": true,
	"/sbin": true, "/bin": true, "/opt": true,
}

func isRootPath(p string) bool {
	trimmed := strings.TrimRight(p, "/")
	return trimmed == "" || p == "/*"
}

func isSystemDir(p string) bool {
	return systemDirs[strings.TrimRight(p, "/")]
}

func underSystemDir(p string) bool {
	for dir := range systemDirs {
		if strings.HasPrefix(p, dir+"/") {
			return true
		}
	}
	return false
}

func isBlockDevice(p string) bool {
	for _, prefix := range []string{"/dev/sd", "/dev/hd", "/dev/nvme", "/dev/vd", "/dev/xvd", "/dev/md", "/dev/dm-", "/dev/loop", "/dev/disk"} {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func worldWritableMode(mode string) bool {
	mode = strings.ToLower(mode)
	if mode == "777" || mode == "0777" {
		return true
	}
	hasAll := strings.Contains(mode, "a+") || strings.Contains(mode, "o+") || strings.HasPrefix(mode, "+")
	return hasAll && strings.Contains(mode, "w")
}
