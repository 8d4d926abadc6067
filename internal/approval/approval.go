package approval

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/trustgate-dev/trustgate/internal/policy"
)

type Result struct {
	Approved   bool
	UserAction string
}

func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Ask renders an evaluation outcome on stderr and asks the user to approve
// or deny. Without a TTY the answer is always deny.
func Ask(ctx *policy.Context, result policy.Result) Result {
	if !IsInteractive() {
		return Result{
			Approved:   false,
			UserAction: "auto_deny_non_interactive",
		}
	}

	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "──────────────────── approval required ────────────────────")
	fmt.Fprintf(os.Stderr, "Operation: %s\n", ctx.Operation)
	if ctx.Command != "" {
		fmt.Fprintf(os.Stderr, "Command:   %s\n", ctx.Command)
	}
	if ctx.Path != "" {
		fmt.Fprintf(os.Stderr, "Path:      %s\n", ctx.Path)
	}
	fmt.Fprintln(os.Stderr, "")

	if len(result.MatchedRules) > 0 {
		fmt.Fprintln(os.Stderr, "Matched rules:")
		for _, m := range result.MatchedRules {
			reason := m.Rule.Description
			if reason == "" {
				reason = m.Rule.Name
			}
			fmt.Fprintf(os.Stderr, "  • %s [%s]: %s\n", m.Rule.ID, m.Rule.Action, reason)
		}
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	fmt.Fprintln(os.Stderr, "")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "Approve this operation once? [a]pprove / [d]eny: ")
		if !scanner.Scan() {
			return Result{
				Approved:   false,
				UserAction: "error_reading_input",
			}
		}

		switch strings.TrimSpace(strings.ToLower(scanner.Text())) {
		case "a", "approve", "yes", "y":
			return Result{
				Approved:   true,
				UserAction: "approve_once",
			}
		case "d", "deny", "no", "n":
			return Result{
				Approved:   false,
				UserAction: "deny",
			}
		default:
			fmt.Fprintln(os.Stderr, "Unrecognized answer, expected a or d.")
		}
	}
}
