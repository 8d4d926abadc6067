package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/trustgate-dev/trustgate/internal/approval"
	"github.com/trustgate-dev/trustgate/internal/audit"
	"github.com/trustgate-dev/trustgate/internal/policy"
)

var (
	checkOp      string
	checkPath    string
	checkCmdLine string
	checkContent string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate a proposed operation against the policy",
	Long: `Evaluate one proposed agent operation and print the decision. When the
decision is needs_approval and a terminal is attached, the user is prompted;
otherwise approval-required operations are denied.

Exit codes: 0 allowed, 1 blocked or denied, 2 error.

Examples:
  trustgate check --op exec --command "npm install lodash"
  trustgate check --op write --path ./notes.txt --content-file ./notes.txt
  echo "DATA" | trustgate check --op write --path out.txt --content-file -`,
	RunE: checkCommand,
}

func init() {
	checkCmd.Flags().StringVar(&checkOp, "op", "", "Operation: read, write, delete, or exec (required)")
	checkCmd.Flags().StringVar(&checkPath, "path", "", "Target path for read/write/delete operations")
	checkCmd.Flags().StringVar(&checkCmdLine, "command", "", "Command line for exec operations")
	checkCmd.Flags().StringVar(&checkContent, "content-file", "", "File holding the content to be written, or - for stdin")
	_ = checkCmd.MarkFlagRequired("op")
	rootCmd.AddCommand(checkCmd)
}

func checkCommand(cmd *cobra.Command, args []string) error {
	op, err := policy.ParseOperation(checkOp)
	if err != nil {
		return err
	}

	var content string
	if checkContent != "" {
		data, err := readInput(checkContent)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		content = string(data)
	}

	e, err := buildEnv()
	if err != nil {
		return err
	}
	defer e.close()

	ctx := &policy.Context{
		Operation:  op,
		Path:       checkPath,
		Command:    checkCmdLine,
		Content:    content,
		WorkingDir: e.cfg.WorkingDir,
		Mode:       e.cfg.Mode,
	}
	result := e.engine.Evaluate(ctx)

	userAction := ""
	allowed := false

	switch result.Decision {
	case policy.ActionBlock:
		fmt.Fprintln(os.Stderr, "❌ blocked:", policy.BlockReason(result))
	case policy.ActionNeedsApproval:
		answer := approval.Ask(ctx, result)
		userAction = answer.UserAction
		allowed = answer.Approved
		if !answer.Approved {
			fmt.Fprintln(os.Stderr, "❌ denied")
		}
	case policy.ActionWarn:
		for _, w := range result.Warnings {
			fmt.Fprintln(os.Stderr, "warning:", w)
		}
		allowed = true
	case policy.ActionAllow:
		allowed = true
	}

	if err := e.audit.Log(audit.PolicyEvent(ctx, result, userAction)); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write audit trail: %v\n", err)
	}

	fmt.Println(result.Decision)
	if !allowed {
		return ErrChecksFailed
	}
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
