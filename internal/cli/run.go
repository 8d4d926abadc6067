package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/trustgate-dev/trustgate/internal/audit"
	"github.com/trustgate-dev/trustgate/internal/sandbox"
)

var runTimeoutMs int

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Execute a JavaScript fragment in the sandbox",
	Long: `Execute a fragment from a file (or stdin when the argument is - or
absent) inside the isolated interpreter. The fragment gets no filesystem,
network, or process access; console output is captured and printed after
the result.

Exit codes: 0 success, 1 execution failure, 2 error.

Examples:
  trustgate run ./transform.js
  echo "1 + 2" | trustgate run --profile minimal
  trustgate run --timeout 200 ./loop.js`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCommand,
}

func init() {
	runCmd.Flags().IntVar(&runTimeoutMs, "timeout", 0, "Execution budget in milliseconds (overrides the profile)")
	rootCmd.AddCommand(runCmd)
}

func runCommand(cmd *cobra.Command, args []string) error {
	source := "-"
	if len(args) == 1 {
		source = args[0]
	}
	code, err := readInput(source)
	if err != nil {
		return fmt.Errorf("failed to read fragment: %w", err)
	}

	e, err := buildEnv()
	if err != nil {
		return err
	}
	defer e.close()

	opts, err := sandbox.Profile(e.cfg.SandboxProfile)
	if err != nil {
		return err
	}
	if runTimeoutMs > 0 {
		opts.TimeoutMs = runTimeoutMs
	}
	opts.WorkingDir = e.cfg.WorkingDir

	result := sandbox.New(opts).Execute(string(code), nil)

	if err := e.audit.Log(audit.SandboxEvent(result.Success, string(result.Kind), result.Duration)); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write audit trail: %v\n", err)
	}

	for _, line := range result.ConsoleOutput {
		fmt.Fprintln(os.Stderr, "console:", line)
	}

	if !result.Success {
		fmt.Fprintf(os.Stderr, "❌ %s failure: %v\n", result.Kind, result.Error)
		return ErrChecksFailed
	}

	if result.Value != nil {
		fmt.Println(result.Value)
	}
	fmt.Fprintf(os.Stderr, "ok in %s\n", result.Duration.Round(time.Millisecond))
	return nil
}
