package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pathCmd = &cobra.Command{
	Use:   "path <path>",
	Short: "Check a path for traversal, fence, and denylist issues",
	Long: `Check one path against the working directory fence. Reports directory
traversal, escapes outside the working directory, and sensitive filenames.

Exit codes: 0 clean, 1 issues, 2 error.

Example:
  trustgate path ../../etc/passwd`,
	Args: cobra.ExactArgs(1),
	RunE: pathCommand,
}

func init() {
	rootCmd.AddCommand(pathCmd)
}

func pathCommand(cmd *cobra.Command, args []string) error {
	e, err := buildEnv()
	if err != nil {
		return err
	}
	defer e.close()

	result := e.gate.ScanPath(args[0], e.cfg.WorkingDir)
	if len(result.Issues) == 0 {
		fmt.Println("clean")
		return nil
	}

	for _, issue := range result.Issues {
		fmt.Printf("%-12s %s\n", issue.Kind, issue.Detail)
	}
	return ErrChecksFailed
}
