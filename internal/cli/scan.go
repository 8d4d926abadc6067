package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scanRedact bool

var scanCmd = &cobra.Command{
	Use:   "scan [file]",
	Short: "Scan content for credentials and risky constructs",
	Long: `Scan a file (or stdin when the argument is - or absent) for credential
material and risky code constructs. With --redact the content is printed
with every credential masked instead.

Exit codes: 0 clean, 1 findings, 2 error.

Examples:
  trustgate scan ./deploy.sh
  cat notes.md | trustgate scan --redact`,
	Args: cobra.MaximumNArgs(1),
	RunE: scanCommand,
}

func init() {
	scanCmd.Flags().BoolVar(&scanRedact, "redact", false, "Print the content with credentials masked")
	rootCmd.AddCommand(scanCmd)
}

func scanCommand(cmd *cobra.Command, args []string) error {
	source := "-"
	if len(args) == 1 {
		source = args[0]
	}
	data, err := readInput(source)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	content := string(data)

	e, err := buildEnv()
	if err != nil {
		return err
	}
	defer e.close()

	if scanRedact {
		fmt.Print(e.gate.RedactContent(content))
		return nil
	}

	secrets := e.gate.ScanSecrets(content)
	risks := e.gate.ScanRisks(content)

	for _, m := range secrets.Secrets {
		fmt.Printf("secret  line %-4d %-24s %s\n", m.Line, m.Type, m.Redacted)
	}
	for _, m := range risks.Risks {
		fmt.Printf("risk    line %-4d %-24s [%s] %s\n", m.Line, m.Type, m.Level, m.Description)
	}

	if !secrets.Found && !risks.Found {
		fmt.Println("clean")
		return nil
	}

	fmt.Printf("\n%d secret(s), %d risk(s), overall risk %s\n",
		len(secrets.Secrets), len(risks.Risks), e.gate.RiskLevel(content))
	return ErrChecksFailed
}
