package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trustgate-dev/trustgate/internal/audit"
	"github.com/trustgate-dev/trustgate/internal/config"
	"github.com/trustgate-dev/trustgate/internal/guardian"
	"github.com/trustgate-dev/trustgate/internal/policy"
)

var (
	workDir        string
	mode           string
	auditPath      string
	sandboxProfile string
)

// ErrChecksFailed marks a run that completed but ended in a block, a
// denial, or findings. Commands return it instead of exiting so deferred
// cleanup still runs; main maps it to exit code 1.
var ErrChecksFailed = errors.New("checks failed")

var rootCmd = &cobra.Command{
	Use:           "trustgate",
	Short:         "TrustGate - Trust boundary enforcement for AI coding agents",
	SilenceErrors: true,
	SilenceUsage:  true,
	Long: `TrustGate sits between an AI coding agent and the workspace it operates
on, enforcing deterministic policy over file reads, writes, deletes, and
command execution. Content is scanned for credentials and risky constructs,
untrusted code fragments run in an isolated interpreter, and every decision
lands in a redacted audit trail.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workDir, "workdir", "", "Working directory operations are fenced to (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&mode, "mode", "", "Approval mode: strict, balanced, or fast (default: balanced)")
	rootCmd.PersistentFlags().StringVar(&auditPath, "audit", "", "Path to the audit trail (default: ~/.trustgate/audit.jsonl)")
	rootCmd.PersistentFlags().StringVar(&sandboxProfile, "profile", "", "Sandbox profile: minimal, standard, extended, or test")
}

func Execute() error {
	return rootCmd.Execute()
}

// env bundles the collaborators every command needs.
type env struct {
	cfg    *config.Config
	gate   *guardian.Gate
	engine *policy.Engine
	audit  *audit.Logger
}

func buildEnv() (*env, error) {
	cfg, err := config.Load(workDir, mode, auditPath, sandboxProfile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	gate := guardian.NewGate()
	engine := policy.NewEngine(gate)

	packs, infos, err := config.LoadPacks(cfg.PacksDir())
	if err != nil {
		return nil, fmt.Errorf("failed to read rule packs: %w", err)
	}
	for _, info := range infos {
		if info.Err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping pack %s: %v\n", info.Path, info.Err)
		}
	}
	for _, pack := range packs {
		if err := config.Apply(pack, gate, engine); err != nil {
			fmt.Fprintf(os.Stderr, "warning: pack %s not applied: %v\n", pack.Name, err)
		}
	}

	logger, err := audit.New(cfg.AuditPath, gate)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit trail: %w", err)
	}

	return &env{cfg: cfg, gate: gate, engine: engine, audit: logger}, nil
}

func (e *env) close() {
	_ = e.audit.Close()
}
