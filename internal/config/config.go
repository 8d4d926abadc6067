// Package config resolves the tool configuration from ~/.trustgate and
// merges rule packs from its rules.d directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/trustgate-dev/trustgate/internal/policy"
)

const (
	DefaultConfigDir  = ".trustgate"
	DefaultConfigFile = "config.yaml"
	DefaultAuditFile  = "audit.jsonl"
	PacksDirName      = "rules.d"
)

type Config struct {
	WorkingDir     string
	Mode           policy.ApprovalMode
	ConfigDir      string
	AuditPath      string
	SandboxProfile string
}

// fileConfig is the on-disk shape. All fields are optional; flags override
// whatever the file sets.
type fileConfig struct {
	Mode           string `yaml:"mode"`
	AuditPath      string `yaml:"audit_path"`
	SandboxProfile string `yaml:"sandbox_profile"`
}

// Load resolves the effective configuration. Non-empty arguments override
// the config file; the file overrides built-in defaults. A missing config
// file is not an error.
func Load(workingDir, mode, auditPath, profile string) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configDir := filepath.Join(homeDir, DefaultConfigDir)
	if err := ensureDir(configDir); err != nil {
		return nil, err
	}

	var fc fileConfig
	data, err := os.ReadFile(filepath.Join(configDir, DefaultConfigFile))
	if err == nil {
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", DefaultConfigFile, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg := &Config{
		ConfigDir:      configDir,
		Mode:           policy.ModeBalanced,
		AuditPath:      filepath.Join(configDir, DefaultAuditFile),
		SandboxProfile: "standard",
	}

	if fc.Mode != "" {
		cfg.Mode = policy.ApprovalMode(fc.Mode)
	}
	if fc.AuditPath != "" {
		cfg.AuditPath = fc.AuditPath
	}
	if fc.SandboxProfile != "" {
		cfg.SandboxProfile = fc.SandboxProfile
	}

	if mode != "" {
		m, err := policy.ParseMode(mode)
		if err != nil {
			return nil, err
		}
		cfg.Mode = m
	}
	if auditPath != "" {
		cfg.AuditPath = auditPath
	}
	if profile != "" {
		cfg.SandboxProfile = profile
	}

	if workingDir != "" {
		cfg.WorkingDir = workingDir
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		cfg.WorkingDir = wd
	}

	return cfg, nil
}

// PacksDir returns the rule pack directory under the config dir.
func (c *Config) PacksDir() string {
	return filepath.Join(c.ConfigDir, PacksDirName)
}

func ensureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0700)
	}
	return nil
}
