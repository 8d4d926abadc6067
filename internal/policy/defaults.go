package policy

// ConfigDotfilePrefix names the dotfiles the tool itself owns; deleting
// them is exempt from the dotfile-delete block.
const ConfigDotfilePrefix = ".trustgate"

// protectedPathGlobs are directories no agent operation should touch
// regardless of the working directory.
var protectedPathGlobs = []string{
	"~/.ssh/**",
	"~/.aws/**",
	"~/.gnupg/**",
	"~/.config/gcloud/**",
	"~/.kube/**",
}

// defaultRules is the baseline policy. Denylist rules carry higher priority
// than allowlist rules, so a command matching both resolves to block.
func defaultRules() []Rule {
	return []Rule{
		{
			ID:          "block-outside-root",
			Name:        "Block escapes from the working directory",
			Description: "Writes and deletes outside the working directory are not allowed",
			Target:      TargetPath,
			Action:      ActionBlock,
			Priority:    100,
			Condition: All{Conditions: []Condition{
				OperationIn{Ops: []Operation{OpWrite, OpDelete}},
				PathOutsideRoot{},
			}},
		},
		{
			ID:          "block-destructive-command",
			Name:        "Block destructive commands",
			Description: "Command matches the destructive-command denylist",
			Target:      TargetCommand,
			Action:      ActionBlock,
			Priority:    100,
			Condition: All{Conditions: []Condition{
				OperationIn{Ops: []Operation{OpExec}},
				CommandDenylisted{},
			}},
		},
		{
			ID:          "block-protected-path",
			Name:        "Block protected paths",
			Description: "Path is under a protected credential directory",
			Target:      TargetPath,
			Action:      ActionBlock,
			Priority:    95,
			Condition: All{Conditions: []Condition{
				OperationIn{Ops: []Operation{OpWrite, OpDelete}},
				PathGlob{Patterns: protectedPathGlobs},
			}},
		},
		{
			ID:          "block-dotfile-delete",
			Name:        "Block dotfile deletion",
			Description: "Deleting dotfiles is not allowed",
			Target:      TargetPath,
			Action:      ActionBlock,
			Priority:    90,
			Condition:   DotfileDelete{ExceptPrefix: ConfigDotfilePrefix},
		},
		{
			ID:          "block-secret-write",
			Name:        "Block writes containing secrets",
			Description: "Content contains credential material",
			Target:      TargetContent,
			Action:      ActionBlock,
			Priority:    80,
			Condition: All{Conditions: []Condition{
				OperationIn{Ops: []Operation{OpWrite}},
				ContentHasSecrets{},
			}},
		},
		{
			ID:          "warn-sensitive-filename",
			Name:        "Warn on sensitive filenames",
			Description: "Filename matches the sensitive-file denylist",
			Target:      TargetPath,
			Action:      ActionWarn,
			Priority:    70,
			Condition: All{Conditions: []Condition{
				OperationIn{Ops: []Operation{OpWrite}},
				PathDenylisted{},
			}},
		},
		{
			ID:          "approve-strict-mutation",
			Name:        "Strict mode approval",
			Description: "Strict mode requires approval for every non-read operation",
			Target:      TargetCommand,
			Action:      ActionNeedsApproval,
			Priority:    60,
			Condition: All{Conditions: []Condition{
				ModeIs{Mode: ModeStrict},
				Not{Condition: OperationIn{Ops: []Operation{OpRead}}},
			}},
		},
		{
			ID:          "allow-safe-command-fast",
			Name:        "Fast mode allowlist",
			Description: "Command is on the safe-command allowlist",
			Target:      TargetCommand,
			Action:      ActionAllow,
			Priority:    50,
			Condition: All{Conditions: []Condition{
				ModeIs{Mode: ModeFast},
				OperationIn{Ops: []Operation{OpExec}},
				CommandAllowlisted{},
			}},
		},
		{
			ID:          "approve-unlisted-exec",
			Name:        "Balanced mode exec approval",
			Description: "Command is not on the safe-command allowlist",
			Target:      TargetCommand,
			Action:      ActionNeedsApproval,
			Priority:    40,
			Condition: All{Conditions: []Condition{
				ModeIs{Mode: ModeBalanced},
				OperationIn{Ops: []Operation{OpExec}},
				Not{Condition: CommandAllowlisted{}},
			}},
		},
	}
}
