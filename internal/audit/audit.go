// Package audit appends decision events to a JSONL trail. Every event is
// redacted before it reaches disk so the trail never stores raw secrets.
package audit

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/trustgate-dev/trustgate/internal/guardian"
	"github.com/trustgate-dev/trustgate/internal/policy"
)

// defaultMaxLogBytes caps the trail before rotation to a .1 backup.
const defaultMaxLogBytes = 5 << 20

// Event is one JSONL line. Policy and sandbox events share the shape;
// unused fields are omitted.
type Event struct {
	Timestamp    string   `json:"timestamp"`
	Kind         string   `json:"kind"`
	Operation    string   `json:"operation,omitempty"`
	Command      string   `json:"command,omitempty"`
	Path         string   `json:"path,omitempty"`
	Cwd          string   `json:"cwd,omitempty"`
	Decision     string   `json:"decision,omitempty"`
	MatchedRules []string `json:"matched_rules,omitempty"`
	Mode         string   `json:"mode,omitempty"`
	UserAction   string   `json:"user_action,omitempty"`
	Error        string   `json:"error,omitempty"`
	FailureKind  string   `json:"failure_kind,omitempty"`
	DurationMs   int64    `json:"duration_ms,omitempty"`
	Success      bool     `json:"success,omitempty"`
}

type Logger struct {
	path     string
	maxBytes int64
	gate     *guardian.Gate

	mu   sync.Mutex
	file *os.File
}

func New(path string, gate *guardian.Gate) (*Logger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	return &Logger{path: path, maxBytes: defaultMaxLogBytes, gate: gate, file: file}, nil
}

// PolicyEvent builds an event from an evaluation outcome. userAction is the
// approval verdict when one was requested, or empty.
func PolicyEvent(ctx *policy.Context, result policy.Result, userAction string) Event {
	var ruleIDs []string
	for _, m := range result.MatchedRules {
		ruleIDs = append(ruleIDs, m.Rule.ID)
	}
	return Event{
		Kind:         "policy",
		Operation:    string(ctx.Operation),
		Command:      ctx.Command,
		Path:         ctx.Path,
		Cwd:          ctx.WorkingDir,
		Decision:     string(result.Decision),
		MatchedRules: ruleIDs,
		Mode:         string(ctx.Mode),
		UserAction:   userAction,
	}
}

// SandboxEvent records one sandbox execution.
func SandboxEvent(success bool, failureKind string, duration time.Duration) Event {
	return Event{
		Kind:        "sandbox",
		Success:     success,
		FailureKind: failureKind,
		DurationMs:  duration.Milliseconds(),
	}
}

func (l *Logger) Log(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if l.gate != nil {
		event.Command = l.gate.RedactContent(event.Command)
		if event.Error != "" {
			event.Error = l.gate.RedactContent(event.Error)
		}
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if err := l.rotateIfNeeded(int64(len(data))); err != nil {
		return err
	}

	_, err = l.file.Write(data)
	return err
}

// rotateIfNeeded moves the trail aside once the next write would push it
// past the size cap. One .1 backup is kept; an older backup is replaced.
func (l *Logger) rotateIfNeeded(incoming int64) error {
	info, err := l.file.Stat()
	if err != nil {
		return err
	}
	if info.Size()+incoming <= l.maxBytes {
		return nil
	}

	if err := l.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(l.path, l.path+".1"); err != nil {
		return err
	}

	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	l.file = file
	return nil
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
