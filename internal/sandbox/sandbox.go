// Package sandbox executes untrusted JavaScript fragments in an isolated
// interpreter with no host access. Each execution gets a fresh runtime, a
// hard wall-clock deadline, and a curated global surface; nothing the
// fragment does can touch the filesystem, network, or process.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// ErrorKind classifies why an execution failed.
type ErrorKind string

const (
	KindNone     ErrorKind = ""
	KindSecurity ErrorKind = "security"
	KindTimeout  ErrorKind = "timeout"
	KindMemory   ErrorKind = "memory"
	KindSyntax   ErrorKind = "syntax"
	KindRuntime  ErrorKind = "runtime"
)

var (
	ErrAsyncDisabled      = errors.New("async execution is disabled for this profile")
	ErrForbiddenConstruct = errors.New("code contains a forbidden construct")
	ErrNestingTooDeep     = errors.New("code exceeds the function nesting budget")

	errMemoryLimit = errors.New("output exceeded the memory limit")
)

// Options controls one sandbox instance. Zero values fall back to the
// standard profile's limits.
type Options struct {
	TimeoutMs        int
	MemoryLimitBytes int64
	MaxStackDepth    int
	AllowAsync       bool
	Globals          map[string]any
	WorkingDir       string
}

// Profile returns the bundled options for a named profile.
func Profile(name string) (Options, error) {
	switch name {
	case "minimal":
		return Options{TimeoutMs: 100, MemoryLimitBytes: 16 << 20, MaxStackDepth: 10}, nil
	case "standard", "":
		return Options{TimeoutMs: 1000, MemoryLimitBytes: 64 << 20, MaxStackDepth: 50}, nil
	case "extended":
		return Options{TimeoutMs: 5000, MemoryLimitBytes: 128 << 20, MaxStackDepth: 200, AllowAsync: true}, nil
	case "test":
		return Options{TimeoutMs: 50, MemoryLimitBytes: 8 << 20, MaxStackDepth: 10}, nil
	default:
		return Options{}, fmt.Errorf("unknown sandbox profile %q", name)
	}
}

// Result reports the outcome of one execution.
type Result struct {
	Success       bool
	Value         any
	Error         error
	Kind          ErrorKind
	Duration      time.Duration
	ConsoleOutput []string
}

// Stats accumulates per-instance execution counters.
type Stats struct {
	Executions int64
	TotalTime  time.Duration
}

// Sandbox runs fragments under a fixed set of options. Instances share
// nothing; a fresh interpreter is built per execution.
type Sandbox struct {
	opts Options

	mu    sync.Mutex
	stats Stats
}

func New(opts Options) *Sandbox {
	std, _ := Profile("standard")
	if opts.TimeoutMs <= 0 {
		opts.TimeoutMs = std.TimeoutMs
	}
	if opts.MemoryLimitBytes <= 0 {
		opts.MemoryLimitBytes = std.MemoryLimitBytes
	}
	if opts.MaxStackDepth <= 0 {
		opts.MaxStackDepth = std.MaxStackDepth
	}
	return &Sandbox{opts: opts}
}

// forbiddenConstructs are rejected before any code runs. The interpreter
// has no host bindings, so these are defense in depth against fragments
// probing for an escape hatch.
var forbiddenConstructs = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"require", regexp.MustCompile(`\brequire\s*\(`)},
	{"import", regexp.MustCompile(`\bimport\b`)},
	{"process", regexp.MustCompile(`\bprocess\b`)},
	{"globalThis", regexp.MustCompile(`\bglobalThis\b`)},
	{"global", regexp.MustCompile(`\bglobal\b`)},
	{"window", regexp.MustCompile(`\bwindow\b`)},
	{"eval", regexp.MustCompile(`\beval\s*\(`)},
	{"Function constructor", regexp.MustCompile(`\bFunction\s*\(|new\s+Function\b`)},
	{"__proto__", regexp.MustCompile(`__proto__`)},
	{"constructor chain", regexp.MustCompile(`\.\s*constructor\b|\[\s*['"]constructor['"]\s*\]`)},
}

func validate(code string, maxDepth int) error {
	for _, fc := range forbiddenConstructs {
		if fc.pattern.MatchString(code) {
			return fmt.Errorf("%w: %s", ErrForbiddenConstruct, fc.name)
		}
	}
	nesting := strings.Count(code, "function") + strings.Count(code, "=>")
	if nesting > maxDepth {
		return fmt.Errorf("%w: %d function sites, budget %d", ErrNestingTooDeep, nesting, maxDepth)
	}
	return nil
}

// Execute runs a fragment synchronously. Bindings become globals for this
// execution only.
func (s *Sandbox) Execute(code string, bindings map[string]any) Result {
	return s.run(context.Background(), code, bindings)
}

// ExecuteAsync runs a fragment under a context. Cancelling the context
// interrupts the interpreter mid-flight.
func (s *Sandbox) ExecuteAsync(ctx context.Context, code string, bindings map[string]any) Result {
	if !s.opts.AllowAsync {
		return Result{Kind: KindSecurity, Error: ErrAsyncDisabled}
	}
	return s.run(ctx, code, bindings)
}

func (s *Sandbox) run(ctx context.Context, code string, bindings map[string]any) Result {
	start := time.Now()
	defer func() {
		s.mu.Lock()
		s.stats.Executions++
		s.stats.TotalTime += time.Since(start)
		s.mu.Unlock()
	}()

	if err := validate(code, s.opts.MaxStackDepth); err != nil {
		return Result{Kind: KindSecurity, Error: err, Duration: time.Since(start)}
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(s.opts.MaxStackDepth * 64)

	var console []string
	var consoleBytes int64
	record := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, a := range call.Arguments {
			parts = append(parts, a.String())
		}
		line := strings.Join(parts, " ")
		consoleBytes += int64(len(line))
		if consoleBytes > s.opts.MemoryLimitBytes {
			vm.Interrupt(errMemoryLimit)
			return goja.Undefined()
		}
		console = append(console, line)
		return goja.Undefined()
	}
	consoleObj := vm.NewObject()
	consoleObj.Set("log", record)
	consoleObj.Set("warn", record)
	consoleObj.Set("error", record)
	vm.Set("console", consoleObj)

	for k, v := range s.opts.Globals {
		vm.Set(k, v)
	}
	for k, v := range bindings {
		vm.Set(k, v)
	}

	timer := time.AfterFunc(time.Duration(s.opts.TimeoutMs)*time.Millisecond, func() {
		vm.Interrupt(context.DeadlineExceeded)
	})
	defer timer.Stop()

	watchDone := make(chan struct{})
	defer close(watchDone)
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				vm.Interrupt(ctx.Err())
			case <-watchDone:
			}
		}()
	}

	value, err := vm.RunString(code)
	duration := time.Since(start)

	if err != nil {
		kind, cerr := classify(err)
		return Result{Error: cerr, Kind: kind, Duration: duration, ConsoleOutput: console}
	}

	var exported any
	if value != nil && !goja.IsUndefined(value) && !goja.IsNull(value) {
		exported = value.Export()
	}
	return Result{Success: true, Value: exported, Duration: duration, ConsoleOutput: console}
}

func classify(err error) (ErrorKind, error) {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		switch v := interrupted.Value().(type) {
		case error:
			if errors.Is(v, errMemoryLimit) {
				return KindMemory, v
			}
			if errors.Is(v, context.DeadlineExceeded) {
				return KindTimeout, fmt.Errorf("execution deadline exceeded")
			}
			return KindRuntime, v
		default:
			return KindTimeout, fmt.Errorf("execution interrupted: %v", v)
		}
	}

	var syntaxErr *goja.CompilerSyntaxError
	if errors.As(err, &syntaxErr) {
		return KindSyntax, err
	}

	var overflow *goja.StackOverflowError
	if errors.As(err, &overflow) {
		return KindMemory, err
	}

	if strings.Contains(err.Error(), "out of memory") {
		return KindMemory, err
	}
	return KindRuntime, err
}

// Stats returns a copy of the instance counters.
func (s *Sandbox) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Sandbox) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = Stats{}
}
