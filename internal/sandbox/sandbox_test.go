package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testSandbox(t *testing.T, profile string) *Sandbox {
	t.Helper()
	opts, err := Profile(profile)
	if err != nil {
		t.Fatalf("profile %q: %v", profile, err)
	}
	return New(opts)
}

func TestExecute_BasicExpression(t *testing.T) {
	sb := testSandbox(t, "standard")
	result := sb.Execute("1 + 2", nil)

	if !result.Success {
		t.Fatalf("expected success, got %v (%s)", result.Error, result.Kind)
	}
	if v, ok := result.Value.(int64); !ok || v != 3 {
		t.Errorf("expected 3, got %v (%T)", result.Value, result.Value)
	}
}

func TestExecute_Bindings(t *testing.T) {
	sb := testSandbox(t, "standard")
	result := sb.Execute("input.toUpperCase()", map[string]any{"input": "trust"})

	if !result.Success {
		t.Fatalf("expected success, got %v", result.Error)
	}
	if result.Value != "TRUST" {
		t.Errorf("expected TRUST, got %v", result.Value)
	}
}

func TestExecute_ConsoleIsRecorded(t *testing.T) {
	sb := testSandbox(t, "standard")
	result := sb.Execute(`console.log("a", 1); console.warn("b"); "done"`, nil)

	if !result.Success {
		t.Fatalf("expected success, got %v", result.Error)
	}
	if len(result.ConsoleOutput) != 2 {
		t.Fatalf("expected 2 console lines, got %v", result.ConsoleOutput)
	}
	if result.ConsoleOutput[0] != "a 1" {
		t.Errorf("expected %q, got %q", "a 1", result.ConsoleOutput[0])
	}
}

func TestExecute_ForbiddenConstructs(t *testing.T) {
	sb := testSandbox(t, "standard")

	tests := []string{
		`process.exit(1)`,
		`require("fs")`,
		`import("fs")`,
		`globalThis.x = 1`,
		`window.location`,
		`eval("1")`,
		`new Function("return 1")()`,
		`({}).__proto__.polluted = true`,
		`"".constructor.constructor("return 1")()`,
	}

	for _, code := range tests {
		result := sb.Execute(code, nil)
		if result.Kind != KindSecurity {
			t.Errorf("code %q: expected security failure, got %s (%v)", code, result.Kind, result.Error)
		}
		if result.Success {
			t.Errorf("code %q: must not execute", code)
		}
	}
}

func TestExecute_NestingBudget(t *testing.T) {
	opts, _ := Profile("standard")
	opts.MaxStackDepth = 2
	sb := New(opts)

	result := sb.Execute("var a = () => () => () => 1; a()()()", nil)
	if result.Kind != KindSecurity {
		t.Fatalf("expected security failure, got %s", result.Kind)
	}
	if !errors.Is(result.Error, ErrNestingTooDeep) {
		t.Errorf("expected ErrNestingTooDeep, got %v", result.Error)
	}
}

func TestExecute_InfiniteLoopTimesOut(t *testing.T) {
	opts, _ := Profile("standard")
	opts.TimeoutMs = 50
	sb := New(opts)

	start := time.Now()
	result := sb.Execute("while (true) {}", nil)
	elapsed := time.Since(start)

	if result.Kind != KindTimeout {
		t.Fatalf("expected timeout, got %s (%v)", result.Kind, result.Error)
	}
	if elapsed < 40*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Errorf("timeout fired at %v, expected near the 50ms budget", elapsed)
	}
}

func TestExecute_SyntaxError(t *testing.T) {
	sb := testSandbox(t, "standard")
	result := sb.Execute("var = ;", nil)

	if result.Kind != KindSyntax {
		t.Errorf("expected syntax failure, got %s (%v)", result.Kind, result.Error)
	}
}

func TestExecute_RuntimeError(t *testing.T) {
	sb := testSandbox(t, "standard")
	result := sb.Execute("undefinedVariable.field", nil)

	if result.Kind != KindRuntime {
		t.Errorf("expected runtime failure, got %s (%v)", result.Kind, result.Error)
	}
}

func TestExecuteAsync_DisabledByDefault(t *testing.T) {
	sb := testSandbox(t, "standard")
	result := sb.ExecuteAsync(context.Background(), "1 + 1", nil)

	if result.Kind != KindSecurity || !errors.Is(result.Error, ErrAsyncDisabled) {
		t.Errorf("expected ErrAsyncDisabled, got %s (%v)", result.Kind, result.Error)
	}
}

func TestExecuteAsync_ContextCancellation(t *testing.T) {
	sb := testSandbox(t, "extended")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result := sb.ExecuteAsync(ctx, "while (true) {}", nil)
	if result.Success {
		t.Fatal("expected cancellation to interrupt the loop")
	}
	if result.Kind != KindRuntime && result.Kind != KindTimeout {
		t.Errorf("unexpected kind %s (%v)", result.Kind, result.Error)
	}
}

func TestProfiles(t *testing.T) {
	for _, name := range []string{"minimal", "standard", "extended", "test"} {
		opts, err := Profile(name)
		if err != nil {
			t.Errorf("profile %q: %v", name, err)
		}
		if opts.TimeoutMs <= 0 || opts.MaxStackDepth <= 0 {
			t.Errorf("profile %q has zero limits: %+v", name, opts)
		}
	}
	if _, err := Profile("turbo"); err == nil {
		t.Error("expected an error for an unknown profile")
	}
}

func TestStats(t *testing.T) {
	sb := testSandbox(t, "standard")
	sb.Execute("1", nil)
	sb.Execute("2", nil)

	stats := sb.Stats()
	if stats.Executions != 2 {
		t.Errorf("expected 2 executions, got %d", stats.Executions)
	}
	if stats.TotalTime <= 0 {
		t.Error("expected cumulative time to advance")
	}

	sb.ResetStats()
	if stats := sb.Stats(); stats.Executions != 0 || stats.TotalTime != 0 {
		t.Errorf("expected zeroed stats, got %+v", stats)
	}
}
