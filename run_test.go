package uberjob

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestRunWithExplicitRunIDTagsSlogOutput(t *testing.T) {
	plan := NewPlan()
	add := NewFn("add", func(args []any, kwargs map[string]any) (any, error) {
		return args[0].(int) + args[1].(int), nil
	})
	node, err := plan.Call(add, 1, 2)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	result, err := Run(plan, WithOutput(node), WithProgress(NewSlogObserver(logger)), WithRunID("fixed-run-id"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result != 3 {
		t.Fatalf("expected 3, got %v", result)
	}
	if !strings.Contains(buf.String(), "run_id=fixed-run-id") {
		t.Fatalf("expected log output tagged with the supplied run ID, got %q", buf.String())
	}
}

func TestRunWithoutExplicitRunIDGeneratesOne(t *testing.T) {
	plan := NewPlan()
	add := NewFn("add", func(args []any, kwargs map[string]any) (any, error) {
		return args[0].(int) + args[1].(int), nil
	})
	node, err := plan.Call(add, 1, 2)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if _, err := Run(plan, WithOutput(node), WithProgress(NewSlogObserver(logger))); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(buf.String(), "run_id=") {
		t.Fatalf("expected a generated run ID in the log output, got %q", buf.String())
	}
}
