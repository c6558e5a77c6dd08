package uberjobotel_test

import (
	"context"
	"errors"
	"testing"

	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/twosigma/uberjob"
	"github.com/twosigma/uberjob/uberjobotel"
)

func newTestTracer() (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	return exporter, tp
}

func TestTracingObserverRecordsNodeSpans(t *testing.T) {
	exporter, tp := newTestTracer()
	tracer := tp.Tracer("test")
	obs := uberjobotel.NewTracingObserver(tracer, context.Background())

	plan := uberjob.NewPlan()
	add := uberjob.NewFn("add", func(args []any, kwargs map[string]any) (any, error) {
		return args[0].(int) + args[1].(int), nil
	})
	node, err := plan.Call(add, 1, 2)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if _, err := uberjob.Run(plan, uberjob.WithOutput(node), uberjob.WithProgress(obs)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	spans := exporter.GetSpans()
	found := false
	for _, s := range spans {
		if s.Name == "node:add" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a span named node:add among exported spans, got %v", spanNames(spans))
	}
}

func TestTracingObserverMarksFailedSpanWithError(t *testing.T) {
	exporter, tp := newTestTracer()
	tracer := tp.Tracer("test")
	obs := uberjobotel.NewTracingObserver(tracer, context.Background())

	plan := uberjob.NewPlan()
	boom := uberjob.NewFn("boom", func(args []any, kwargs map[string]any) (any, error) {
		return nil, errors.New("kaboom")
	})
	node, err := plan.Call(boom)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if _, err := uberjob.Run(plan, uberjob.WithOutput(node), uberjob.WithProgress(obs)); err == nil {
		t.Fatalf("expected an error")
	}

	spans := exporter.GetSpans()
	for _, s := range spans {
		if s.Name == "node:boom" {
			if s.Status.Code != otelcodes.Error {
				t.Errorf("expected an error status on the failed node span, got %v", s.Status.Code)
			}
			return
		}
	}
	t.Fatalf("node:boom span not found, got %v", spanNames(spans))
}

func TestTracingObserverBracketsScopeSpans(t *testing.T) {
	exporter, tp := newTestTracer()
	tracer := tp.Tracer("test")
	obs := uberjobotel.NewTracingObserver(tracer, context.Background())

	plan := uberjob.NewPlan()
	add := uberjob.NewFn("add", func(args []any, kwargs map[string]any) (any, error) {
		return args[0].(int) + args[1].(int), nil
	})
	exit := plan.Scope("stage1")
	node, err := plan.Call(add, 1, 2)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	exit()

	if _, err := uberjob.Run(plan, uberjob.WithOutput(node), uberjob.WithProgress(obs)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	names := spanNames(exporter.GetSpans())
	if !containsName(names, "scope:stage1") {
		t.Fatalf("expected a span named scope:stage1, got %v", names)
	}
}

func spanNames(spans tracetest.SpanStubs) []string {
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.Name
	}
	return out
}

func containsName(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}
