// Package uberjobotel wires uberjob.ProgressObserver into OpenTelemetry
// tracing and metrics. The observers take a caller-configured
// tracer/meter and only translate lifecycle callbacks into spans and
// instruments; NewOTLPTracerProvider is a separate helper that builds an
// OTLP/HTTP-exporting tracer provider.
package uberjobotel

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/twosigma/uberjob"
)

func nodeName(n *uberjob.Node) string {
	if fn, ok := n.Fn(); ok {
		return fn.Name
	}
	return "literal"
}

func scopeKey(scope []string) string {
	key := ""
	for i, s := range scope {
		if i > 0 {
			key += "/"
		}
		key += s
	}
	return key
}

// TracingObserver creates one span per scope entered during a run and
// one child span per node, ending it on success or failure.
type TracingObserver struct {
	tracer trace.Tracer

	mu        sync.Mutex
	scopeCtxs map[string]context.Context
	nodeSpans map[*uberjob.Node]trace.Span
}

// NewTracingObserver creates a TracingObserver that starts spans with
// tracer. root is the context new scope spans are rooted under; pass
// context.Background() if the run has no ambient trace.
func NewTracingObserver(tracer trace.Tracer, root context.Context) *TracingObserver {
	if root == nil {
		root = context.Background()
	}
	t := &TracingObserver{
		tracer:    tracer,
		scopeCtxs: make(map[string]context.Context),
		nodeSpans: make(map[*uberjob.Node]trace.Span),
	}
	t.scopeCtxs[""] = root
	return t
}

func (t *TracingObserver) ScopeEntered(scope []string) {
	key := scopeKey(scope)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.scopeCtxs[key]; ok {
		return
	}
	parentKey := ""
	if len(scope) > 0 {
		parentKey = scopeKey(scope[:len(scope)-1])
	}
	parent, ok := t.scopeCtxs[parentKey]
	if !ok {
		parent = context.Background()
	}
	name := "scope"
	if len(scope) > 0 {
		name = "scope:" + scope[len(scope)-1]
	}
	ctx, span := t.tracer.Start(parent, name, trace.WithAttributes(
		attribute.String("uberjob.scope", key),
	))
	_ = span
	t.scopeCtxs[key] = ctx
}

func (t *TracingObserver) ScopeExited(scope []string) {
	key := scopeKey(scope)
	t.mu.Lock()
	ctx, ok := t.scopeCtxs[key]
	delete(t.scopeCtxs, key)
	t.mu.Unlock()
	if !ok {
		return
	}
	if span := trace.SpanFromContext(ctx); span != nil {
		span.End()
	}
}

func (t *TracingObserver) Scheduled(n *uberjob.Node) {}

func (t *TracingObserver) Started(n *uberjob.Node) {
	key := scopeKey(n.Scope())
	t.mu.Lock()
	parent, ok := t.scopeCtxs[key]
	t.mu.Unlock()
	if !ok {
		parent = context.Background()
	}
	_, span := t.tracer.Start(parent, "node:"+nodeName(n), trace.WithAttributes(
		attribute.String("uberjob.node", nodeName(n)),
		attribute.String("uberjob.node_kind", n.Kind().String()),
	))
	t.mu.Lock()
	t.nodeSpans[n] = span
	t.mu.Unlock()
}

func (t *TracingObserver) endNodeSpan(n *uberjob.Node) (trace.Span, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	span, ok := t.nodeSpans[n]
	if ok {
		delete(t.nodeSpans, n)
	}
	return span, ok
}

func (t *TracingObserver) Succeeded(n *uberjob.Node) {
	if span, ok := t.endNodeSpan(n); ok {
		span.SetStatus(codes.Ok, "")
		span.End()
	}
}

func (t *TracingObserver) Failed(n *uberjob.Node, err error) {
	if span, ok := t.endNodeSpan(n); ok {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		span.End()
	}
}

func (t *TracingObserver) Retrying(n *uberjob.Node, attempt int) {
	t.mu.Lock()
	span, ok := t.nodeSpans[n]
	t.mu.Unlock()
	if ok {
		span.AddEvent(fmt.Sprintf("retry attempt %d", attempt))
	}
}

var _ uberjob.ProgressObserver = (*TracingObserver)(nil)
