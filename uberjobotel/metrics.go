package uberjobotel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/twosigma/uberjob"
)

// MetricsObserver records counters and a duration histogram for node
// executions, keyed by node kind and name.
type MetricsObserver struct {
	executions metric.Int64Counter
	failures   metric.Int64Counter
	retries    metric.Int64Counter
	duration   metric.Float64Histogram

	mu      sync.Mutex
	started map[*uberjob.Node]time.Time
}

// NewMetricsObserver creates a MetricsObserver using instruments
// registered against meter.
func NewMetricsObserver(meter metric.Meter) (*MetricsObserver, error) {
	executions, err := meter.Int64Counter("uberjob.node.executions",
		metric.WithDescription("Number of node executions"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("uberjob.node.failures",
		metric.WithDescription("Number of node failures"))
	if err != nil {
		return nil, err
	}
	retries, err := meter.Int64Counter("uberjob.node.retries",
		metric.WithDescription("Number of node retry attempts"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("uberjob.node.duration",
		metric.WithDescription("Duration of node execution"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &MetricsObserver{
		executions: executions,
		failures:   failures,
		retries:    retries,
		duration:   duration,
		started:    make(map[*uberjob.Node]time.Time),
	}, nil
}

func (m *MetricsObserver) attrs(n *uberjob.Node) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("uberjob.node_kind", n.Kind().String()),
		attribute.String("uberjob.node", nodeName(n)),
	)
}

func (m *MetricsObserver) ScopeEntered(scope []string) {}
func (m *MetricsObserver) ScopeExited(scope []string)  {}
func (m *MetricsObserver) Scheduled(n *uberjob.Node)   {}

func (m *MetricsObserver) Started(n *uberjob.Node) {
	m.mu.Lock()
	m.started[n] = time.Now()
	m.mu.Unlock()
}

func (m *MetricsObserver) Succeeded(n *uberjob.Node) {
	ctx := context.Background()
	m.executions.Add(ctx, 1, m.attrs(n))
	m.mu.Lock()
	start, ok := m.started[n]
	delete(m.started, n)
	m.mu.Unlock()
	if ok {
		m.duration.Record(ctx, time.Since(start).Seconds(), m.attrs(n))
	}
}

func (m *MetricsObserver) Failed(n *uberjob.Node, err error) {
	ctx := context.Background()
	m.failures.Add(ctx, 1, m.attrs(n))
	m.mu.Lock()
	delete(m.started, n)
	m.mu.Unlock()
}

func (m *MetricsObserver) Retrying(n *uberjob.Node, attempt int) {
	m.retries.Add(context.Background(), 1, m.attrs(n))
}

var _ uberjob.ProgressObserver = (*MetricsObserver)(nil)
