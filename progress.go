package uberjob

import (
	"log/slog"
	"strings"
	"sync"
)

// ProgressObserver is the contract the scheduler consumes, per §4.8: an
// open capability set of callbacks invoked as nodes move through their
// lifecycle. All methods must be safe to call from any worker goroutine;
// the scheduler makes no ordering guarantee among callbacks for
// independent nodes. Progress grouping is by the node's scope, not its
// identity.
type ProgressObserver interface {
	ScopeEntered(scope []string)
	ScopeExited(scope []string)
	Scheduled(node *Node)
	Started(node *Node)
	Succeeded(node *Node)
	Failed(node *Node, err error)
	Retrying(node *Node, attempt int)
}

// NullObserver implements ProgressObserver with no-ops. It is the
// default when Run is called without a progress observer.
type NullObserver struct{}

func (NullObserver) ScopeEntered([]string)      {}
func (NullObserver) ScopeExited([]string)       {}
func (NullObserver) Scheduled(*Node)            {}
func (NullObserver) Started(*Node)              {}
func (NullObserver) Succeeded(*Node)            {}
func (NullObserver) Failed(*Node, error)        {}
func (NullObserver) Retrying(*Node, int)        {}

var _ ProgressObserver = NullObserver{}

// MultiObserver fans a single callback out to every composed observer.
// Composed observers are invoked in registration order; a panic in one
// observer does not prevent the others from being invoked.
type MultiObserver struct {
	observers []ProgressObserver
}

// NewMultiObserver composes observers into one.
func NewMultiObserver(observers ...ProgressObserver) *MultiObserver {
	return &MultiObserver{observers: observers}
}

func (m *MultiObserver) each(fn func(ProgressObserver)) {
	for _, o := range m.observers {
		func(o ProgressObserver) {
			defer func() { _ = recover() }()
			fn(o)
		}(o)
	}
}

func (m *MultiObserver) ScopeEntered(scope []string) { m.each(func(o ProgressObserver) { o.ScopeEntered(scope) }) }
func (m *MultiObserver) ScopeExited(scope []string)  { m.each(func(o ProgressObserver) { o.ScopeExited(scope) }) }
func (m *MultiObserver) Scheduled(n *Node)           { m.each(func(o ProgressObserver) { o.Scheduled(n) }) }
func (m *MultiObserver) Started(n *Node)             { m.each(func(o ProgressObserver) { o.Started(n) }) }
func (m *MultiObserver) Succeeded(n *Node)           { m.each(func(o ProgressObserver) { o.Succeeded(n) }) }
func (m *MultiObserver) Failed(n *Node, err error)   { m.each(func(o ProgressObserver) { o.Failed(n, err) }) }
func (m *MultiObserver) Retrying(n *Node, attempt int) {
	m.each(func(o ProgressObserver) { o.Retrying(n, attempt) })
}

var _ ProgressObserver = (*MultiObserver)(nil)

// SlogObserver logs every callback via a structured logger, matching the
// module's ambient logging convention (log/slog, structured attributes,
// Debug for routine transitions, Warn/Error for retries and failures).
type SlogObserver struct {
	logger *slog.Logger
	mu     sync.Mutex
}

// NewSlogObserver creates a SlogObserver. A nil logger falls back to
// slog.Default().
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogObserver{logger: logger}
}

// WithRunID returns a SlogObserver that tags every log line with runID,
// so the lines from one Run invocation can be grepped out of a shared
// log stream. Run generates one automatically when none is supplied.
func (s *SlogObserver) WithRunID(runID string) *SlogObserver {
	return &SlogObserver{logger: s.logger.With(slog.String("run_id", runID))}
}

func nodeName(n *Node) string {
	if fn, ok := n.Fn(); ok {
		return fn.Name
	}
	return "literal"
}

func (s *SlogObserver) ScopeEntered(scope []string) {
	s.logger.Debug("scope entered", slog.String("scope", strings.Join(scope, "/")))
}

func (s *SlogObserver) ScopeExited(scope []string) {
	s.logger.Debug("scope exited", slog.String("scope", strings.Join(scope, "/")))
}

func (s *SlogObserver) Scheduled(n *Node) {
	s.logger.Debug("node scheduled", slog.String("node", nodeName(n)))
}

func (s *SlogObserver) Started(n *Node) {
	s.logger.Debug("node started", slog.String("node", nodeName(n)))
}

func (s *SlogObserver) Succeeded(n *Node) {
	s.logger.Debug("node succeeded", slog.String("node", nodeName(n)))
}

func (s *SlogObserver) Failed(n *Node, err error) {
	s.logger.Error("node failed", slog.String("node", nodeName(n)), slog.Any("error", err))
}

func (s *SlogObserver) Retrying(n *Node, attempt int) {
	s.logger.Warn("node retrying", slog.String("node", nodeName(n)), slog.Int("attempt", attempt))
}

var _ ProgressObserver = (*SlogObserver)(nil)

// progressAdapter bridges the scheduler's runnerState transitions to the
// ProgressObserver contract, deriving scope_entered/scope_exited
// bracketing from per-scope remaining-node counts. All state mutation
// happens from the runOnGraph coordinator goroutine except for the
// Running transition, which touches no shared state and is safe to call
// concurrently from worker goroutines.
type progressAdapter struct {
	observer  ProgressObserver
	scopeTags map[string][]string
	remaining map[string]int
	entered   map[string]bool
}

func scopeKey(scope []string) string {
	return strings.Join(scope, "\x1f")
}

func newProgressAdapter(observer ProgressObserver, nodes []*Node) *progressAdapter {
	if observer == nil {
		observer = NullObserver{}
	}
	tags := make(map[string][]string)
	remaining := make(map[string]int)
	for _, n := range nodes {
		key := scopeKey(n.scope)
		tags[key] = n.scope
		remaining[key]++
	}
	return &progressAdapter{observer: observer, scopeTags: tags, remaining: remaining, entered: make(map[string]bool)}
}

func (pa *progressAdapter) onState(n *Node, state runnerState, err error) {
	key := scopeKey(n.scope)
	switch state {
	case stateReady:
		if !pa.entered[key] {
			pa.entered[key] = true
			pa.observer.ScopeEntered(n.scope)
		}
		pa.observer.Scheduled(n)
	case stateRunning:
		pa.observer.Started(n)
	case stateSucceeded:
		pa.observer.Succeeded(n)
		pa.finishScope(key)
	case stateFailed:
		pa.observer.Failed(n, err)
		pa.finishScope(key)
	case stateSkipped:
		pa.finishScope(key)
	}
}

func (pa *progressAdapter) finishScope(key string) {
	pa.remaining[key]--
	// A scope whose every node was skipped (e.g. a failed sibling scope
	// took out its only predecessor) never passed through stateReady, so
	// ScopeEntered was never fired for it; ScopeExited must not fire
	// either, or callers see an exit with no matching enter.
	if pa.remaining[key] == 0 && pa.entered[key] {
		pa.observer.ScopeExited(pa.scopeTags[key])
	}
}
