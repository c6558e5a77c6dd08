package uberjob

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// runConfig collects the optional knobs accepted by Run.
type runConfig struct {
	ctx        context.Context
	registry   *Registry
	output     *Node
	maxWorkers int
	maxErrors  int
	retry      RetryFunc
	progress   ProgressObserver
	freshTime  *time.Time
	dryRun     bool
	discipline QueueDiscipline
	runID      string
}

// RunOption configures a call to Run, following the same
// functional-options shape used elsewhere for optional collaborators.
type RunOption func(*runConfig)

// WithContext supplies the context.Context governing the run. It is
// passed to each node's evaluation, where the retry policy stops retrying
// once it is cancelled; the scheduler itself does not watch it, so
// cancelling it neither interrupts in-flight calls nor stops new nodes
// from being admitted. Defaults to context.Background.
func WithContext(ctx context.Context) RunOption {
	return func(c *runConfig) { c.ctx = ctx }
}

// WithRegistry supplies the Registry mapping stored and sourced nodes to
// their ValueStore. Without one, Run schedules the plan exactly as
// constructed, with no writes or reads injected.
func WithRegistry(registry *Registry) RunOption {
	return func(c *runConfig) { c.registry = registry }
}

// WithOutput requests that Run return the value materialized at output.
// Without it, Run executes every node reachable from nothing in
// particular -- i.e. the whole plan -- and returns nil.
func WithOutput(output *Node) RunOption {
	return func(c *runConfig) { c.output = output }
}

// WithMaxWorkers bounds the scheduler's worker pool. n <= 0 selects the
// default (one worker per CPU core).
func WithMaxWorkers(n int) RunOption {
	return func(c *runConfig) { c.maxWorkers = n }
}

// WithMaxErrors sets how many node failures are tolerated before the
// scheduler stops admitting new work. The default is DefaultMaxErrors.
func WithMaxErrors(n int) RunOption {
	return func(c *runConfig) { c.maxErrors = n }
}

// WithRetry supplies a RetryFunc applied to every Call node's
// invocation. Without one, a failing call is not retried.
func WithRetry(retry RetryFunc) RunOption {
	return func(c *runConfig) { c.retry = retry }
}

// WithProgress supplies a ProgressObserver notified of every node's
// lifecycle transitions and scope entry/exit.
func WithProgress(progress ProgressObserver) RunOption {
	return func(c *runConfig) { c.progress = progress }
}

// WithFreshTime supplies a lower bound below which a store's modified
// time is treated as absent, forcing recomputation. Without one, any
// recorded modified time is honored.
func WithFreshTime(t time.Time) RunOption {
	return func(c *runConfig) { c.freshTime = &t }
}

// WithDryRun makes Run stop after building and pruning the physical
// plan and running staleness analysis, returning the *PhysicalPlan
// instead of executing it. Useful for inspecting what would run.
func WithDryRun() RunOption {
	return func(c *runConfig) { c.dryRun = true }
}

// WithScheduler selects the queue discipline used to order the initial
// batch of independently-ready nodes; nodes that become ready later are
// admitted as their last predecessor completes. The default is
// SchedulerFIFO.
func WithScheduler(discipline QueueDiscipline) RunOption {
	return func(c *runConfig) { c.discipline = discipline }
}

// WithRunID tags the run with an explicit identifier, used to correlate
// its log lines and progress callbacks with the invocation that produced
// them. Without one, Run generates a random one.
func WithRunID(id string) RunOption {
	return func(c *runConfig) { c.runID = id }
}

// Run builds the physical plan implied by plan (and, if WithRegistry was
// given, its registry), runs staleness analysis to elide any store
// round-trip already fresh, and schedules the result. It returns the
// value materialized at the WithOutput node, or nil if none was
// requested, or the pruned *PhysicalPlan itself if WithDryRun was given.
//
// Errors surface in one of three shapes: a *ConstructionError from a
// malformed plan (never from Run itself, since construction already
// happened), a *TransformerError if the physical plan contains a cycle
// or an unreachable requested output, or a *CallError wrapping the first
// node failure once its retry budget (if any) is exhausted. An error from
// a store's ModifiedTime during staleness analysis is returned as is.
func Run(plan *Plan, opts ...RunOption) (any, error) {
	cfg := &runConfig{ctx: context.Background(), maxErrors: DefaultMaxErrors}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.runID == "" {
		cfg.runID = uuid.NewString()
	}
	if slogObs, ok := cfg.progress.(*SlogObserver); ok {
		cfg.progress = slogObs.WithRunID(cfg.runID)
	}

	pp, err := BuildPhysicalPlan(plan, cfg.registry, cfg.output)
	if err != nil {
		return nil, err
	}

	if err := computeStaleness(cfg.ctx, pp, cfg.freshTime, cfg.maxWorkers); err != nil {
		return nil, err
	}

	if cfg.dryRun {
		return pp, nil
	}

	result, err := schedule(cfg.ctx, pp, ScheduleOptions{
		MaxWorkers: cfg.maxWorkers,
		MaxErrors:  cfg.maxErrors,
		Retry:      cfg.retry,
		Progress:   cfg.progress,
		Discipline: cfg.discipline,
	})
	if err != nil {
		slog.Default().Error("run failed", slog.String("run_id", cfg.runID), slog.Any("error", err))
		return result, err
	}
	slog.Default().Debug("run finished", slog.String("run_id", cfg.runID))
	return result, nil
}
