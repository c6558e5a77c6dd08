package uberjob

import (
	"context"
	"time"
)

// computeStaleness runs the staleness analyzer over pp: it queries every
// read node's backing store concurrently (reusing the generic
// worker-pool graph runner also used by the scheduler), propagates
// modified times forward through the physical plan, and elides the
// write half of every fresh pair (a stored node's write, or a dependent
// source's barrier and its gated predecessors) so the scheduler need
// only read it back. Once elision drops an entry, the physical plan is
// re-pruned to the requested output, since whatever only fed the elided
// node -- a stored node's producing Call, a dependent source's
// preparatory Call -- is no longer an ancestor of anything that still
// runs; per the freshness-monotonicity property, a plan that is already
// fresh everywhere must execute only read-nodes.
//
// freshTime, if non-nil, is a caller-supplied lower bound: any read
// whose store's modified time is absent or strictly older than
// freshTime is treated as absent.
func computeStaleness(ctx context.Context, pp *PhysicalPlan, freshTime *time.Time, workerCount int) error {
	order, ok := pp.graph.topoOrder()
	if !ok {
		return &TransformerError{Err: ErrCycleDetected}
	}

	// Query every read node's store concurrently; this is the one step
	// of staleness analysis that performs real I/O, so it is the step
	// dispatched through the shared worker-pool runner. The mini-graph
	// has no edges between read nodes -- store queries are independent.
	readGraph := newDgraph()
	for n := range pp.readStores {
		readGraph.addNode(n)
	}
	mtimes := make(map[*Node]*time.Time, len(pp.graph.nodes))
	var queryErr error
	err := runOnGraph(ctx, readGraph, workerCount, 0, func(ctx context.Context, n *Node) error {
		store := pp.readStores[n]
		t, has, err := store.ModifiedTime()
		if err != nil {
			return err
		}
		if has && freshTime != nil && t.Before(*freshTime) {
			has = false
		}
		if has {
			tt := t
			mtimes[n] = &tt
		} else {
			mtimes[n] = nil
		}
		return nil
	}, nil)
	if err != nil {
		queryErr = err
	}
	if queryErr != nil {
		return queryErr
	}

	// Propagate modified times forward: a non-read node's time is the
	// max over all its predecessors' times (transparent pass-through),
	// which is exactly the max modified time among any read-node
	// ancestor reachable through it. Staleness flows forward the same way:
	// a read is stale when its store has no usable modified time, when its
	// write (or barrier) carries a newer ancestor time, or when anything
	// upstream of it is stale and so about to be rebuilt.
	stale := make(map[*Node]bool, len(order))
	for _, n := range order {
		if _, isRead := pp.readStores[n]; isRead {
			readTime := mtimes[n]
			stale[n] = readTime == nil
			if write, ok := pp.writeOfRead[n]; ok {
				ancestorTime := mtimes[write]
				stale[n] = stale[n] || stale[write] || (ancestorTime != nil && ancestorTime.After(*readTime))
			}
			continue
		}
		var maxT *time.Time
		for _, e := range pp.graph.incoming(n) {
			if stale[e.From] {
				stale[n] = true
			}
			pt := mtimes[e.From]
			if pt == nil {
				continue
			}
			if maxT == nil || pt.After(*maxT) {
				maxT = pt
			}
		}
		mtimes[n] = maxT
	}

	elided := false
	for read, write := range pp.writeOfRead {
		if !stale[read] {
			pp.graph.removeNode(write)
			delete(pp.writeOfRead, read)
			elided = true
		}
	}

	if elided && pp.output != nil {
		keep := pp.graph.reachableBackward(pp.output)
		pp.graph.pruneToReachable(keep)
		for n := range pp.readStores {
			if !keep[n] {
				delete(pp.readStores, n)
			}
		}
	}

	return nil
}
