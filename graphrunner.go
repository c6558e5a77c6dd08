package uberjob

import (
	"context"
	"runtime"
	"sync"
)

// runnerState mirrors the scheduler's node state machine (Pending is
// implicit: any node not yet observed here).
type runnerState int

const (
	stateReady runnerState = iota
	stateRunning
	stateSucceeded
	stateFailed
	stateSkipped
)

// defaultWorkerCount is the scheduler's default pool size: one worker
// per available CPU core.
func defaultWorkerCount() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return n
}

type runResult struct {
	node *Node
	err  error
}

// runOnGraph is the generic parallel worker-pool executor shared by the
// staleness analyzer and the scheduler: it runs process(n) for every
// node of g, respecting the happens-before relationship implied by every
// edge kind, using up to workerCount concurrent workers. Once more than
// maxErrors node failures have been recorded, no new node is admitted to
// the ready queue, but already-dispatched work runs to completion
// (cooperative cancellation only, per the concurrency model). observe,
// if non-nil, is invoked for every node's state transition and may be
// called concurrently from worker goroutines only for stateRunning; all
// other transitions are delivered from the single coordinator goroutine.
//
// All coordinator-owned state (remaining predecessor counts, the first
// error, the error count) is touched only from the coordinator goroutine
// that drains the results channel, so no locking is needed for it --
// workers communicate exclusively through channels.
// order, if non-nil, reorders a freshly-computed batch of initially-ready
// nodes before they are dispatched -- the hook the three scheduling
// disciplines (SchedulerFIFO/Random/Priority) plug into. It affects only
// the initial batch: nodes that become ready one at a time as the run
// progresses are admitted as soon as their last predecessor completes,
// since the spec's concurrency model gives no ordering guarantee among
// independent nodes and no testable property depends on it.
func runOnGraph(ctx context.Context, g *dgraph, workerCount, maxErrors int, process func(context.Context, *Node) error, observe func(*Node, runnerState, error)) error {
	return runOnGraphOrdered(ctx, g, workerCount, maxErrors, nil, process, observe)
}

func runOnGraphOrdered(ctx context.Context, g *dgraph, workerCount, maxErrors int, order func([]*Node) []*Node, process func(context.Context, *Node) error, observe func(*Node, runnerState, error)) error {
	if workerCount <= 0 {
		workerCount = defaultWorkerCount()
	}
	total := len(g.nodes)
	if total == 0 {
		return nil
	}

	remaining := make(map[*Node]int, total)
	for _, n := range g.nodes {
		remaining[n] = len(g.incoming(n))
	}

	ready := make(chan *Node, total)
	results := make(chan runResult, workerCount)

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range ready {
				if observe != nil {
					observe(n, stateRunning, nil)
				}
				err := process(workCtx, n)
				results <- runResult{node: n, err: err}
			}
		}()
	}

	visited := make(map[*Node]bool, total)
	skip := func(from *Node) int {
		count := 0
		stack := []*Node{from}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, e := range g.outgoing(cur) {
				succ := e.To
				if visited[succ] {
					continue
				}
				visited[succ] = true
				remaining[succ] = -1
				count++
				if observe != nil {
					observe(succ, stateSkipped, nil)
				}
				stack = append(stack, succ)
			}
		}
		return count
	}

	var initialReady []*Node
	for _, n := range g.nodes {
		if remaining[n] == 0 {
			initialReady = append(initialReady, n)
		}
	}
	if order != nil {
		initialReady = order(initialReady)
	}
	for _, n := range initialReady {
		visited[n] = true
		if observe != nil {
			observe(n, stateReady, nil)
		}
		ready <- n
	}

	var firstErr error
	errCount := 0
	stopped := false
	done := 0

	for done < total {
		res := <-results
		done++
		if res.err != nil {
			if observe != nil {
				observe(res.node, stateFailed, res.err)
			}
			if firstErr == nil {
				firstErr = res.err
			}
			errCount++
			done += skip(res.node)
			if errCount > maxErrors {
				stopped = true
			}
			continue
		}
		if observe != nil {
			observe(res.node, stateSucceeded, nil)
		}
		for _, e := range g.outgoing(res.node) {
			succ := e.To
			if visited[succ] {
				continue
			}
			remaining[succ]--
			if remaining[succ] == 0 {
				visited[succ] = true
				if stopped {
					if observe != nil {
						observe(succ, stateSkipped, nil)
					}
					done += 1 + skip(succ)
					continue
				}
				if observe != nil {
					observe(succ, stateReady, nil)
				}
				ready <- succ
			}
		}
	}

	close(ready)
	wg.Wait()
	return firstErr
}
