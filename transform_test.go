package uberjob

import (
	"errors"
	"testing"
	"time"
)

func buildAreaPlan(t *testing.T) (*Plan, *Registry, *Node, *Node, *Node) {
	t.Helper()
	plan := NewPlan()
	registry := NewRegistry()

	add := NewFnWithSignature("add", func(args []any, kwargs map[string]any) (any, error) {
		return args[0].(int) + args[1].(int), nil
	}, Signature{MinArgs: 2, MaxArgs: 2})
	area := NewFnWithSignature("area", func(args []any, kwargs map[string]any) (any, error) {
		return args[0].(int) * args[1].(int), nil
	}, Signature{MinArgs: 2, MaxArgs: 2})

	x, err := plan.Call(add, 1, 2)
	if err != nil {
		t.Fatalf("Call add(1,2): %v", err)
	}
	y, err := plan.Call(add, 3, 4)
	if err != nil {
		t.Fatalf("Call add(3,4): %v", err)
	}
	z, err := plan.Call(area, x, y)
	if err != nil {
		t.Fatalf("Call area(x,y): %v", err)
	}

	if err := registry.Add(x, &memStore{}); err != nil {
		t.Fatalf("Add x: %v", err)
	}
	if err := registry.Add(y, &memStore{}); err != nil {
		t.Fatalf("Add y: %v", err)
	}
	if err := registry.Add(z, &memStore{}); err != nil {
		t.Fatalf("Add z: %v", err)
	}
	return plan, registry, x, y, z
}

// buildDependentSourcePlan builds a as a sourced placeholder, a
// preparatory copyCall Dependency-wired ahead of a second sourced
// placeholder b, and an output Call reading b. It mirrors the CLI's
// "dependent-source" demo at a fixture scale.
func buildDependentSourcePlan(t *testing.T) (plan *Plan, registry *Registry, aStore, bStore *memStore, copyCall, b, out *Node) {
	t.Helper()
	plan = NewPlan()
	registry = NewRegistry()

	aStore = &memStore{}
	bStore = &memStore{}

	a, err := registry.Source(plan, aStore)
	if err != nil {
		t.Fatalf("Source a: %v", err)
	}
	copyFn := NewFnWithSignature("copy", func(args []any, kwargs map[string]any) (any, error) {
		return nil, bStore.Write(args[0])
	}, Signature{MinArgs: 1, MaxArgs: 1})
	copyCall, err = plan.Call(copyFn, a)
	if err != nil {
		t.Fatalf("Call copy: %v", err)
	}
	b, err = registry.Source(plan, bStore)
	if err != nil {
		t.Fatalf("Source b: %v", err)
	}
	if err := plan.AddDependency(copyCall, b); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	square := NewFnWithSignature("square", func(args []any, kwargs map[string]any) (any, error) {
		n := args[0].(int)
		return n * n, nil
	}, Signature{MinArgs: 1, MaxArgs: 1})
	out, err = plan.Call(square, b)
	if err != nil {
		t.Fatalf("Call square: %v", err)
	}
	return plan, registry, aStore, bStore, copyCall, b, out
}

func TestBuildPhysicalPlanGatesDependentSourceBehindBarrier(t *testing.T) {
	plan, registry, _, _, copyCall, b, out := buildDependentSourcePlan(t)
	pp, err := BuildPhysicalPlan(plan, registry, out)
	if err != nil {
		t.Fatalf("BuildPhysicalPlan: %v", err)
	}

	bp := pp.logicalOf
	var bPhysical *Node
	for phys, logical := range bp {
		if logical == b {
			bPhysical = phys
		}
	}
	if bPhysical == nil {
		t.Fatalf("expected to find b's physical node")
	}

	gate, ok := pp.writeOfRead[bPhysical]
	if !ok {
		t.Fatalf("expected b's read to have a barrier entry in writeOfRead")
	}

	var copyPhysical *Node
	for phys, logical := range bp {
		if logical == copyCall {
			copyPhysical = phys
		}
	}
	if copyPhysical == nil {
		t.Fatalf("expected to find copyCall's physical node")
	}

	foundEdge := false
	for _, e := range pp.graph.outgoing(copyPhysical) {
		if e.To == gate {
			foundEdge = true
		}
	}
	if !foundEdge {
		t.Fatalf("expected copyCall's physical node to feed the barrier gating b's read")
	}
}

func TestBuildPhysicalPlanAddsNoBarrierForSourceWithoutDependencyPredecessors(t *testing.T) {
	plan := NewPlan()
	registry := NewRegistry()
	store := newFreshStore(3, time.Now())
	a, err := registry.Source(plan, store)
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	square := NewFn("square", func(args []any, kwargs map[string]any) (any, error) {
		n := args[0].(int)
		return n * n, nil
	})
	out, err := plan.Call(square, a)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	pp, err := BuildPhysicalPlan(plan, registry, out)
	if err != nil {
		t.Fatalf("BuildPhysicalPlan: %v", err)
	}
	if len(pp.writeOfRead) != 0 {
		t.Fatalf("expected no barrier entry for a source with no Dependency predecessors, got %d", len(pp.writeOfRead))
	}
}

func TestBuildPhysicalPlanInjectsWriteReadPairs(t *testing.T) {
	plan, registry, _, _, z := buildAreaPlan(t)
	pp, err := BuildPhysicalPlan(plan, registry, z)
	if err != nil {
		t.Fatalf("BuildPhysicalPlan: %v", err)
	}
	if len(pp.readStores) != 3 {
		t.Fatalf("expected 3 read nodes (x, y, z), got %d", len(pp.readStores))
	}
	if len(pp.writeOfRead) != 3 {
		t.Fatalf("expected 3 write nodes, got %d", len(pp.writeOfRead))
	}
	if pp.output == nil {
		t.Fatalf("expected an output node")
	}
}

func TestBuildPhysicalPlanPrunesUnreachable(t *testing.T) {
	plan := NewPlan()
	add := NewFn("add", func(args []any, kwargs map[string]any) (any, error) {
		return args[0].(int) + args[1].(int), nil
	})
	used, err := plan.Call(add, 1, 2)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	_, err = plan.Call(add, 3, 4) // unused, never wired to output
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	pp, err := BuildPhysicalPlan(plan, nil, used)
	if err != nil {
		t.Fatalf("BuildPhysicalPlan: %v", err)
	}
	if len(pp.Nodes()) != 3 { // Lit(1), Lit(2), Call(add)
		t.Fatalf("expected pruning to drop the unreachable branch, got %d nodes", len(pp.Nodes()))
	}
}

func TestBuildPhysicalPlanRejectsOutputFromDifferentPlan(t *testing.T) {
	planA := NewPlan()
	planB := NewPlan()
	other := planB.Lit(1)
	_, err := BuildPhysicalPlan(planA, nil, other)
	if err == nil {
		t.Fatalf("expected an error for a cross-plan output node")
	}
}

func TestBuildPhysicalPlanDetectsCycle(t *testing.T) {
	plan := NewPlan()
	a := plan.Lit(1)
	fn := NewFn("f", func(args []any, kwargs map[string]any) (any, error) { return args[0], nil })
	b, err := plan.Call(fn, a)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if err := plan.AddDependency(b, a); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	_, err = BuildPhysicalPlan(plan, nil, nil)
	var transformerErr *TransformerError
	if !errors.As(err, &transformerErr) {
		t.Fatalf("expected *TransformerError, got %v", err)
	}
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}
