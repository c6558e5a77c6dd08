package uberjob

import (
	"errors"
	"testing"
)

func addFn() *Fn {
	return NewFnWithSignature("add", func(args []any, kwargs map[string]any) (any, error) {
		return args[0].(int) + args[1].(int), nil
	}, Signature{MinArgs: 2, MaxArgs: 2})
}

func TestPlanCallBasic(t *testing.T) {
	plan := NewPlan()
	n, err := plan.Call(addFn(), 1, 2)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if n.Kind() != NodeCall {
		t.Fatalf("expected NodeCall, got %v", n.Kind())
	}
	fn, ok := n.Fn()
	if !ok || fn.Name != "add" {
		t.Fatalf("expected fn add, got %v ok=%v", fn, ok)
	}
}

func TestPlanCallSignatureMismatch(t *testing.T) {
	plan := NewPlan()
	_, err := plan.Call(addFn(), 1)
	var constructionErr *ConstructionError
	if !errors.As(err, &constructionErr) {
		t.Fatalf("expected *ConstructionError, got %v", err)
	}
}

func TestPlanCallDuplicateKeyword(t *testing.T) {
	plan := NewPlan()
	fn := NewFn("f", func(args []any, kwargs map[string]any) (any, error) { return nil, nil })
	_, err := plan.Call(fn, KW("x", 1), KW("x", 2))
	var constructionErr *ConstructionError
	if !errors.As(err, &constructionErr) {
		t.Fatalf("expected *ConstructionError for duplicate keyword, got %v", err)
	}
}

func TestPlanCallKeywordRejectedBySignature(t *testing.T) {
	plan := NewPlan()
	fn := NewFnWithSignature("f", func(args []any, kwargs map[string]any) (any, error) {
		return nil, nil
	}, Signature{MinArgs: 0, MaxArgs: 0, Keywords: map[string]bool{"allowed": true}})
	if _, err := plan.Call(fn, KW("allowed", 1)); err != nil {
		t.Fatalf("expected allowed keyword to bind, got %v", err)
	}
	if _, err := plan.Call(fn, KW("forbidden", 1)); err == nil {
		t.Fatalf("expected forbidden keyword to be rejected")
	}
}

func TestPlanGatherSequenceEmbedsCallNodes(t *testing.T) {
	plan := NewPlan()
	lit := plan.Lit(10)
	sum := NewFn("sum", func(args []any, kwargs map[string]any) (any, error) {
		total := 0
		for _, v := range args[0].([]any) {
			total += v.(int)
		}
		return total, nil
	})
	node, err := plan.Call(sum, []any{lit, 5, 7})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if node.Kind() != NodeCall {
		t.Fatalf("expected NodeCall wrapping the gather, got %v", node.Kind())
	}
}

func TestPlanGatherWithoutNodesIsLiteral(t *testing.T) {
	plan := NewPlan()
	fn := NewFn("identity", func(args []any, kwargs map[string]any) (any, error) { return args[0], nil })
	node, err := plan.Call(fn, []any{1, 2, 3})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	// The argument slice contains no Node, so it must have been wrapped
	// as a single Literal rather than exploded into a gather call chain.
	incoming := plan.graph.incoming(node)
	if len(incoming) != 1 {
		t.Fatalf("expected exactly one incoming edge, got %d", len(incoming))
	}
	if incoming[0].From.Kind() != NodeLiteral {
		t.Fatalf("expected the sole argument node to be a Literal, got %v", incoming[0].From.Kind())
	}
}

func TestPlanAddDependencyRejectsCrossPlan(t *testing.T) {
	planA := NewPlan()
	planB := NewPlan()
	a := planA.Lit(1)
	b := planB.Lit(2)
	if err := planA.AddDependency(a, b); err == nil {
		t.Fatalf("expected cross-plan dependency to be rejected")
	}
}

func TestPlanScopeStackOrder(t *testing.T) {
	plan := NewPlan()
	closeOuter := plan.Scope("outer")
	closeInner := plan.Scope("inner")

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic exiting scopes out of order")
		}
	}()
	closeOuter()
	_ = closeInner
}

func TestPlanScopeTagsOnNodes(t *testing.T) {
	plan := NewPlan()
	close := plan.Scope("outer")
	n := plan.Lit(1)
	close()
	if got := n.Scope(); len(got) != 1 || got[0] != "outer" {
		t.Fatalf("expected scope [outer], got %v", got)
	}
}

func TestPlanUnpack(t *testing.T) {
	plan := NewPlan()
	pair := plan.Lit([]any{10, 20})
	parts, err := plan.Unpack(pair, 2)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	output, err := Run(plan, WithOutput(parts[1]))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if output != 20 {
		t.Fatalf("expected 20, got %v", output)
	}
}
