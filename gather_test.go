package uberjob

import "testing"

func TestNewSetDeduplicates(t *testing.T) {
	s := NewSet(1, 2, 2, 3, 1)
	if s.Len() != 3 {
		t.Fatalf("expected 3 unique items, got %d: %v", s.Len(), s.Items())
	}
}

func TestDecomposeContainerSlice(t *testing.T) {
	shape, children, rebuild, ok := decomposeContainer([]int{1, 2, 3})
	if !ok || shape != shapeSequence {
		t.Fatalf("expected a sequence shape, got %v ok=%v", shape, ok)
	}
	if len(children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(children))
	}
	rebuilt := rebuild(children)
	got, ok := rebuilt.([]int)
	if !ok || len(got) != 3 || got[1] != 2 {
		t.Fatalf("expected rebuilt []int{1,2,3}, got %#v", rebuilt)
	}
}

func TestDecomposeContainerByteSliceIsOpaque(t *testing.T) {
	_, _, _, ok := decomposeContainer([]byte("hello"))
	if ok {
		t.Fatalf("expected []byte to not be a recognized container shape")
	}
}

func TestDecomposeContainerMap(t *testing.T) {
	shape, children, rebuild, ok := decomposeContainer(map[string]int{"a": 1})
	if !ok || shape != shapeMapping {
		t.Fatalf("expected a mapping shape, got %v ok=%v", shape, ok)
	}
	if len(children) != 2 {
		t.Fatalf("expected key,value pair, got %v", children)
	}
	rebuilt := rebuild(children)
	got, ok := rebuilt.(map[string]int)
	if !ok || got["a"] != 1 {
		t.Fatalf("expected rebuilt map, got %#v", rebuilt)
	}
}

func TestContainsNodeDetectsNestedNode(t *testing.T) {
	plan := NewPlan()
	n := plan.Lit(1)
	if !containsNode([]any{1, 2, n}) {
		t.Fatalf("expected containsNode to find the embedded node")
	}
	if containsNode([]any{1, 2, 3}) {
		t.Fatalf("expected containsNode to report false for a plain slice")
	}
}

func TestGatherRebuildsSequenceAtRuntime(t *testing.T) {
	plan := NewPlan()
	a := plan.Lit(1)
	b := plan.Lit(2)
	node, err := plan.Gather([]any{a, b, 3})
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	result, err := Run(plan, WithOutput(node))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	seq, ok := result.([]any)
	if !ok || len(seq) != 3 {
		t.Fatalf("expected a 3-element []any, got %#v", result)
	}
	if seq[0] != 1 || seq[1] != 2 || seq[2] != 3 {
		t.Fatalf("unexpected reconstructed sequence: %#v", seq)
	}
}
