package uberjob

import (
	"testing"
	"time"
)

func TestRegistryAddAndContains(t *testing.T) {
	plan := NewPlan()
	n := plan.Lit(1)
	registry := NewRegistry()
	store := &memStore{}
	if err := registry.Add(n, store); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !registry.Contains(n) {
		t.Fatalf("expected registry to contain n")
	}
	if registry.IsSource(n) {
		t.Fatalf("expected Add to record a stored relationship, not sourced")
	}
	if registry.Get(n) != store {
		t.Fatalf("expected Get to return the same store")
	}
}

func TestRegistryAddDuplicateRejected(t *testing.T) {
	plan := NewPlan()
	n := plan.Lit(1)
	registry := NewRegistry()
	if err := registry.Add(n, &memStore{}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := registry.Add(n, &memStore{}); err == nil {
		t.Fatalf("expected duplicate Add to be rejected")
	}
}

func TestRegistrySourceCreatesPlaceholder(t *testing.T) {
	plan := NewPlan()
	registry := NewRegistry()
	store := newFreshStore(3, time.Now())
	node, err := registry.Source(plan, store)
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	if !registry.IsSource(node) {
		t.Fatalf("expected node to be recorded as sourced")
	}
	if node.plan != plan {
		t.Fatalf("expected the placeholder to belong to plan")
	}
}

func TestRegistryCopyIsIndependent(t *testing.T) {
	plan := NewPlan()
	n := plan.Lit(1)
	registry := NewRegistry()
	_ = registry.Add(n, &memStore{})
	dup := registry.Copy()
	other := plan.Lit(2)
	_ = dup.Add(other, &memStore{})
	if registry.Contains(other) {
		t.Fatalf("expected original registry to be unaffected by mutating the copy")
	}
}
