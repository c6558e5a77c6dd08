package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/twosigma/uberjob"
	"github.com/twosigma/uberjob/stores"
)

// demoPlan builds one of the CLI's built-in illustrative plans, along
// with the registry (if any) and output node Run needs. These mirror
// the module's own worked examples: a bare arithmetic call with no
// storage, a three-node stored pipeline that demonstrates write-then-read
// and staleness elision, and a dependent source whose preparatory copy
// only runs when its downstream source is stale.
func demoPlan(name, storeDir string) (*uberjob.Plan, *uberjob.Registry, *uberjob.Node, error) {
	switch name {
	case "arithmetic":
		return demoArithmetic()
	case "pipeline":
		return demoPipeline(storeDir)
	case "dependent-source":
		return demoDependentSource(storeDir)
	default:
		return nil, nil, nil, fmt.Errorf("unknown demo plan %q (try %q, %q, or %q)", name, "arithmetic", "pipeline", "dependent-source")
	}
}

func demoArithmetic() (*uberjob.Plan, *uberjob.Registry, *uberjob.Node, error) {
	plan := uberjob.NewPlan()
	add := uberjob.NewFn("add", func(args []any, kwargs map[string]any) (any, error) {
		return args[0].(int) + args[1].(int), nil
	})
	z, err := plan.Call(add, 1, 2)
	if err != nil {
		return nil, nil, nil, err
	}
	return plan, nil, z, nil
}

func demoPipeline(storeDir string) (*uberjob.Plan, *uberjob.Registry, *uberjob.Node, error) {
	if storeDir == "" {
		storeDir = "."
	}
	plan := uberjob.NewPlan()
	registry := uberjob.NewRegistry()

	add := uberjob.NewFn("add", func(args []any, kwargs map[string]any) (any, error) {
		return args[0].(int) + args[1].(int), nil
	})
	area := uberjob.NewFn("area", func(args []any, kwargs map[string]any) (any, error) {
		// x and y are read back from their JSON stores as float64.
		return args[0].(float64) * args[1].(float64), nil
	})

	x, err := plan.Call(add, 1, 2)
	if err != nil {
		return nil, nil, nil, err
	}
	y, err := plan.Call(add, 3, 4)
	if err != nil {
		return nil, nil, nil, err
	}
	z, err := plan.Call(area, x, y)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := registry.Add(x, stores.NewJSONFileStore(storeDir+"/x.json")); err != nil {
		return nil, nil, nil, err
	}
	if err := registry.Add(y, stores.NewJSONFileStore(storeDir+"/y.json")); err != nil {
		return nil, nil, nil, err
	}
	if err := registry.Add(z, stores.NewJSONFileStore(storeDir+"/z.json")); err != nil {
		return nil, nil, nil, err
	}

	return plan, registry, z, nil
}

// demoDependentSource builds a dependent source: a is a sourced node
// standing in for an externally-produced input, copy is a preparatory
// Call that stages a's value into b's backing file, and b is a second
// sourced node wired with a Dependency edge from copy. The transformer
// gates that edge behind a synthetic barrier, so the staleness analyzer
// elides it -- and copy never runs -- once b's store is at least as
// fresh as a's. Deleting b.json (or touching a.json) between runs makes
// b stale again and copy executes once more.
func demoDependentSource(storeDir string) (*uberjob.Plan, *uberjob.Registry, *uberjob.Node, error) {
	if storeDir == "" {
		storeDir = "."
	}
	aPath := filepath.Join(storeDir, "a.json")
	bPath := filepath.Join(storeDir, "b.json")

	if _, err := os.Stat(aPath); errors.Is(err, os.ErrNotExist) {
		if err := stores.NewJSONFileStore(aPath).Write(21); err != nil {
			return nil, nil, nil, fmt.Errorf("seed dependent-source demo input: %w", err)
		}
	} else if err != nil {
		return nil, nil, nil, err
	}

	plan := uberjob.NewPlan()
	registry := uberjob.NewRegistry()

	a, err := registry.Source(plan, stores.NewJSONFileStore(aPath))
	if err != nil {
		return nil, nil, nil, err
	}

	copyFn := uberjob.NewFn("copy", func(args []any, kwargs map[string]any) (any, error) {
		return nil, stores.NewJSONFileStore(bPath).Write(args[0])
	})
	copyCall, err := plan.Call(copyFn, a)
	if err != nil {
		return nil, nil, nil, err
	}

	b, err := registry.Source(plan, stores.NewJSONFileStore(bPath))
	if err != nil {
		return nil, nil, nil, err
	}
	if err := plan.AddDependency(copyCall, b); err != nil {
		return nil, nil, nil, err
	}

	pow2 := uberjob.NewFn("pow2", func(args []any, kwargs map[string]any) (any, error) {
		n, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("pow2: expected a JSON number, got %T", args[0])
		}
		return n * n, nil
	})
	out, err := plan.Call(pow2, b)
	if err != nil {
		return nil, nil, nil, err
	}

	return plan, registry, out, nil
}
