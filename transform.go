package uberjob

// PhysicalPlan is the graph the scheduler executes: distinct node
// identities from the logical Plan it was built from, with stored nodes
// replaced by write-then-read pairs and sourced nodes replaced by reads.
type PhysicalPlan struct {
	graph *dgraph

	// output is the physical node that materializes the requested
	// output value, or nil if no output was requested.
	output *Node

	// readStores maps every read node (from a stored pair or a sourced
	// placeholder) to the ValueStore it reads through.
	readStores map[*Node]ValueStore

	// writeOfRead maps a read node back to the node that must run
	// immediately before it: the store.write Call for a stored pair, or
	// a synthetic Barrier literal gating a dependent source's
	// preparatory predecessors. Staleness analysis elides this entry's
	// value (and, transitively, anything only reachable through it)
	// once the read is determined fresh. A sourced node with no
	// Dependency-edge predecessors has no entry.
	writeOfRead map[*Node]*Node

	// logicalOf maps a physical node back to the logical node it was
	// derived from, for diagnostics.
	logicalOf map[*Node]*Node
}

func cloneNode(n *Node) *Node {
	clone := &Node{
		kind:   n.kind,
		scope:  n.scope,
		frames: n.frames,
		value:  n.value,
		fn:     n.fn,
		plan:   n.plan,
	}
	return clone
}

// barrier is the sentinel literal value of a synthetic node inserted
// ahead of a dependent source's read: it gates the read behind its
// preparatory Dependency-edge predecessors (e.g. a file copy) without
// itself producing a usable value, mirroring the reference
// implementation's Barrier marker.
type barrier struct{}

func (barrier) String() string { return "Barrier" }

// BuildPhysicalPlan implements the physical-plan transformer: it copies
// the logical graph, injects write/read pairs for Registry-stored nodes
// and rewrites Registry-sourced placeholders into reads, prunes to the
// backward-reachable set of outputNode (if non-nil), and rejects the
// result if it contains a cycle. outputNode, if non-nil, must already
// have been gathered against plan (see Plan.Gather).
func BuildPhysicalPlan(plan *Plan, registry *Registry, outputNode *Node) (*PhysicalPlan, error) {
	pp := &PhysicalPlan{
		graph:       newDgraph(),
		readStores:  make(map[*Node]ValueStore),
		writeOfRead: make(map[*Node]*Node),
		logicalOf:   make(map[*Node]*Node),
	}

	logicalToPhysical := make(map[*Node]*Node, len(plan.graph.nodes))
	for _, n := range plan.graph.nodes {
		clone := cloneNode(n)
		logicalToPhysical[n] = clone
		pp.logicalOf[clone] = n
		pp.graph.addNode(clone)
	}
	for _, n := range plan.graph.nodes {
		for _, e := range plan.graph.outgoing(n) {
			pp.graph.addEdge(&Edge{
				Kind:  e.Kind,
				From:  logicalToPhysical[e.From],
				To:    logicalToPhysical[e.To],
				Index: e.Index,
				Name:  e.Name,
			})
		}
	}

	// replacement tracks, for every logical node substituted by the
	// registry, the physical node downstream consumers should attach
	// to (the read node), overriding the plain 1:1 clone.
	replacement := make(map[*Node]*Node)

	if registry != nil {
		for n := range plan.graph.nodeSet {
			if !registry.Contains(n) || registry.IsSource(n) {
				continue
			}
			store := registry.Get(n)
			pn := logicalToPhysical[n]

			readFn := NewFnWithSignature("uberjob.store_read", func(args []any, kwargs map[string]any) (any, error) {
				return store.Read()
			}, Signature{MinArgs: 0, MaxArgs: 0})
			read := &Node{kind: NodeCall, fn: readFn, scope: pn.scope, frames: pn.frames, plan: pn.plan}
			pp.graph.addNode(read)

			// Redirect pn's original downstream consumers to read
			// before wiring pn into the write node below, so the new
			// pn->write edge is never swept up in the redirection.
			pp.graph.redirectOutgoing(pn, read)

			writeFn := NewFnWithSignature("uberjob.store_write", func(args []any, kwargs map[string]any) (any, error) {
				return nil, store.Write(args[0])
			}, Signature{MinArgs: 1, MaxArgs: 1})
			write := &Node{kind: NodeCall, fn: writeFn, scope: pn.scope, frames: pn.frames, plan: pn.plan}
			pp.graph.addNode(write)
			pp.graph.addEdge(&Edge{Kind: EdgePositional, From: pn, To: write, Index: 0})
			pp.graph.addEdge(&Edge{Kind: EdgeDependency, From: write, To: read})

			pp.readStores[read] = store
			pp.writeOfRead[read] = write
			replacement[n] = read
		}

		for n := range plan.graph.nodeSet {
			if !registry.Contains(n) || !registry.IsSource(n) {
				continue
			}
			store := registry.Get(n)
			pn := logicalToPhysical[n]

			// A "dependent source": Dependency-edge predecessors the
			// user attached via AddDependency to make a preparatory
			// Call (e.g. a file copy) run before the read. Detach them
			// now and gate them behind a synthetic barrier so staleness
			// analysis can elide the whole preparatory branch once it
			// determines the source is fresh -- see computeStaleness.
			preds := pp.graph.detachIncoming(pn, EdgeDependency)

			pn.fn = NewFnWithSignature("uberjob.store_read", func(args []any, kwargs map[string]any) (any, error) {
				return store.Read()
			}, Signature{MinArgs: 0, MaxArgs: 0})
			pp.readStores[pn] = store
			replacement[n] = pn

			if len(preds) > 0 {
				gate := &Node{kind: NodeLiteral, value: barrier{}, scope: pn.scope, frames: pn.frames, plan: pn.plan}
				pp.graph.addNode(gate)
				for _, p := range preds {
					pp.graph.addEdge(&Edge{Kind: EdgeDependency, From: p, To: gate})
				}
				pp.graph.addEdge(&Edge{Kind: EdgeDependency, From: gate, To: pn})
				pp.writeOfRead[pn] = gate
			}
		}
	}

	resolve := func(n *Node) *Node {
		if r, ok := replacement[n]; ok {
			return r
		}
		return logicalToPhysical[n]
	}

	if outputNode != nil {
		if outputNode.plan != plan {
			return nil, &TransformerError{Err: ErrOutputUnreachable}
		}
		pp.output = resolve(outputNode)
		keep := pp.graph.reachableBackward(pp.output)
		pp.graph.pruneToReachable(keep)
		for n, s := range pp.readStores {
			if !keep[n] {
				delete(pp.readStores, n)
			}
			_ = s
		}
		for r := range pp.writeOfRead {
			if !keep[r] {
				delete(pp.writeOfRead, r)
			}
		}
	}

	if cyc := pp.graph.detectCycle(); cyc != nil {
		return nil, &TransformerError{Err: ErrCycleDetected}
	}

	return pp, nil
}

// Nodes returns every node of the physical plan, in insertion order.
func (pp *PhysicalPlan) Nodes() []*Node { return pp.graph.nodes }

// Output returns the physical node materializing the requested output,
// or nil if none was requested.
func (pp *PhysicalPlan) Output() *Node { return pp.output }
