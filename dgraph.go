package uberjob

// dgraph is the internal multidigraph shared by the logical Plan and the
// physical plan produced by the transformer. It keeps nodes in insertion
// order (for deterministic iteration in tests and rendering) and stores
// parallel edges as plain slices rather than a keyed map, since nothing
// in this module needs edge-identity deduplication -- only edge-kind
// dispatch.
type dgraph struct {
	nodes    []*Node
	nodeSet  map[*Node]bool
	outEdges map[*Node][]*Edge
	inEdges  map[*Node][]*Edge
}

func newDgraph() *dgraph {
	return &dgraph{
		nodeSet:  make(map[*Node]bool),
		outEdges: make(map[*Node][]*Edge),
		inEdges:  make(map[*Node][]*Edge),
	}
}

func (g *dgraph) addNode(n *Node) {
	if g.nodeSet[n] {
		return
	}
	g.nodeSet[n] = true
	g.nodes = append(g.nodes, n)
}

func (g *dgraph) hasNode(n *Node) bool {
	return g.nodeSet[n]
}

func (g *dgraph) addEdge(e *Edge) {
	g.outEdges[e.From] = append(g.outEdges[e.From], e)
	g.inEdges[e.To] = append(g.inEdges[e.To], e)
}

func (g *dgraph) outgoing(n *Node) []*Edge { return g.outEdges[n] }
func (g *dgraph) incoming(n *Node) []*Edge { return g.inEdges[n] }

// removeNode deletes n and every edge touching it. Callers are
// responsible for having already redirected any edges they wish to
// preserve.
func (g *dgraph) removeNode(n *Node) {
	if !g.nodeSet[n] {
		return
	}
	delete(g.nodeSet, n)
	for i, x := range g.nodes {
		if x == n {
			g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
			break
		}
	}
	for _, e := range g.outEdges[n] {
		g.inEdges[e.To] = removeEdge(g.inEdges[e.To], e)
	}
	for _, e := range g.inEdges[n] {
		g.outEdges[e.From] = removeEdge(g.outEdges[e.From], e)
	}
	delete(g.outEdges, n)
	delete(g.inEdges, n)
}

// redirectOutgoing moves every outgoing edge of `from` so that it
// originates at `to` instead, preserving edge kind/index/name. Used by
// the transformer to splice a read-node in place of a stored node's
// original producer.
func (g *dgraph) redirectOutgoing(from, to *Node) {
	edges := g.outEdges[from]
	g.outEdges[from] = nil
	for _, e := range edges {
		g.inEdges[e.To] = removeEdge(g.inEdges[e.To], e)
		e.From = to
		g.outEdges[to] = append(g.outEdges[to], e)
		g.inEdges[e.To] = append(g.inEdges[e.To], e)
	}
}

// detachIncoming removes every incoming edge of the given kind from n,
// returning the sources of the removed edges in their original order.
// Edges of other kinds touching n are left untouched. Used by the
// transformer to pull a sourced placeholder's Dependency-edge
// predecessors out of the graph before staleness analysis decides
// whether they still need to run.
func (g *dgraph) detachIncoming(n *Node, kind EdgeKind) []*Node {
	var sources []*Node
	var keep []*Edge
	for _, e := range g.inEdges[n] {
		if e.Kind == kind {
			sources = append(sources, e.From)
			g.outEdges[e.From] = removeEdge(g.outEdges[e.From], e)
			continue
		}
		keep = append(keep, e)
	}
	g.inEdges[n] = keep
	return sources
}

func removeEdge(edges []*Edge, target *Edge) []*Edge {
	out := edges[:0]
	for _, e := range edges {
		if e != target {
			out = append(out, e)
		}
	}
	return out
}

// reachableBackward returns the set of nodes reachable from start by
// walking incoming edges of any kind, including start itself.
func (g *dgraph) reachableBackward(starts ...*Node) map[*Node]bool {
	visited := make(map[*Node]bool)
	queue := append([]*Node{}, starts...)
	for _, s := range starts {
		visited[s] = true
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, e := range g.inEdges[n] {
			if !visited[e.From] {
				visited[e.From] = true
				queue = append(queue, e.From)
			}
		}
	}
	return visited
}

// pruneToReachable removes every node not present in keep.
func (g *dgraph) pruneToReachable(keep map[*Node]bool) {
	var drop []*Node
	for _, n := range g.nodes {
		if !keep[n] {
			drop = append(drop, n)
		}
	}
	for _, n := range drop {
		g.removeNode(n)
	}
}

// detectCycle performs a DFS-based cycle check across all edge kinds
// (PositionalArg, KeywordArg, and Dependency all contribute to the
// happens-before relationship that must remain acyclic). It returns the
// first node discovered to participate in a cycle, or nil if the graph
// is a DAG.
func (g *dgraph) detectCycle() *Node {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[*Node]int, len(g.nodes))
	var cyclic *Node

	var visit func(n *Node) bool
	visit = func(n *Node) bool {
		color[n] = gray
		for _, e := range g.outEdges[n] {
			switch color[e.To] {
			case white:
				if visit(e.To) {
					return true
				}
			case gray:
				cyclic = e.To
				return true
			}
		}
		color[n] = black
		return false
	}

	for _, n := range g.nodes {
		if color[n] == white {
			if visit(n) {
				return cyclic
			}
		}
	}
	return nil
}

// topoOrder returns nodes in a valid topological order across all edge
// kinds using Kahn's algorithm generalized to parallel edges. It returns
// ok=false if the graph contains a cycle.
func (g *dgraph) topoOrder() (order []*Node, ok bool) {
	inDegree := make(map[*Node]int, len(g.nodes))
	for _, n := range g.nodes {
		inDegree[n] = len(g.inEdges[n])
	}
	var ready []*Node
	for _, n := range g.nodes {
		if inDegree[n] == 0 {
			ready = append(ready, n)
		}
	}
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, e := range g.outEdges[n] {
			inDegree[e.To]--
			if inDegree[e.To] == 0 {
				ready = append(ready, e.To)
			}
		}
	}
	return order, len(order) == len(g.nodes)
}
