package uberjob

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// renderConfig collects Render's optional knobs.
type renderConfig struct {
	registry *Registry
	output   *Node
	level    *int
}

// RenderOption configures a call to Render.
type RenderOption func(*renderConfig)

// WithRenderRegistry applies the transformer before rendering: Render
// builds the physical plan via BuildPhysicalPlan and renders it instead
// of the logical plan, so the write/read pairs and dependent-source
// barriers the registry injects are visible alongside the stored/sourced
// labels on the nodes they replace.
func WithRenderRegistry(registry *Registry) RenderOption {
	return func(c *renderConfig) { c.registry = registry }
}

// WithRenderOutput restricts the rendered graph to the nodes backward
// reachable from output, mirroring the (plan, node) pairing accepted by
// Run.
func WithRenderOutput(output *Node) RenderOption {
	return func(c *renderConfig) { c.output = output }
}

// WithRenderLevel groups nodes by their scope tags truncated to level
// entries, collapsing each group into a single cluster node labeled with
// the scope path and member count. Without it, every node is rendered
// individually.
func WithRenderLevel(level int) RenderOption {
	return func(c *renderConfig) { c.level = &level }
}

// Render produces a Graphviz DOT description of plan's symbolic call
// graph: Literal nodes are teal boxes, Call nodes are orange boxes
// labeled with the called function's name, and nodes present in a
// supplied registry are highlighted purple. Dependency edges render
// dashed; PositionalArg and KeywordArg edges are labeled with their
// index or name. When WithRenderRegistry is given, Render first runs the
// physical-plan transformer and renders the result, so stored nodes
// appear as their write/read pair and dependent sources appear with
// their gating barrier; without it, Render draws the logical plan as
// written. This is the module's stand-in for the reference
// implementation's nxv-based renderer: rather than shelling out to
// Graphviz, it emits the DOT source directly, which callers can pipe
// through `dot` themselves.
func Render(plan *Plan, opts ...RenderOption) (string, error) {
	if plan == nil {
		return "", &ConstructionError{Op: "render", Err: fmt.Errorf("plan must not be nil")}
	}
	cfg := &renderConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.output != nil && cfg.output.plan != plan {
		return "", &ConstructionError{Op: "render", Err: fmt.Errorf("output node belongs to a different plan")}
	}

	var graph *dgraph
	var logicalOf func(*Node) *Node
	output := cfg.output

	if cfg.registry != nil {
		pp, err := BuildPhysicalPlan(plan, cfg.registry, cfg.output)
		if err != nil {
			return "", &ConstructionError{Op: "render", Err: err}
		}
		graph = pp.graph
		logicalOf = func(n *Node) *Node { return pp.logicalOf[n] }
		output = pp.output
	} else {
		graph = plan.graph
		logicalOf = func(n *Node) *Node { return n }
	}

	nodes := graph.nodes
	keep := map[*Node]bool{}
	if output != nil {
		keep = graph.reachableBackward(output)
	} else {
		for _, n := range nodes {
			keep[n] = true
		}
	}

	ids := make(map[*Node]string, len(nodes))
	i := 0
	for _, n := range nodes {
		if !keep[n] {
			continue
		}
		ids[n] = "n" + strconv.Itoa(i)
		i++
	}

	var b strings.Builder
	b.WriteString("digraph uberjob {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box style=filled fontcolor=white fontname=Courier];\n")
	b.WriteString("  edge [arrowhead=open];\n")

	if cfg.level != nil {
		renderGrouped(&b, graph, logicalOf, ids, keep, cfg)
	} else {
		renderFlat(&b, graph, logicalOf, ids, keep, cfg)
	}

	b.WriteString("}\n")
	return b.String(), nil
}

// nodeLabel derives a node's DOT label from n itself (its kind, value, or
// called Fn's name), adding the stored/sourced relationship looked up
// against logical -- the node's logical-plan counterpart when n comes
// from a physical plan, or n itself when rendering the logical plan
// directly. logical is nil for nodes synthesized by the transformer
// (write/read/barrier nodes), which therefore never pick up a
// relationship label.
func nodeLabel(n, logical *Node, registry *Registry) string {
	var base string
	switch n.kind {
	case NodeLiteral:
		base = compactRepr(n.value)
	case NodeCall:
		base = n.fn.Name
	}
	if registry != nil && logical != nil && registry.Contains(logical) {
		relation := "stored"
		if registry.IsSource(logical) {
			relation = "sourced"
		}
		return base + "\n" + relation
	}
	return base
}

func nodeFillColor(n, logical *Node, registry *Registry) string {
	if registry != nil && logical != nil && registry.Contains(logical) {
		return "\"#bb2fed\""
	}
	switch n.kind {
	case NodeLiteral:
		return "\"#009aa6\""
	default:
		return "\"#e37222\""
	}
}

func compactRepr(v any) string {
	s := fmt.Sprintf("%v", v)
	const max = 40
	if len(s) > max {
		s = s[:max-1] + "…"
	}
	return s
}

func edgeAttrs(e *Edge) string {
	switch e.Kind {
	case EdgeDependency:
		return "style=dashed"
	case EdgePositional:
		return fmt.Sprintf("label=%q", strconv.Itoa(e.Index))
	case EdgeKeyword:
		return fmt.Sprintf("label=%q", e.Name)
	default:
		return ""
	}
}

func renderFlat(b *strings.Builder, graph *dgraph, logicalOf func(*Node) *Node, ids map[*Node]string, keep map[*Node]bool, cfg *renderConfig) {
	for _, n := range graph.nodes {
		if !keep[n] {
			continue
		}
		fmt.Fprintf(b, "  %s [label=%q fillcolor=%s];\n", ids[n], nodeLabel(n, logicalOf(n), cfg.registry), nodeFillColor(n, logicalOf(n), cfg.registry))
	}
	for _, n := range graph.nodes {
		if !keep[n] {
			continue
		}
		for _, e := range graph.outgoing(n) {
			if !keep[e.To] {
				continue
			}
			fmt.Fprintf(b, "  %s -> %s [%s];\n", ids[e.From], ids[e.To], edgeAttrs(e))
		}
	}
}

// renderGrouped implements the reference renderer's level-truncated
// scope grouping: every node sharing a scope prefix of length level
// collapses into one cluster node, with edges crossing the group
// boundary redirected to the cluster and internal edges dropped.
func renderGrouped(b *strings.Builder, graph *dgraph, logicalOf func(*Node) *Node, ids map[*Node]string, keep map[*Node]bool, cfg *renderConfig) {
	level := *cfg.level
	type group struct {
		scope   []string
		members map[*Node]bool
	}
	groupOf := make(map[*Node]string)
	groups := make(map[string]*group)
	var order []string

	for _, n := range graph.nodes {
		if !keep[n] {
			continue
		}
		if len(n.scope) == 0 {
			continue
		}
		l := level
		if l > len(n.scope) {
			l = len(n.scope)
		}
		key := strings.Join(n.scope[:l], "\x1f")
		g, ok := groups[key]
		if !ok {
			g = &group{scope: n.scope[:l], members: make(map[*Node]bool)}
			groups[key] = g
			order = append(order, key)
		}
		g.members[n] = true
		groupOf[n] = key
	}
	sort.Strings(order)

	groupID := make(map[string]string, len(order))
	for i, key := range order {
		groupID[key] = "cluster_scope_" + strconv.Itoa(i)
	}

	for _, n := range graph.nodes {
		if !keep[n] || groupOf[n] != "" {
			continue
		}
		fmt.Fprintf(b, "  %s [label=%q fillcolor=%s];\n", ids[n], nodeLabel(n, logicalOf(n), cfg.registry), nodeFillColor(n, logicalOf(n), cfg.registry))
	}
	for _, key := range order {
		g := groups[key]
		fmt.Fprintf(b, "  %s [label=%q fillcolor=\"#666666\"];\n", groupID[key], fmt.Sprintf("%s\n%d nodes", strings.Join(g.scope, "/"), len(g.members)))
	}

	seen := make(map[string]bool)
	emit := func(fromID, toID, attrs string) {
		key := fromID + "\x00" + toID + "\x00" + attrs
		if seen[key] {
			return
		}
		seen[key] = true
		fmt.Fprintf(b, "  %s -> %s [%s];\n", fromID, toID, attrs)
	}

	for _, n := range graph.nodes {
		if !keep[n] {
			continue
		}
		fromGroup, fromInGroup := groupOf[n]
		fromID := ids[n]
		if fromInGroup {
			fromID = groupID[fromGroup]
		}
		for _, e := range graph.outgoing(n) {
			if !keep[e.To] {
				continue
			}
			toGroup, toInGroup := groupOf[e.To]
			toID := ids[e.To]
			if toInGroup {
				toID = groupID[toGroup]
			}
			if fromInGroup && toInGroup && fromGroup == toGroup {
				continue
			}
			emit(fromID, toID, edgeAttrs(e))
		}
	}
}
