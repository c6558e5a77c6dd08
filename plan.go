package uberjob

import "fmt"

// Plan owns a multidigraph of Literal and Call nodes built up by a single
// constructing goroutine. Per the lifecycle contract, a Plan must not be
// mutated concurrently with Run or Render, nor mutated from more than one
// goroutine during construction.
type Plan struct {
	graph          *dgraph
	scopeStack     []string
	tracebackDepth int
}

// NewPlan creates an empty Plan.
func NewPlan() *Plan {
	return &Plan{graph: newDgraph(), tracebackDepth: DefaultTracebackDepth}
}

// SetTracebackDepth overrides the default bound on captured
// construction-site stack frames (DefaultTracebackDepth).
func (p *Plan) SetTracebackDepth(n int) {
	p.tracebackDepth = n
}

func (p *Plan) currentScope() []string {
	return append([]string(nil), p.scopeStack...)
}

// Lit creates a Literal node carrying value, tagged with the plan's
// current scope and a bounded symbolic traceback.
func (p *Plan) Lit(value any) *Node {
	frames := captureStackFrames(1, p.tracebackDepth)
	return p.litWithFrames(value, frames)
}

func (p *Plan) litWithFrames(value any, frames []StackFrame) *Node {
	n := &Node{kind: NodeLiteral, value: value, scope: p.currentScope(), frames: frames, plan: p}
	p.graph.addNode(n)
	return n
}

// Call creates a Call node invoking fn. Each element of args is either a
// plain value, an existing *Node of this plan, a recognized structural
// container (gathered per Gather), or a KW(name, value) sentinel binding
// a keyword argument. Argument binding against fn's Signature is
// validated eagerly; a mismatch returns a *ConstructionError before any
// graph mutation.
func (p *Plan) Call(fn *Fn, args ...any) (*Node, error) {
	frames := captureStackFrames(1, p.tracebackDepth)
	return p.callNode(fn, frames, args...)
}

func (p *Plan) callNode(fn *Fn, frames []StackFrame, args ...any) (*Node, error) {
	if fn == nil {
		return nil, &ConstructionError{Op: "call", Err: fmt.Errorf("fn must not be nil")}
	}

	var positional []any
	kwargs := make(map[string]any)
	var kwOrder []string
	for _, a := range args {
		if kw, ok := a.(kwArg); ok {
			if _, exists := kwargs[kw.name]; exists {
				return nil, &ConstructionError{Op: "call", Err: fmt.Errorf("duplicate keyword argument %q", kw.name)}
			}
			kwargs[kw.name] = kw.value
			kwOrder = append(kwOrder, kw.name)
			continue
		}
		positional = append(positional, a)
	}

	keywordNames := make(map[string]bool, len(kwargs))
	for name := range kwargs {
		keywordNames[name] = true
	}
	if err := fn.bind(len(positional), keywordNames); err != nil {
		return nil, err
	}

	scope := append(p.currentScope(), fn.Name)
	call := &Node{
		kind:     NodeCall,
		fn:       fn,
		scope:    scope,
		frames:   frames,
		plan:     p,
		keywords: make(map[string]bool, len(kwargs)),
	}

	// Gather argument values before mutating the graph with the new
	// call node, so a gather failure leaves no partial call behind.
	posNodes := make([]*Node, len(positional))
	for i, a := range positional {
		argNode, err := p.gather(a, frames)
		if err != nil {
			return nil, err
		}
		posNodes[i] = argNode
	}
	kwNodes := make(map[string]*Node, len(kwOrder))
	for _, name := range kwOrder {
		argNode, err := p.gather(kwargs[name], frames)
		if err != nil {
			return nil, err
		}
		kwNodes[name] = argNode
	}

	p.graph.addNode(call)
	for i, argNode := range posNodes {
		p.graph.addEdge(&Edge{Kind: EdgePositional, From: argNode, To: call, Index: i})
	}
	call.numArgs = len(posNodes)
	for _, name := range kwOrder {
		p.graph.addEdge(&Edge{Kind: EdgeKeyword, From: kwNodes[name], To: call, Name: name})
		call.keywords[name] = true
	}
	return call, nil
}

// AddDependency adds a Dependency edge: source must complete before
// target runs, contributing no argument value. Both nodes must belong to
// this plan.
func (p *Plan) AddDependency(source, target *Node) error {
	if source == nil || target == nil {
		return &ConstructionError{Op: "add_dependency", Err: fmt.Errorf("source and target must not be nil")}
	}
	if source.plan != p || target.plan != p {
		return &ConstructionError{Op: "add_dependency", Err: fmt.Errorf("source and target must belong to the same plan")}
	}
	p.graph.addEdge(&Edge{Kind: EdgeDependency, From: source, To: target})
	return nil
}

// Gather recursively converts a structured value containing symbolic
// nodes into a single symbolic node representing that structure. If v is
// already a Node of this plan it is returned unchanged; if v contains no
// embedded Node it is wrapped as a single Literal.
func (p *Plan) Gather(v any) (*Node, error) {
	frames := captureStackFrames(1, p.tracebackDepth)
	return p.gather(v, frames)
}

func (p *Plan) gather(v any, frames []StackFrame) (*Node, error) {
	if n, ok := v.(*Node); ok {
		if n.plan != p {
			return nil, &ConstructionError{Op: "gather", Err: fmt.Errorf("node belongs to a different plan")}
		}
		return n, nil
	}
	if !containsNode(v) {
		return p.litWithFrames(v, frames), nil
	}
	shape, children, rebuild, ok := decomposeContainer(v)
	if !ok {
		return p.litWithFrames(v, frames), nil
	}
	gathered := make([]any, len(children))
	for i, c := range children {
		gc, err := p.gather(c, frames)
		if err != nil {
			return nil, err
		}
		gathered[i] = gc
	}
	fn := reconstructorFn(shape, rebuild, len(children))
	return p.callNode(fn, frames, gathered...)
}

func reconstructorFn(shape containerShape, rebuild func([]any) any, arity int) *Fn {
	return NewFnWithSignature(gatherReconstructorName(shape), func(args []any, kwargs map[string]any) (any, error) {
		return rebuild(args), nil
	}, Signature{MinArgs: arity, MaxArgs: arity})
}

// Unpack gathers node as a sequence and returns length individual Call
// nodes, each indexing the sequence. The length is validated eagerly at
// evaluation time when the sequence's actual length is known.
func (p *Plan) Unpack(node *Node, length int) ([]*Node, error) {
	if length < 0 {
		return nil, &ConstructionError{Op: "unpack", Err: fmt.Errorf("length must be non-negative, got %d", length)}
	}
	frames := captureStackFrames(1, p.tracebackDepth)
	gathered, err := p.gather(node, frames)
	if err != nil {
		return nil, err
	}
	result := make([]*Node, length)
	for i := 0; i < length; i++ {
		index := i
		fn := NewFnWithSignature(
			fmt.Sprintf("uberjob.unpack[%d/%d]", index, length),
			func(args []any, kwargs map[string]any) (any, error) {
				return unpackIndex(args[0], index, length)
			},
			Signature{MinArgs: 1, MaxArgs: 1},
		)
		n, err := p.callNode(fn, frames, gathered)
		if err != nil {
			return nil, err
		}
		result[i] = n
	}
	return result, nil
}

// Scope pushes tag onto the plan's current scope stack and returns a
// closer that pops it. The Go idiom `defer plan.Scope("tag")()` replaces
// a Python context manager; the closer panics if scopes are exited out
// of stack order.
func (p *Plan) Scope(tag string) func() {
	p.scopeStack = append(p.scopeStack, tag)
	depth := len(p.scopeStack)
	return func() {
		if len(p.scopeStack) != depth {
			panic("uberjob: plan scopes must be entered and exited in stack order")
		}
		p.scopeStack = p.scopeStack[:depth-1]
	}
}
