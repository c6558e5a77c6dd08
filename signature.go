package uberjob

import "fmt"

// FnBody is the dynamic call shape every plan Call ultimately invokes.
// Go has no runtime signature introspection equivalent to Python's
// inspect.signature, so callers register a structural signature
// description (Signature) alongside the callable itself, per the
// "structural signature description" design guidance: an implementation
// without runtime introspection must expose that shape at Call
// registration time.
type FnBody func(args []any, kwargs map[string]any) (any, error)

// Signature describes the arity and keyword shape a Fn accepts, used to
// validate argument binding eagerly at Plan.Call time rather than at
// invocation time.
type Signature struct {
	// MinArgs is the minimum number of positional arguments accepted.
	MinArgs int
	// MaxArgs is the maximum number of positional arguments accepted,
	// or -1 for unbounded (variadic).
	MaxArgs int
	// Keywords, if non-nil, is the exact set of keyword argument names
	// accepted. A nil map means any keyword name is accepted.
	Keywords map[string]bool
}

// Fn pairs a callable body with its structural signature and a display
// name used in scopes, tracebacks, and error messages.
type Fn struct {
	Name string
	Body FnBody
	Sig  Signature
}

// NewFn constructs a Fn with an unrestricted signature (any arity, any
// keywords). Use NewFnWithSignature to enable eager binding validation.
func NewFn(name string, body FnBody) *Fn {
	return &Fn{Name: name, Body: body, Sig: Signature{MinArgs: 0, MaxArgs: -1}}
}

// NewFnWithSignature constructs a Fn with an explicit structural
// signature, enabling Plan.Call to reject mismatched argument shapes
// synchronously.
func NewFnWithSignature(name string, body FnBody, sig Signature) *Fn {
	return &Fn{Name: name, Body: body, Sig: sig}
}

// bind validates that the number of positional arguments and the set of
// keyword names conform to fn's signature. It returns a
// *ConstructionError on mismatch.
func (fn *Fn) bind(numArgs int, keywords map[string]bool) error {
	sig := fn.Sig
	if numArgs < sig.MinArgs || (sig.MaxArgs >= 0 && numArgs > sig.MaxArgs) {
		return &ConstructionError{
			Op: "call",
			Err: fmt.Errorf(
				"%s accepts between %d and %s positional arguments, got %d",
				fn.Name, sig.MinArgs, maxArgsLabel(sig.MaxArgs), numArgs,
			),
		}
	}
	if sig.Keywords != nil {
		for name := range keywords {
			if !sig.Keywords[name] {
				return &ConstructionError{
					Op:  "call",
					Err: fmt.Errorf("%s does not accept keyword argument %q", fn.Name, name),
				}
			}
		}
	}
	return nil
}

func maxArgsLabel(maxArgs int) string {
	if maxArgs < 0 {
		return "unbounded"
	}
	return fmt.Sprintf("%d", maxArgs)
}

// kwArg is the sentinel produced by KW, used to pass keyword arguments
// through a variadic args ...any call to Plan.Call.
type kwArg struct {
	name  string
	value any
}

// KW wraps a value so that Plan.Call binds it as the keyword argument
// `name` rather than the next positional argument.
func KW(name string, value any) any {
	return kwArg{name: name, value: value}
}
