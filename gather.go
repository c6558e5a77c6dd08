package uberjob

import "reflect"

// Set is the structural-container type standing in for Python's set,
// which Go has no built-in equivalent of. Order is not significant;
// NewSet deduplicates comparable elements on construction.
type Set struct {
	items []any
}

// NewSet builds a Set from items, dropping later duplicates of earlier
// comparable elements. Incomparable elements (e.g. maps, slices) are
// always kept.
func NewSet(items ...any) Set {
	out := make([]any, 0, len(items))
	for _, it := range items {
		if !setContains(out, it) {
			out = append(out, it)
		}
	}
	return Set{items: out}
}

func setContains(items []any, v any) (found bool) {
	defer func() {
		if recover() != nil {
			found = false
		}
	}()
	for _, it := range items {
		if it == v {
			return true
		}
	}
	return false
}

// Items returns the Set's elements in construction order.
func (s Set) Items() []any { return append([]any(nil), s.items...) }

// Len returns the number of elements in the Set.
func (s Set) Len() int { return len(s.items) }

// container shapes recognized by gather, per the "structural-container"
// interface design note: enumerate children, provide a reconstructor.
type containerShape int

const (
	shapeNone containerShape = iota
	shapeSequence
	shapeTuple
	shapeSet
	shapeMapping
)

// decomposeContainer inspects v and, if it is one of the four
// recognized shapes, returns its children in a flat order (mapping
// children alternate key, value) along with a reconstructor that
// rebuilds the original container type from resolved child values in
// the same order.
func decomposeContainer(v any) (shape containerShape, children []any, rebuild func([]any) any, ok bool) {
	if s, isSet := v.(Set); isSet {
		items := s.Items()
		return shapeSet, items, func(resolved []any) any {
			return NewSet(resolved...)
		}, true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		// A []byte is treated as an opaque literal, matching how
		// Python's bytes type is not one of the four recognized
		// container shapes.
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return shapeNone, nil, nil, false
		}
		n := rv.Len()
		items := make([]any, n)
		for i := 0; i < n; i++ {
			items[i] = rv.Index(i).Interface()
		}
		elemType := rv.Type().Elem()
		return shapeSequence, items, func(resolved []any) any {
			out := reflect.MakeSlice(reflect.SliceOf(anyOrElemType(elemType, resolved)), len(resolved), len(resolved))
			for i, r := range resolved {
				setReflectElem(out.Index(i), r)
			}
			return out.Interface()
		}, true

	case reflect.Array:
		n := rv.Len()
		items := make([]any, n)
		for i := 0; i < n; i++ {
			items[i] = rv.Index(i).Interface()
		}
		arrType := rv.Type()
		return shapeTuple, items, func(resolved []any) any {
			out := reflect.New(arrType).Elem()
			for i, r := range resolved {
				setReflectElem(out.Index(i), r)
			}
			return out.Interface()
		}, true

	case reflect.Map:
		keys := rv.MapKeys()
		items := make([]any, 0, len(keys)*2)
		for _, k := range keys {
			items = append(items, k.Interface(), rv.MapIndex(k).Interface())
		}
		keyType := rv.Type().Key()
		valType := rv.Type().Elem()
		return shapeMapping, items, func(resolved []any) any {
			out := reflect.MakeMapWithSize(reflect.MapOf(anyOrElemType(keyType, evenIndices(resolved)), anyOrElemType(valType, oddIndices(resolved))), len(resolved)/2)
			for i := 0; i+1 < len(resolved); i += 2 {
				kv := reflect.New(out.Type().Key()).Elem()
				setReflectElem(kv, resolved[i])
				vv := reflect.New(out.Type().Elem()).Elem()
				setReflectElem(vv, resolved[i+1])
				out.SetMapIndex(kv, vv)
			}
			return out.Interface()
		}, true

	default:
		return shapeNone, nil, nil, false
	}
}

func evenIndices(v []any) []any {
	out := make([]any, 0, len(v)/2)
	for i := 0; i < len(v); i += 2 {
		out = append(out, v[i])
	}
	return out
}

func oddIndices(v []any) []any {
	out := make([]any, 0, len(v)/2)
	for i := 1; i < len(v); i += 2 {
		out = append(out, v[i])
	}
	return out
}

// anyOrElemType falls back to interface{} when a resolved element no
// longer matches the original static element type (which happens once a
// symbolic Node has been resolved to a runtime value of unknown type).
func anyOrElemType(orig reflect.Type, resolved []any) reflect.Type {
	for _, r := range resolved {
		if r == nil {
			continue
		}
		if reflect.TypeOf(r) != orig {
			return reflect.TypeOf((*any)(nil)).Elem()
		}
	}
	return orig
}

func setReflectElem(dst reflect.Value, v any) {
	if v == nil {
		return
	}
	rv := reflect.ValueOf(v)
	if dst.Type() == rv.Type() {
		dst.Set(rv)
		return
	}
	if dst.Kind() == reflect.Interface {
		dst.Set(rv)
		return
	}
	if rv.Type().ConvertibleTo(dst.Type()) {
		dst.Set(rv.Convert(dst.Type()))
	}
}

// containsNode reports whether v is itself a *Node, or is one of the
// recognized container shapes with a *Node reachable anywhere inside it.
// Structures with no embedded nodes are gathered as a single literal
// rather than exploded into a chain of reconstructor Calls.
func containsNode(v any) bool {
	if _, ok := v.(*Node); ok {
		return true
	}
	_, children, _, ok := decomposeContainer(v)
	if !ok {
		return false
	}
	for _, c := range children {
		if containsNode(c) {
			return true
		}
	}
	return false
}

func gatherReconstructorName(shape containerShape) string {
	switch shape {
	case shapeSequence:
		return "uberjob.gather_sequence"
	case shapeTuple:
		return "uberjob.gather_tuple"
	case shapeSet:
		return "uberjob.gather_set"
	case shapeMapping:
		return "uberjob.gather_mapping"
	default:
		return "uberjob.gather"
	}
}
