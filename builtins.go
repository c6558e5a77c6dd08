package uberjob

import (
	"fmt"
	"reflect"
)

// unpackIndex validates that seq is a sequence of exactly length
// elements and returns the element at index, mirroring the original
// unpack builtin's eager length check performed at evaluation time
// (arity is known only once the sequence value materializes).
func unpackIndex(seq any, index, length int) (any, error) {
	rv := reflect.ValueOf(seq)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("uberjob: unpack expected a sequence, got %T", seq)
	}
	if rv.Len() != length {
		return nil, fmt.Errorf("uberjob: unpack expected length %d, got %d", length, rv.Len())
	}
	return rv.Index(index).Interface(), nil
}

// sourcePlaceholderFn returns the sentinel Fn installed on a placeholder
// node created by Registry.Source. If the transformer never replaces it
// with the backing ValueStore's read (a bug, or a plan run without the
// registry that owns it), invoking it reports ErrNotTransformed.
func sourcePlaceholderFn() *Fn {
	return NewFnWithSignature("uberjob.source", func(args []any, kwargs map[string]any) (any, error) {
		return nil, ErrNotTransformed
	}, Signature{MinArgs: 0, MaxArgs: 0})
}
