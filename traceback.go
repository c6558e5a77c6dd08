package uberjob

import (
	"fmt"
	"runtime"
	"strings"
)

// DefaultTracebackDepth is the default bound on the number of
// construction-site stack frames captured per node.
const DefaultTracebackDepth = 16

// StackFrame is one frame of a symbolic traceback: the construction-site
// call stack captured when a node was added to a Plan, distinct from any
// runtime traceback of a failing call.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// captureStackFrames walks the caller's stack starting `skip` frames
// above this function, up to maxDepth frames, mirroring the bounded
// construction-site stack capture every plan-mutating operation
// performs.
func captureStackFrames(skip, maxDepth int) []StackFrame {
	if maxDepth <= 0 {
		maxDepth = DefaultTracebackDepth
	}
	pc := make([]uintptr, maxDepth)
	// +2 skips runtime.Callers and this function itself.
	n := runtime.Callers(skip+2, pc)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pc[:n])
	out := make([]StackFrame, 0, n)
	for {
		f, more := frames.Next()
		out = append(out, StackFrame{Function: f.Function, File: f.File, Line: f.Line})
		if !more {
			break
		}
	}
	return out
}

// renderSymbolicTraceback formats frames the way a CallError attaches
// them to a failing node's diagnostics: most recent construction-site
// call last.
func renderSymbolicTraceback(frames []StackFrame) string {
	if len(frames) == 0 {
		return "Symbolic traceback unavailable"
	}
	var b strings.Builder
	b.WriteString("Symbolic traceback (most recent call last):\n")
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		fmt.Fprintf(&b, "  File %q, line %d, in %s\n", f.File, f.Line, f.Function)
	}
	return b.String()
}
