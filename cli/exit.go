package cli

import "fmt"

// Exit codes for uberjobctl.
const (
	exitSuccess     = 0
	exitRuntime     = 1
	exitConstruct   = 2
	exitBadArgument = 3
)

// ExitError is an error that carries a specific process exit code.
// Cobra's RunE returns this to signal the desired exit code to main. This
// carries over unchanged from the teacher CLI's own exit-code plumbing
// (see DESIGN.md): a generic cobra exit-code wrapper has no uberjob
// domain logic to adapt.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// exitError creates a new ExitError with the given code and formatted message.
func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}
