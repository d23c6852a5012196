package engine

import (
	"errors"
	"fmt"
)

// ErrEngineNotFound is returned when the engine binary cannot be located or
// started.
var ErrEngineNotFound = errors.New("engine binary not found")

// ErrInvalidName is returned for scenario names that are not safe to use as
// file names inside the workspace.
var ErrInvalidName = errors.New("invalid scenario name")

// ExitStatusError reports a non-zero engine exit under ExitStrict.
type ExitStatusError struct {
	// Name is the scenario name.
	Name string

	// Code is the process exit code.
	Code int

	// OutputPath is the captured output, useful for diagnostics.
	OutputPath string
}

// Error implements the error interface.
func (e *ExitStatusError) Error() string {
	return fmt.Sprintf("engine exited with status %d for %q (output: %s)", e.Code, e.Name, e.OutputPath)
}

// ExitCode returns the exit code carried by err if it is, or wraps, an
// *ExitStatusError.
func ExitCode(err error) (int, bool) {
	var ee *ExitStatusError
	if errors.As(err, &ee) {
		return ee.Code, true
	}
	return 0, false
}
