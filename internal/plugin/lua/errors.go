package lua

import "errors"

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when execution times out.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrNoFilterFunc is returned when a delete filter script does not
	// define a filter function.
	ErrNoFilterFunc = errors.New("script does not define function filter")
)
