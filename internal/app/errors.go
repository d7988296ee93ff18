package app

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	// ErrUnknownCommand indicates a script line names no known command.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrUsage indicates a command got the wrong arguments.
	ErrUsage = errors.New("usage")

	// ErrNoScope indicates undo or redo before any root was declared.
	ErrNoScope = errors.New("no roots declared")

	// ErrUnknownRoot indicates a command names an undeclared root.
	ErrUnknownRoot = errors.New("unknown root")

	// ErrShutdown indicates the application was already shut down.
	ErrShutdown = errors.New("application shut down")
)

// OperationError reports a failed script line.
type OperationError struct {
	Line    int    // 1-based script line
	Op      string // Command name
	Context string // Additional context
	Err     error  // Underlying error
}

// NewOperationError creates a new OperationError.
func NewOperationError(line int, op string, err error) *OperationError {
	return &OperationError{Line: line, Op: op, Err: err}
}

// WithContext adds context to the error.
// Safe to call on nil receiver - returns nil.
func (e *OperationError) WithContext(ctx string) *OperationError {
	if e == nil {
		return nil
	}
	e.Context = ctx
	return e
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("line %d: %s", e.Line, e.Op)
	if e.Context != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Context)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
