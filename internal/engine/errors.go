package engine

import "errors"

// Errors returned by engine operations.
var (
	// ErrIndexOutOfRange indicates an index past the end of a sequence.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrNotIntegrated indicates a type that is not attached to a document.
	ErrNotIntegrated = errors.New("type is not part of a document")

	// ErrForeignTransaction indicates a transaction from another document.
	ErrForeignTransaction = errors.New("transaction belongs to another document")

	// ErrTypeAttached indicates a nested type that is already in a document.
	ErrTypeAttached = errors.New("type is already attached to a document")

	// ErrEmptyKey indicates a map operation with an empty key.
	ErrEmptyKey = errors.New("map key must not be empty")

	// ErrKindMismatch indicates a root name already used by another kind.
	ErrKindMismatch = errors.New("root type defined with a different kind")

	// ErrMissingStruct indicates a range referencing clocks the store lacks.
	ErrMissingStruct = errors.New("range references unknown structs")

	// ErrMissingDependencies indicates an update that cannot be integrated
	// because structs it depends on are unknown.
	ErrMissingDependencies = errors.New("update has missing dependencies")
)
