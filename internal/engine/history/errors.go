package history

import "errors"

// Common errors for history operations.
var (
	// ErrConflictingOriginFilters is returned by NewUndoManager when both
	// tracked and ignored origins are configured.
	ErrConflictingOriginFilters = errors.New("tracked and ignored origins are mutually exclusive")

	// ErrDestroyed is returned by operations on a destroyed manager.
	ErrDestroyed = errors.New("undo manager destroyed")

	// ErrInTransaction is returned by Undo and Redo when called while a
	// transaction is running on the document.
	ErrInTransaction = errors.New("undo/redo inside a running transaction")

	// ErrBusy is returned by Undo and Redo when called from a handler
	// while another undo or redo is running.
	ErrBusy = errors.New("undo or redo already running")

	// ErrEmptyScope is returned by NewUndoManager without scope types.
	ErrEmptyScope = errors.New("undo manager scope is empty")
)
