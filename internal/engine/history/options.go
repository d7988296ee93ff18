package history

import (
	"time"

	"github.com/dshills/ydoc/internal/engine"
	"github.com/dshills/ydoc/internal/logging"
)

// DefaultCaptureTimeout is the default capture window.
const DefaultCaptureTimeout = 500 * time.Millisecond

// DeleteFilter decides whether an item may be deleted while inverting a
// stack item. Returning an error aborts the undo or redo.
type DeleteFilter func(item *engine.Item) (bool, error)

// Option configures an UndoManager.
type Option func(*UndoManager)

// WithCaptureTimeout sets the window during which consecutive changes are
// merged into one stack item. Zero disables merging.
func WithCaptureTimeout(d time.Duration) Option {
	return func(um *UndoManager) {
		if d >= 0 {
			um.captureTimeout = d
		}
	}
}

// WithDeleteFilter sets the filter consulted before each deletion
// performed by Undo or Redo.
func WithDeleteFilter(f DeleteFilter) Option {
	return func(um *UndoManager) {
		if f != nil {
			um.deleteFilter = f
		}
	}
}

// WithTrackedOrigins restricts capturing to transactions whose origin or
// origin tag is in set. The manager itself and the nil origin are always
// tracked once this option is used.
func WithTrackedOrigins(set OriginSet) Option {
	return func(um *UndoManager) {
		um.trackedSet = &set
	}
}

// WithIgnoredOrigins skips transactions whose origin or origin tag is in
// set. It cannot be combined with WithTrackedOrigins.
func WithIgnoredOrigins(set OriginSet) Option {
	return func(um *UndoManager) {
		um.ignoredSet = &set
	}
}

// WithCaptureTransaction sets a predicate that can veto capturing a
// committed transaction before any other filter runs.
func WithCaptureTransaction(fn func(*engine.Transaction) bool) Option {
	return func(um *UndoManager) {
		if fn != nil {
			um.captureTransaction = fn
		}
	}
}

// WithMaxEntries bounds the undo stack. The oldest items are dropped and
// release their protection. Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(um *UndoManager) {
		if n >= 0 {
			um.maxEntries = n
		}
	}
}

// WithIgnoreRemoteMapChanges restores map entries on undo even when a
// later value under the same key came from another change.
func WithIgnoreRemoteMapChanges() Option {
	return func(um *UndoManager) {
		um.ignoreRemoteMapChanges = true
	}
}

// WithLogger sets the logger for capture and stack decisions.
func WithLogger(l *logging.Logger) Option {
	return func(um *UndoManager) {
		if l != nil {
			um.logger = l
		}
	}
}

// WithClock sets the time source for the capture window.
func WithClock(now func() time.Time) Option {
	return func(um *UndoManager) {
		if now != nil {
			um.now = now
		}
	}
}
