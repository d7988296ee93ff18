package history

import (
	"fmt"
	"time"

	"github.com/dshills/ydoc/internal/engine"
	"github.com/dshills/ydoc/internal/logging"
)

// UndoManager records changes made to a set of types on one document and
// can undo and redo them.
//
// An UndoManager is not safe for concurrent use. Like the document it
// watches, it expects a single writer.
type UndoManager struct {
	doc   *engine.Doc
	scope []*engine.Type

	undoStack []*StackItem
	redoStack []*StackItem

	undoing bool
	redoing bool

	lastChange     time.Time
	captureTimeout time.Duration

	deleteFilter           DeleteFilter
	captureTransaction     func(*engine.Transaction) bool
	trackedSet, ignoredSet *OriginSet
	tracked, ignored       *originFilter
	ignoreRemoteMapChanges bool
	maxEntries             int

	added  registry
	popped registry

	logger    *logging.Logger
	now       func() time.Time
	detach    func()
	destroyed bool
}

// NewUndoManager creates a manager tracking changes to the given types.
// All types must belong to doc.
func NewUndoManager(doc *engine.Doc, scope []*engine.Type, opts ...Option) (*UndoManager, error) {
	if len(scope) == 0 {
		return nil, ErrEmptyScope
	}
	um := &UndoManager{
		doc:                doc,
		captureTimeout:     DefaultCaptureTimeout,
		deleteFilter:       func(*engine.Item) (bool, error) { return true, nil },
		captureTransaction: func(*engine.Transaction) bool { return true },
		logger:             logging.Nop(),
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(um)
	}

	if um.trackedSet != nil && um.ignoredSet != nil {
		return nil, ErrConflictingOriginFilters
	}
	if um.trackedSet != nil {
		um.tracked = newOriginFilter(*um.trackedSet)
		um.tracked.addValue(um)
		um.tracked.addValue(nil)
	}
	if um.ignoredSet != nil {
		um.ignored = newOriginFilter(*um.ignoredSet)
	}
	if err := um.AddToScope(scope...); err != nil {
		return nil, err
	}

	um.logger = um.logger.WithComponent("history")
	um.detach = doc.OnAfterTransaction(um.afterTransaction)
	return um, nil
}

// Doc returns the watched document.
func (um *UndoManager) Doc() *engine.Doc { return um.doc }

// Scope returns the tracked types.
func (um *UndoManager) Scope() []*engine.Type {
	return append([]*engine.Type(nil), um.scope...)
}

// AddToScope starts tracking more types.
func (um *UndoManager) AddToScope(types ...*engine.Type) error {
	if um.destroyed {
		return ErrDestroyed
	}
	for _, t := range types {
		if t == nil {
			return fmt.Errorf("%w: nil type", engine.ErrNotIntegrated)
		}
		if t.Doc() != um.doc {
			return fmt.Errorf("%w: type %q is not part of this document", engine.ErrNotIntegrated, t.Path())
		}
		if !um.tracksType(t) {
			um.scope = append(um.scope, t)
		}
	}
	return nil
}

func (um *UndoManager) tracksType(t *engine.Type) bool {
	for _, s := range um.scope {
		if s == t {
			return true
		}
	}
	return false
}

// AddTrackedOrigin adds an origin value to the tracked set. It has no
// effect unless the manager was created with WithTrackedOrigins.
func (um *UndoManager) AddTrackedOrigin(origin any) {
	if um.tracked != nil {
		um.tracked.addValue(origin)
	}
}

// RemoveTrackedOrigin removes an origin value from the tracked set.
func (um *UndoManager) RemoveTrackedOrigin(origin any) {
	if um.tracked != nil {
		um.tracked.removeValue(origin)
	}
}

// AddTrackedTag adds an origin tag to the tracked set. It has no effect
// unless the manager was created with WithTrackedOrigins.
func (um *UndoManager) AddTrackedTag(tag string) {
	if um.tracked != nil {
		um.tracked.tags[tag] = struct{}{}
	}
}

// RemoveTrackedTag removes an origin tag from the tracked set.
func (um *UndoManager) RemoveTrackedTag(tag string) {
	if um.tracked != nil {
		delete(um.tracked.tags, tag)
	}
}

// Undo reverts the most recent stack item that still changes the
// document. Items that no longer change anything are discarded on the
// way. It returns nil when nothing was undone.
func (um *UndoManager) Undo() (*StackItem, error) {
	if err := um.begin(); err != nil {
		return nil, err
	}
	um.undoing = true
	defer func() { um.undoing = false }()
	return um.popStackItem(&um.undoStack, DirectionUndo)
}

// Redo reapplies the most recently undone stack item. It returns nil when
// nothing was redone.
func (um *UndoManager) Redo() (*StackItem, error) {
	if err := um.begin(); err != nil {
		return nil, err
	}
	um.redoing = true
	defer func() { um.redoing = false }()
	return um.popStackItem(&um.redoStack, DirectionRedo)
}

func (um *UndoManager) begin() error {
	switch {
	case um.destroyed:
		return ErrDestroyed
	case um.undoing || um.redoing:
		return ErrBusy
	case um.doc.InTransaction():
		return ErrInTransaction
	}
	return nil
}

// popStackItem inverts items from the top of stack until one changes the
// document. Each attempt runs in its own transaction. A failed attempt
// leaves the item on the stack.
func (um *UndoManager) popStackItem(stack *[]*StackItem, direction Direction) (*StackItem, error) {
	for len(*stack) > 0 {
		item := (*stack)[len(*stack)-1]
		*stack = (*stack)[:len(*stack)-1]

		var tx *engine.Transaction
		performed, err := um.invertItem(stack, item, &tx)
		if err != nil {
			um.logger.Warn("%s failed: %v", direction, err)
			return nil, fmt.Errorf("%s: %w", direction, err)
		}
		if !performed {
			um.logger.Debug("discarded %s item without effect", direction)
			continue
		}

		um.logger.Debug("%s applied %s", direction, item)
		um.popped.emit(StackItemEvent{
			StackItem:          item,
			Origin:             um,
			Direction:          direction,
			ChangedParentTypes: tx.ChangedParentTypes(),
		})
		return item, nil
	}
	return nil, nil
}

func (um *UndoManager) invertItem(stack *[]*StackItem, item *StackItem, out **engine.Transaction) (performed bool, err error) {
	committed := false
	defer func() {
		if !committed {
			*stack = append(*stack, item)
		}
	}()

	err = um.doc.Transact(um, func(tx *engine.Transaction) error {
		*out = tx
		var err error
		if performed, err = item.invert(tx, um); err != nil {
			return err
		}
		return item.destroy(tx)
	})
	committed = err == nil
	return performed, err
}

// Clear removes every item from both stacks and releases the structs they
// kept from garbage collection.
func (um *UndoManager) Clear() error {
	return um.ClearStacks(true, true)
}

// ClearStacks clears the undo stack, the redo stack or both.
func (um *UndoManager) ClearStacks(undo, redo bool) error {
	if !undo && !redo {
		return nil
	}
	return um.doc.Transact(um, func(tx *engine.Transaction) error {
		if undo {
			um.dropStack(tx, &um.undoStack)
		}
		if redo {
			um.dropStack(tx, &um.redoStack)
		}
		return nil
	})
}

func (um *UndoManager) dropStack(tx *engine.Transaction, stack *[]*StackItem) {
	for _, item := range *stack {
		if err := item.destroy(tx); err != nil {
			um.logger.Warn("release stack item: %v", err)
		}
	}
	*stack = nil
}

// CanUndo returns true if the undo stack is not empty.
func (um *UndoManager) CanUndo() bool { return len(um.undoStack) > 0 }

// CanRedo returns true if the redo stack is not empty.
func (um *UndoManager) CanRedo() bool { return len(um.redoStack) > 0 }

// UndoLen returns the number of undo items.
func (um *UndoManager) UndoLen() int { return len(um.undoStack) }

// RedoLen returns the number of redo items.
func (um *UndoManager) RedoLen() int { return len(um.redoStack) }

// PeekUndo returns the next item Undo would try.
func (um *UndoManager) PeekUndo() (*StackItem, bool) {
	if len(um.undoStack) == 0 {
		return nil, false
	}
	return um.undoStack[len(um.undoStack)-1], true
}

// PeekRedo returns the next item Redo would try.
func (um *UndoManager) PeekRedo() (*StackItem, bool) {
	if len(um.redoStack) == 0 {
		return nil, false
	}
	return um.redoStack[len(um.redoStack)-1], true
}

// UndoStack returns the undo items, oldest first.
func (um *UndoManager) UndoStack() []*StackItem {
	return append([]*StackItem(nil), um.undoStack...)
}

// RedoStack returns the redo items, oldest first.
func (um *UndoManager) RedoStack() []*StackItem {
	return append([]*StackItem(nil), um.redoStack...)
}

// Undoing reports whether Undo is running.
func (um *UndoManager) Undoing() bool { return um.undoing }

// Redoing reports whether Redo is running.
func (um *UndoManager) Redoing() bool { return um.redoing }

// CaptureTimeout returns the capture window.
func (um *UndoManager) CaptureTimeout() time.Duration { return um.captureTimeout }

// Destroy stops tracking, clears both stacks and removes all handlers.
// Further calls to Undo, Redo or AddToScope fail with ErrDestroyed.
func (um *UndoManager) Destroy() error {
	if um.destroyed {
		return nil
	}
	err := um.Clear()
	um.destroyed = true
	if um.detach != nil {
		um.detach()
		um.detach = nil
	}
	um.added.reset()
	um.popped.reset()
	return err
}
