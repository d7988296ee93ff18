package history

import (
	"time"

	"github.com/dshills/ydoc/internal/engine"
	"github.com/dshills/ydoc/internal/engine/deleteset"
	"github.com/dshills/ydoc/internal/engine/tracking"
)

// afterTransaction captures a committed transaction onto the undo stack,
// or onto the redo stack while Undo is running.
func (um *UndoManager) afterTransaction(tx *engine.Transaction) {
	if !um.shouldCapture(tx) {
		return
	}

	undoing, redoing := um.undoing, um.redoing
	direction := DirectionUndo
	stack := &um.undoStack
	if undoing {
		direction = DirectionRedo
		stack = &um.redoStack
		// The result of an undo never merges into an earlier redo item.
		um.StopCapturing()
	} else if !redoing {
		um.dropStack(tx, &um.redoStack)
	}

	held := deleteset.New()
	err := engine.IterateDeletedStructs(tx, tx.Deletions(), func(st engine.Struct) error {
		if item, ok := st.(*engine.Item); ok && inScope(um.scope, item) {
			engine.SetProtected(item, true)
			held.Add(item.ID().Client, item.ID().Clock, item.Len())
		}
		return nil
	})
	if err != nil {
		um.logger.Warn("protect deleted structs: %v", err)
	}
	held.SortAndMerge()

	insertions := tracking.InsertionsOf(tx)
	now := um.now()
	merged := false
	if !undoing && !redoing && len(*stack) > 0 && um.withinCaptureWindow(now) {
		(*stack)[len(*stack)-1].merge(tx.Deletions(), insertions)
		merged = true
	} else {
		*stack = append(*stack, newStackItem(tx.Deletions(), insertions, now))
	}
	(*stack)[len(*stack)-1].hold(held)
	if !undoing && !redoing {
		um.lastChange = now
	}

	if stack == &um.undoStack {
		um.enforceMaxEntries(tx)
	}

	top := (*stack)[len(*stack)-1]
	um.logger.Debug("captured %s onto %s stack (merged=%t, depth=%d)", top, direction, merged, len(*stack))
	um.added.emit(StackItemEvent{
		StackItem:          top,
		Origin:             tx.Origin(),
		Direction:          direction,
		ChangedParentTypes: tx.ChangedParentTypes(),
		Merged:             merged,
	})
}

// shouldCapture applies the transaction filters, scope first.
func (um *UndoManager) shouldCapture(tx *engine.Transaction) bool {
	if um.destroyed || !um.captureTransaction(tx) {
		return false
	}
	touched := false
	for _, t := range um.scope {
		if tx.HasChangedParent(t) {
			touched = true
			break
		}
	}
	if !touched {
		return false
	}
	if um.tracked != nil && !um.tracked.matches(tx) {
		um.logger.Debug("skipping untracked origin %v", tx.Origin())
		return false
	}
	if um.ignored != nil && um.ignored.matches(tx) {
		um.logger.Debug("skipping ignored origin %v", tx.Origin())
		return false
	}
	return true
}

func (um *UndoManager) withinCaptureWindow(now time.Time) bool {
	return !um.lastChange.IsZero() && now.Sub(um.lastChange) < um.captureTimeout
}

// StopCapturing makes the next captured transaction start a new stack
// item even if it arrives within the capture window.
func (um *UndoManager) StopCapturing() {
	um.lastChange = time.Time{}
}

// enforceMaxEntries drops the oldest undo items beyond the limit.
func (um *UndoManager) enforceMaxEntries(tx *engine.Transaction) {
	if um.maxEntries == 0 || len(um.undoStack) <= um.maxEntries {
		return
	}
	excess := len(um.undoStack) - um.maxEntries
	for _, item := range um.undoStack[:excess] {
		if err := item.destroy(tx); err != nil {
			um.logger.Warn("release evicted stack item: %v", err)
		}
	}
	um.undoStack = append([]*StackItem(nil), um.undoStack[excess:]...)
	um.logger.Debug("evicted %d undo items", excess)
}
