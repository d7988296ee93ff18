package history

import (
	"fmt"

	"github.com/dshills/ydoc/internal/engine"
)

// invert applies the inverse of s inside tx: structs it inserted are
// deleted and structs it deleted are restored. It reports whether the
// document changed.
//
// Restoring runs before deleting, and deletions run in reverse discovery
// order so nested items go before their parents.
func (s *StackItem) invert(tx *engine.Transaction, um *UndoManager) (bool, error) {
	store := tx.Doc().Store()
	toDelete := engine.NewDeleteQueue()

	err := engine.IterateDeletedStructs(tx, s.insertions, func(st engine.Struct) error {
		item, ok := st.(*engine.Item)
		if !ok {
			return nil
		}
		if _, redone := item.Redone(); redone {
			target, diff := engine.FollowRedone(store, item.ID())
			next, ok := target.(*engine.Item)
			if !ok {
				return nil
			}
			if diff > 0 {
				id := next.ID()
				next = store.CleanStart(tx, engine.ID{Client: id.Client, Clock: id.Clock + diff})
			}
			item = next
		}
		if item != nil && !item.Deleted() && inScope(um.scope, item) {
			toDelete.Push(item)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("collect insertions: %w", err)
	}

	var toRedo []*engine.Item
	redoSet := make(map[*engine.Item]struct{})
	err = engine.IterateDeletedStructs(tx, s.deletions, func(st engine.Struct) error {
		item, ok := st.(*engine.Item)
		if !ok || !inScope(um.scope, item) {
			return nil
		}
		// Created and deleted in the same unit: nothing to bring back.
		if id := item.ID(); s.insertions.Contains(id.Client, id.Clock) {
			return nil
		}
		if _, dup := redoSet[item]; !dup {
			redoSet[item] = struct{}{}
			toRedo = append(toRedo, item)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("collect deletions: %w", err)
	}

	performed := false
	for _, item := range toRedo {
		if engine.Redo(tx, item, redoSet, toDelete, um.ignoreRemoteMapChanges) != nil {
			performed = true
		}
	}

	items := toDelete.Items()
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		allow, err := um.deleteFilter(item)
		if err != nil {
			return false, fmt.Errorf("delete filter on %s: %w", item.ID(), err)
		}
		if allow {
			item.Delete(tx)
			performed = true
		}
	}

	for _, t := range tx.ChangedTypes() {
		if tx.SequenceChanged(t) {
			t.ClearSearchMarkers()
		}
	}
	return performed, nil
}
