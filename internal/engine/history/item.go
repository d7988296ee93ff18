package history

import (
	"fmt"
	"time"

	"github.com/dshills/ydoc/internal/engine"
	"github.com/dshills/ydoc/internal/engine/deleteset"
)

// StackItem is one undoable unit: the structs deleted and the clocks
// inserted while it was being captured.
//
// Items reference structs by id only, so a StackItem stays valid while the
// document keeps changing around it.
type StackItem struct {
	deletions  *deleteset.DeleteSet
	insertions *deleteset.DeleteSet

	// held covers the deleted structs this item protects from garbage
	// collection. destroy releases exactly these.
	held *deleteset.DeleteSet

	// Meta holds host state such as cursor positions. The manager never
	// reads it.
	Meta map[string]any

	created time.Time
}

func newStackItem(deletions, insertions *deleteset.DeleteSet, now time.Time) *StackItem {
	return &StackItem{
		deletions:  deletions.Clone(),
		insertions: insertions.Clone(),
		held:       deleteset.New(),
		Meta:       make(map[string]any),
		created:    now,
	}
}

// Deletions returns the structs deleted during capture. The set must not
// be modified.
func (s *StackItem) Deletions() *deleteset.DeleteSet { return s.deletions }

// Insertions returns the clock ranges created during capture. The set must
// not be modified.
func (s *StackItem) Insertions() *deleteset.DeleteSet { return s.insertions }

// Created returns when the item was first captured.
func (s *StackItem) Created() time.Time { return s.created }

// SetMeta stores a metadata value.
func (s *StackItem) SetMeta(key string, value any) {
	s.Meta[key] = value
}

// GetMeta returns a metadata value.
func (s *StackItem) GetMeta(key string) (any, bool) {
	v, ok := s.Meta[key]
	return v, ok
}

// String returns a short description of the captured ranges.
func (s *StackItem) String() string {
	return fmt.Sprintf("insertions=%s deletions=%s", s.insertions, s.deletions)
}

// merge extends the item with the changes of another transaction.
func (s *StackItem) merge(deletions, insertions *deleteset.DeleteSet) {
	s.deletions = deleteset.Merge(s.deletions, deletions)
	s.insertions = deleteset.Merge(s.insertions, insertions)
}

// hold records structs protected on behalf of the item.
func (s *StackItem) hold(held *deleteset.DeleteSet) {
	s.held = deleteset.Merge(s.held, held)
}

// destroy releases the protection the item took when it was captured.
func (s *StackItem) destroy(tx *engine.Transaction) error {
	return engine.IterateDeletedStructs(tx, s.held, func(st engine.Struct) error {
		if item, ok := st.(*engine.Item); ok {
			engine.SetProtected(item, false)
		}
		return nil
	})
}

func inScope(scope []*engine.Type, item *engine.Item) bool {
	for _, root := range scope {
		if engine.IsParentOf(root, item) {
			return true
		}
	}
	return false
}
