package tracking

import (
	"fmt"
	"strings"
	"time"

	"github.com/dshills/ydoc/internal/engine"
	"github.com/dshills/ydoc/internal/engine/deleteset"
)

// RevisionID numbers committed transactions in the order the tracker saw
// them. The first recorded transaction is revision 1.
type RevisionID uint64

// ChangeType categorizes a committed transaction.
type ChangeType uint8

const (
	// ChangeInsert indicates structs were only created.
	ChangeInsert ChangeType = iota

	// ChangeDelete indicates structs were only deleted.
	ChangeDelete

	// ChangeReplace indicates structs were both created and deleted.
	ChangeReplace
)

// String returns a human-readable representation of the change type.
func (ct ChangeType) String() string {
	switch ct {
	case ChangeInsert:
		return "insert"
	case ChangeDelete:
		return "delete"
	case ChangeReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Change is the record of one committed transaction.
type Change struct {
	// Revision is the tracker revision assigned to the transaction.
	Revision RevisionID

	// Type summarizes what the transaction did.
	Type ChangeType

	// Origin and Tag identify who made the change.
	Origin any
	Tag    string

	// Local is false for transactions that applied remote updates.
	Local bool

	// Insertions covers the clocks allocated by the transaction.
	Insertions *deleteset.DeleteSet

	// Deletions covers the structs the transaction deleted.
	Deletions *deleteset.DeleteSet

	// Roots lists the names of the root types that changed.
	Roots []string

	// Timestamp is when the transaction was recorded.
	Timestamp time.Time
}

// FromTransaction builds a Change from a committed transaction.
func FromTransaction(tx *engine.Transaction, rev RevisionID, now time.Time) Change {
	c := Change{
		Revision:   rev,
		Origin:     tx.Origin(),
		Tag:        tx.OriginTag(),
		Local:      tx.Local(),
		Insertions: InsertionsOf(tx),
		Deletions:  tx.Deletions().Clone(),
		Timestamp:  now,
	}
	for _, t := range tx.ChangedParentTypes() {
		if t.Item() == nil {
			c.Roots = append(c.Roots, t.Name())
		}
	}
	switch {
	case c.Deletions.IsEmpty():
		c.Type = ChangeInsert
	case c.Insertions.IsEmpty():
		c.Type = ChangeDelete
	default:
		c.Type = ChangeReplace
	}
	return c
}

// InsertionsOf returns the clock ranges a transaction allocated:
// [before, after) for every client whose clock advanced.
func InsertionsOf(tx *engine.Transaction) *deleteset.DeleteSet {
	ds := deleteset.New()
	before := tx.BeforeState()
	for client, after := range tx.AfterState() {
		if start := before.Get(client); after > start {
			ds.Add(client, start, after-start)
		}
	}
	ds.SortAndMerge()
	return ds
}

// String returns a human-readable representation of the change.
func (c Change) String() string {
	return fmt.Sprintf("r%d %s +%d -%d %v", c.Revision, c.Type, c.Insertions.Size(), c.Deletions.Size(), c.Roots)
}

// IsInsert returns true if this is a pure insertion.
func (c Change) IsInsert() bool {
	return c.Type == ChangeInsert
}

// IsDelete returns true if this is a pure deletion.
func (c Change) IsDelete() bool {
	return c.Type == ChangeDelete
}

// IsReplace returns true if this is a replacement.
func (c Change) IsReplace() bool {
	return c.Type == ChangeReplace
}

// ChangeSet represents a collection of consecutive changes.
type ChangeSet struct {
	// Changes in commit order.
	Changes []Change

	// StartRevision is the revision before any changes.
	StartRevision RevisionID

	// EndRevision is the revision after all changes.
	EndRevision RevisionID
}

// NewChangeSet creates an empty change set starting at the given revision.
func NewChangeSet(startRevision RevisionID) *ChangeSet {
	return &ChangeSet{
		StartRevision: startRevision,
		EndRevision:   startRevision,
	}
}

// Add adds a change to the set.
func (cs *ChangeSet) Add(c Change) {
	cs.Changes = append(cs.Changes, c)
	cs.EndRevision = c.Revision
}

// Len returns the number of changes.
func (cs *ChangeSet) Len() int {
	return len(cs.Changes)
}

// IsEmpty returns true if there are no changes.
func (cs *ChangeSet) IsEmpty() bool {
	return len(cs.Changes) == 0
}

// Insertions returns the union of every change's insertions.
func (cs *ChangeSet) Insertions() *deleteset.DeleteSet {
	sets := make([]*deleteset.DeleteSet, len(cs.Changes))
	for i, c := range cs.Changes {
		sets[i] = c.Insertions
	}
	return deleteset.Merge(sets...)
}

// Deletions returns the union of every change's deletions.
func (cs *ChangeSet) Deletions() *deleteset.DeleteSet {
	sets := make([]*deleteset.DeleteSet, len(cs.Changes))
	for i, c := range cs.Changes {
		sets[i] = c.Deletions
	}
	return deleteset.Merge(sets...)
}

// Summary returns a human-readable summary of the changes.
func (cs *ChangeSet) Summary() string {
	if cs.IsEmpty() {
		return "no changes"
	}

	var inserts, deletes, replaces, remote int
	for _, c := range cs.Changes {
		switch c.Type {
		case ChangeInsert:
			inserts++
		case ChangeDelete:
			deletes++
		case ChangeReplace:
			replaces++
		}
		if !c.Local {
			remote++
		}
	}

	var parts []string
	if inserts > 0 {
		parts = append(parts, fmt.Sprintf("%d inserts (+%d)", inserts, cs.Insertions().Size()))
	}
	if deletes > 0 {
		parts = append(parts, fmt.Sprintf("%d deletes (-%d)", deletes, cs.Deletions().Size()))
	}
	if replaces > 0 {
		parts = append(parts, fmt.Sprintf("%d replaces", replaces))
	}
	if remote > 0 {
		parts = append(parts, fmt.Sprintf("%d remote", remote))
	}

	return strings.Join(parts, ", ")
}
