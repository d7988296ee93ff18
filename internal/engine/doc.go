// Package engine provides the replicated document model that the undo
// history operates on.
//
// A Doc stores every change as a struct identified by (client, clock).
// Items are linked into the list of their parent type; deleting an item
// leaves a tombstone so concurrent edits from other replicas still find
// their neighbours. Tombstones nobody protects are garbage collected when
// the transaction that produced them commits.
//
// # Architecture
//
// The engine is built from a few pieces:
//
//   - deleteset: per-client clock ranges used for deletions and insertions
//   - StructStore: per-client, clock-ordered structs with clean splitting
//   - Type: arrays, text and maps, root or nested
//   - Transaction: atomic batch of changes with rollback and observers
//   - Update: in-memory exchange of structs between documents
//
// # Basic Usage
//
//	doc := engine.New()
//	text := doc.GetText("body")
//
//	err := doc.Transact("user", func(tx *engine.Transaction) error {
//	    return text.InsertString(tx, 0, "Hello")
//	})
//
//	text.String() // "Hello"
//
// # Transactions
//
// Every change runs inside Transact. Calls made while a transaction is
// running join it. Observers registered with OnAfterTransaction run once
// the outermost transaction commits:
//
//	cancel := doc.OnAfterTransaction(func(tx *engine.Transaction) {
//	    fmt.Println(tx.Origin(), tx.Deletions())
//	})
//	defer cancel()
//
// If the function passed to Transact returns an error, the changes it made
// are rolled back and no observer runs:
//
//	err := doc.Transact(nil, func(tx *engine.Transaction) error {
//	    text.InsertString(tx, 0, "draft")
//	    return errors.New("abort")
//	})
//	text.String() // unchanged
//
// # Origins
//
// The origin passed to Transact identifies who made a change. Origins that
// implement Tagged also carry a category, read once when the transaction
// starts.
//
// # Garbage Collection
//
// Deleted items keep their content only while something protects them.
// SetProtected adds or releases one hold; an item is collected once the
// count drops to zero. Collection replaces the content with ContentDeleted,
// and the children of a collected nested type become GC structs.
//
// # Restoring Content
//
// Redo inserts a copy of a deleted item at its original position and
// links the two through the item's redone id. FollowRedone walks those
// links to the item that currently represents some original id.
//
// # Error Handling
//
// The package defines several error types:
//
//   - ErrIndexOutOfRange: Index past the end of a sequence
//   - ErrNotIntegrated: Type not attached to a document
//   - ErrForeignTransaction: Transaction from another document
//   - ErrTypeAttached: Nested type inserted twice
//   - ErrMissingStruct: Range referencing unknown clocks
//   - ErrMissingDependencies: Update that cannot be integrated
package engine
