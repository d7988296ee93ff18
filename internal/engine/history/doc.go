// Package history provides undo/redo for replicated documents.
//
// An UndoManager watches the transactions committed on a document and
// records the ones that touch its scope. Nothing is replayed from recorded
// operations: each StackItem only remembers which structs were deleted and
// which clocks were allocated, and inverting it deletes what was inserted
// and restores what was deleted. Concurrent edits from other replicas are
// left untouched.
//
// # Stack Items
//
// A StackItem pairs two range sets:
//   - Deletions: structs removed while the item was captured
//   - Insertions: clock ranges allocated while the item was captured
//
// Structs created and deleted inside the same item are never restored.
//
// # Capturing
//
// Transactions committed within the capture timeout of each other merge
// into the same stack item:
//
//	um, err := history.NewUndoManager(doc, []*engine.Type{text},
//	    history.WithCaptureTimeout(time.Second))
//
//	// ... edits ...
//	um.StopCapturing() // next edit starts a new item
//
// # Undo and Redo
//
//	item, err := um.Undo()
//	item, err = um.Redo()
//
// Undo runs in a transaction whose origin is the manager. The manager sees
// that transaction like any other and records it on the redo stack, which
// is how redo items come into existence.
//
// # Origins
//
// WithTrackedOrigins limits capturing to selected origins; the manager
// itself and the nil origin are always added. WithIgnoredOrigins does the
// opposite. Both match origin values and the tags of engine.Tagged origins.
//
// # Garbage Collection
//
// Deleted structs referenced by a stack item are protected from garbage
// collection until the item is popped, evicted or cleared.
package history
