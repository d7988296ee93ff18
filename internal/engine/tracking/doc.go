// Package tracking keeps a journal of committed document transactions.
//
// This package records what every transaction did, supporting:
//   - Revision-based change queries ("what changed since revision X?")
//   - Named snapshots of a document's state vector
//   - Summaries of local and remote activity
//
// # Core Components
//
//   - [Change]: The record of one committed transaction
//   - [ChangeSet]: Consecutive changes with merged insertion/deletion ranges
//   - [Snapshot]: A named state-vector checkpoint
//   - [Tracker]: Ring buffer of changes attached to a document
//
// # Usage
//
//	tracker := tracking.NewTracker(tracking.WithMaxChanges(500))
//	tracker.Attach(doc)
//	defer tracker.Detach()
//
//	// ... edits ...
//
//	for _, c := range tracker.ChangesSince(0) {
//	    fmt.Println(c)
//	}
//
// # Snapshots
//
//	id := tracker.CreateSnapshot("before_import")
//	// ... edits ...
//	inserted, _ := tracker.InsertedSinceSnapshot(id)
//
// # Thread Safety
//
// Tracker queries are safe from any goroutine. Recording happens on the
// goroutine that commits transactions.
package tracking
