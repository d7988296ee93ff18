package tracking

import (
	"sync"
	"time"

	"github.com/dshills/ydoc/internal/engine"
	"github.com/dshills/ydoc/internal/engine/deleteset"
)

// DefaultMaxChanges is the default maximum number of changes to track.
const DefaultMaxChanges = 10000

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithMaxChanges sets the maximum number of changes to track.
// IMPORTANT: This option must only be used during Tracker creation via NewTracker.
// Applying it to an existing Tracker with recorded changes will discard those changes.
func WithMaxChanges(maxChanges int) TrackerOption {
	return func(t *Tracker) {
		if maxChanges > 0 {
			t.maxChanges = maxChanges
			t.changes = make([]Change, maxChanges)
		}
	}
}

// WithClock sets the time source used to stamp changes.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// Tracker keeps a bounded journal of the transactions committed on a
// document and supports named state-vector snapshots.
// All operations are thread-safe.
type Tracker struct {
	mu sync.RWMutex

	// Recent changes in a ring buffer
	changes    []Change
	head       int // Index of oldest entry
	count      int // Number of entries
	maxChanges int

	revision  RevisionID
	snapshots *SnapshotManager
	now       func() time.Time

	doc    *engine.Doc
	detach func()
}

// NewTracker creates a new change tracker with default settings.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		maxChanges: DefaultMaxChanges,
		changes:    make([]Change, DefaultMaxChanges),
		snapshots:  NewSnapshotManager(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Attach starts recording every transaction committed on doc.
// A tracker follows at most one document; attaching again moves it.
func (t *Tracker) Attach(doc *engine.Doc) {
	t.Detach()
	t.mu.Lock()
	t.doc = doc
	t.mu.Unlock()
	cancel := doc.OnAfterTransaction(func(tx *engine.Transaction) {
		t.Record(tx)
	})
	t.mu.Lock()
	t.detach = cancel
	t.mu.Unlock()
}

// Detach stops recording. Recorded changes are kept.
func (t *Tracker) Detach() {
	t.mu.Lock()
	cancel := t.detach
	t.detach = nil
	t.doc = nil
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Record adds a committed transaction to the journal and returns its
// revision.
func (t *Tracker) Record(tx *engine.Transaction) RevisionID {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.revision++
	t.recordChangeLocked(FromTransaction(tx, t.revision, t.now()))
	return t.revision
}

// recordChangeLocked adds a change to the ring buffer (must hold lock).
func (t *Tracker) recordChangeLocked(change Change) {
	idx := (t.head + t.count) % t.maxChanges
	if t.count < t.maxChanges {
		t.count++
	} else {
		// Ring buffer is full, advance head
		t.head = (t.head + 1) % t.maxChanges
	}
	t.changes[idx] = change
}

// Revision returns the revision of the latest recorded transaction.
func (t *Tracker) Revision() RevisionID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.revision
}

// ChangesSince returns all changes since a revision.
// Returns changes in chronological order.
func (t *Tracker) ChangesSince(rev RevisionID) []Change {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.changesBetweenLocked(rev, t.revision)
}

// ChangesBetween returns changes between two revisions (exclusive start, inclusive end).
func (t *Tracker) ChangesBetween(startRev, endRev RevisionID) []Change {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.changesBetweenLocked(startRev, endRev)
}

func (t *Tracker) changesBetweenLocked(startRev, endRev RevisionID) []Change {
	var result []Change
	for i := 0; i < t.count; i++ {
		c := t.changes[(t.head+i)%t.maxChanges]
		if c.Revision > startRev && c.Revision <= endRev {
			result = append(result, c)
		}
	}
	return result
}

// LatestChanges returns the most recent N changes.
func (t *Tracker) LatestChanges(n int) []Change {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if n > t.count {
		n = t.count
	}

	result := make([]Change, n)
	for i := 0; i < n; i++ {
		// Start from the most recent
		idx := (t.head + t.count - 1 - i) % t.maxChanges
		result[n-1-i] = t.changes[idx] // Reverse to get chronological order
	}

	return result
}

// ChangeCount returns the number of tracked changes.
func (t *Tracker) ChangeCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// BuildChangeSet creates a ChangeSet from changes since a revision.
func (t *Tracker) BuildChangeSet(sinceRev RevisionID) *ChangeSet {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cs := NewChangeSet(sinceRev)
	for _, c := range t.changesBetweenLocked(sinceRev, t.revision) {
		cs.Add(c)
	}
	return cs
}

// Snapshot Operations

// CreateSnapshot records the attached document's current state vector
// under name. Without a document the snapshot holds an empty state.
func (t *Tracker) CreateSnapshot(name string) SnapshotID {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := engine.StateVector{}
	if t.doc != nil {
		state = t.doc.StateVector()
	}
	return t.snapshots.Create(name, state, t.revision)
}

// GetSnapshot retrieves a snapshot by ID.
func (t *Tracker) GetSnapshot(id SnapshotID) (*Snapshot, error) {
	snap, ok := t.snapshots.Get(id)
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return snap, nil
}

// GetSnapshotByName retrieves a snapshot by name.
func (t *Tracker) GetSnapshotByName(name string) (*Snapshot, error) {
	snap, ok := t.snapshots.GetByName(name)
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return snap, nil
}

// DeleteSnapshot removes a snapshot.
func (t *Tracker) DeleteSnapshot(id SnapshotID) {
	t.snapshots.Delete(id)
}

// ListSnapshots returns all snapshots.
func (t *Tracker) ListSnapshots() []*Snapshot {
	return t.snapshots.List()
}

// SnapshotCount returns the number of snapshots.
func (t *Tracker) SnapshotCount() int {
	return t.snapshots.Count()
}

// DiffSinceSnapshot returns the journaled changes recorded after a
// snapshot. Changes already evicted from the ring buffer are missing.
func (t *Tracker) DiffSinceSnapshot(id SnapshotID) (*ChangeSet, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap, ok := t.snapshots.Get(id)
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	cs := NewChangeSet(snap.Revision)
	for _, c := range t.changesBetweenLocked(snap.Revision, t.revision) {
		cs.Add(c)
	}
	return cs, nil
}

// InsertedSinceSnapshot returns the clock ranges allocated on the attached
// document since a snapshot. Unlike DiffSinceSnapshot it does not depend
// on the journal.
func (t *Tracker) InsertedSinceSnapshot(id SnapshotID) (*deleteset.DeleteSet, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap, ok := t.snapshots.Get(id)
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	ds := deleteset.New()
	if t.doc == nil {
		return ds, nil
	}
	before := snap.state
	for client, after := range t.doc.StateVector() {
		if start := before.Get(client); after > start {
			ds.Add(client, start, after-start)
		}
	}
	ds.SortAndMerge()
	return ds, nil
}

// Clear removes all tracked changes and snapshots.
// The revision counter keeps counting.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.head = 0
	t.count = 0
	t.snapshots.Clear()
}
