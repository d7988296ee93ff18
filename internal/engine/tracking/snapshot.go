package tracking

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/ydoc/internal/engine"
)

// Errors returned by snapshot operations.
var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// SnapshotID uniquely identifies a named snapshot.
type SnapshotID uint64

// snapshotIDCounter generates unique snapshot IDs.
var snapshotIDCounter uint64

// NewSnapshotID generates a new unique snapshot ID.
func NewSnapshotID() SnapshotID {
	return SnapshotID(atomic.AddUint64(&snapshotIDCounter, 1))
}

// Snapshot is a named checkpoint of a document's state vector.
// Snapshots are immutable and can be safely shared across goroutines.
type Snapshot struct {
	// ID uniquely identifies this snapshot.
	ID SnapshotID

	// Name is the human-readable name for this snapshot.
	Name string

	// Timestamp when this snapshot was created.
	Timestamp time.Time

	// Revision is the last tracker revision before the snapshot.
	Revision RevisionID

	state engine.StateVector
}

// NewSnapshot creates a new snapshot with the given parameters.
func NewSnapshot(name string, state engine.StateVector, revision RevisionID) *Snapshot {
	return &Snapshot{
		ID:        NewSnapshotID(),
		Name:      name,
		Timestamp: time.Now(),
		Revision:  revision,
		state:     state.Clone(),
	}
}

// State returns a copy of the state vector at this snapshot.
func (s *Snapshot) State() engine.StateVector {
	return s.state.Clone()
}

// Age returns how long ago this snapshot was created.
func (s *Snapshot) Age() time.Duration {
	return time.Since(s.Timestamp)
}

// SnapshotManager manages named snapshots.
// All operations are thread-safe.
type SnapshotManager struct {
	mu        sync.RWMutex
	snapshots map[SnapshotID]*Snapshot
	byName    map[string]*Snapshot
}

// NewSnapshotManager creates a new snapshot manager.
func NewSnapshotManager() *SnapshotManager {
	return &SnapshotManager{
		snapshots: make(map[SnapshotID]*Snapshot),
		byName:    make(map[string]*Snapshot),
	}
}

// Create creates a new named snapshot.
// If a snapshot with the same name exists, it is replaced.
func (sm *SnapshotManager) Create(name string, state engine.StateVector, revision RevisionID) SnapshotID {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if existing, ok := sm.byName[name]; ok {
		delete(sm.snapshots, existing.ID)
	}

	snap := NewSnapshot(name, state, revision)
	sm.snapshots[snap.ID] = snap
	if name != "" {
		sm.byName[name] = snap
	}
	return snap.ID
}

// Get retrieves a snapshot by ID.
func (sm *SnapshotManager) Get(id SnapshotID) (*Snapshot, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	snap, ok := sm.snapshots[id]
	return snap, ok
}

// GetByName retrieves a snapshot by name.
func (sm *SnapshotManager) GetByName(name string) (*Snapshot, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	snap, ok := sm.byName[name]
	return snap, ok
}

// Delete removes a snapshot by ID.
func (sm *SnapshotManager) Delete(id SnapshotID) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if snap, ok := sm.snapshots[id]; ok {
		if snap.Name != "" {
			delete(sm.byName, snap.Name)
		}
		delete(sm.snapshots, id)
	}
}

// List returns all snapshots, oldest first.
func (sm *SnapshotManager) List() []*Snapshot {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	snapshots := make([]*Snapshot, 0, len(sm.snapshots))
	for _, snap := range sm.snapshots {
		snapshots = append(snapshots, snap)
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].ID < snapshots[j].ID
	})
	return snapshots
}

// Count returns the number of snapshots.
func (sm *SnapshotManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.snapshots)
}

// Clear removes all snapshots.
func (sm *SnapshotManager) Clear() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.snapshots = make(map[SnapshotID]*Snapshot)
	sm.byName = make(map[string]*Snapshot)
}
