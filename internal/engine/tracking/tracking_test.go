package tracking

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dshills/ydoc/internal/engine"
)

func newTrackedDoc(opts ...TrackerOption) (*engine.Doc, *engine.Type, *Tracker) {
	doc := engine.New(engine.WithClientID(1))
	tracker := NewTracker(opts...)
	tracker.Attach(doc)
	return doc, doc.GetText("body"), tracker
}

func edit(t *testing.T, doc *engine.Doc, origin any, fn func(tx *engine.Transaction) error) {
	t.Helper()
	if err := doc.Transact(origin, fn); err != nil {
		t.Fatalf("transact: %v", err)
	}
}

// TestChangeTypes tests change classification
func TestChangeTypes(t *testing.T) {
	doc, text, tracker := newTrackedDoc()

	edit(t, doc, nil, func(tx *engine.Transaction) error { return text.InsertString(tx, 0, "hello") })
	edit(t, doc, nil, func(tx *engine.Transaction) error { return text.Delete(tx, 0, 1) })
	edit(t, doc, nil, func(tx *engine.Transaction) error {
		if err := text.Delete(tx, 0, 1); err != nil {
			return err
		}
		return text.InsertString(tx, 0, "J")
	})

	changes := tracker.ChangesSince(0)
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(changes))
	}
	tests := []struct {
		want  ChangeType
		check func(Change) bool
	}{
		{ChangeInsert, Change.IsInsert},
		{ChangeDelete, Change.IsDelete},
		{ChangeReplace, Change.IsReplace},
	}
	for i, tt := range tests {
		if changes[i].Type != tt.want || !tt.check(changes[i]) {
			t.Errorf("change %d: expected %v, got %v", i, tt.want, changes[i].Type)
		}
	}

	first := changes[0]
	if first.Insertions.String() != "1:[0+5]" {
		t.Errorf("unexpected insertions %s", first.Insertions)
	}
	if len(first.Roots) != 1 || first.Roots[0] != "body" {
		t.Errorf("unexpected roots %v", first.Roots)
	}
	if changes[1].Deletions.String() != "1:[0+1]" {
		t.Errorf("unexpected deletions %s", changes[1].Deletions)
	}
	if !strings.HasPrefix(first.String(), "r1 insert +5 -0") {
		t.Errorf("unexpected String() %q", first.String())
	}
}

// TestChangeSet tests merged ranges and summaries
func TestChangeSet(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		cs := NewChangeSet(0)
		if !cs.IsEmpty() || cs.Summary() != "no changes" {
			t.Errorf("unexpected empty set: %q", cs.Summary())
		}
	})

	t.Run("summary", func(t *testing.T) {
		doc, text, tracker := newTrackedDoc()
		edit(t, doc, nil, func(tx *engine.Transaction) error { return text.InsertString(tx, 0, "ab") })
		edit(t, doc, nil, func(tx *engine.Transaction) error { return text.InsertString(tx, 2, "cd") })
		edit(t, doc, nil, func(tx *engine.Transaction) error { return text.Delete(tx, 0, 1) })

		cs := tracker.BuildChangeSet(0)
		if cs.Len() != 3 || cs.EndRevision != 3 {
			t.Fatalf("expected 3 changes ending at r3, got %d / r%d", cs.Len(), cs.EndRevision)
		}
		if got := cs.Insertions().String(); got != "1:[0+4]" {
			t.Errorf("merged insertions %s", got)
		}
		if got := cs.Summary(); got != "2 inserts (+4), 1 deletes (-1)" {
			t.Errorf("summary %q", got)
		}
	})
}

// TestSnapshotManager tests snapshot manager operations
func TestSnapshotManager(t *testing.T) {
	t.Run("create and get", func(t *testing.T) {
		sm := NewSnapshotManager()
		id := sm.Create("test", engine.StateVector{1: 4}, 1)

		snap, ok := sm.Get(id)
		if !ok {
			t.Fatal("snapshot not found by ID")
		}
		if snap.State().Get(1) != 4 {
			t.Errorf("expected state 4, got %d", snap.State().Get(1))
		}
		snap2, ok := sm.GetByName("test")
		if !ok || snap2.ID != id {
			t.Error("snapshot not found by name")
		}
	})

	t.Run("replace by name", func(t *testing.T) {
		sm := NewSnapshotManager()
		first := sm.Create("cp", engine.StateVector{}, 1)
		second := sm.Create("cp", engine.StateVector{}, 2)

		if _, ok := sm.Get(first); ok {
			t.Error("replaced snapshot still present")
		}
		if snap, _ := sm.GetByName("cp"); snap.ID != second {
			t.Error("name should point at the newest snapshot")
		}
		if sm.Count() != 1 {
			t.Errorf("expected 1 snapshot, got %d", sm.Count())
		}
	})

	t.Run("state is copied", func(t *testing.T) {
		sv := engine.StateVector{1: 1}
		snap := NewSnapshot("x", sv, 0)
		sv[1] = 9
		if snap.State().Get(1) != 1 {
			t.Error("snapshot shares the caller's vector")
		}
	})

	t.Run("delete and list", func(t *testing.T) {
		sm := NewSnapshotManager()
		a := sm.Create("a", engine.StateVector{}, 0)
		sm.Create("b", engine.StateVector{}, 0)
		sm.Delete(a)

		list := sm.List()
		if len(list) != 1 || list[0].Name != "b" {
			t.Errorf("unexpected list %v", list)
		}
		if _, ok := sm.GetByName("a"); ok {
			t.Error("deleted name still resolvable")
		}
	})
}

// TestTracker tests recording against a live document
func TestTracker(t *testing.T) {
	t.Run("record and query changes", func(t *testing.T) {
		doc, text, tracker := newTrackedDoc()
		for i := 0; i < 3; i++ {
			edit(t, doc, "user", func(tx *engine.Transaction) error { return text.InsertString(tx, 0, "x") })
		}

		if tracker.Revision() != 3 || tracker.ChangeCount() != 3 {
			t.Fatalf("expected 3 revisions, got r%d / %d", tracker.Revision(), tracker.ChangeCount())
		}
		since := tracker.ChangesSince(1)
		if len(since) != 2 || since[0].Revision != 2 {
			t.Errorf("unexpected changes since r1: %v", since)
		}
		between := tracker.ChangesBetween(1, 2)
		if len(between) != 1 || between[0].Origin != "user" {
			t.Errorf("unexpected changes between: %v", between)
		}
	})

	t.Run("latest changes", func(t *testing.T) {
		doc, text, tracker := newTrackedDoc()
		for i := 0; i < 5; i++ {
			edit(t, doc, nil, func(tx *engine.Transaction) error { return text.InsertString(tx, 0, "x") })
		}
		latest := tracker.LatestChanges(2)
		if len(latest) != 2 || latest[0].Revision != 4 || latest[1].Revision != 5 {
			t.Errorf("unexpected latest %v", latest)
		}
		if got := tracker.LatestChanges(10); len(got) != 5 {
			t.Errorf("expected all 5 changes, got %d", len(got))
		}
	})

	t.Run("ring buffer overflow", func(t *testing.T) {
		doc, text, tracker := newTrackedDoc(WithMaxChanges(3))
		for i := 0; i < 5; i++ {
			edit(t, doc, nil, func(tx *engine.Transaction) error { return text.InsertString(tx, 0, "x") })
		}
		changes := tracker.ChangesSince(0)
		if len(changes) != 3 || changes[0].Revision != 3 {
			t.Errorf("expected revisions 3..5, got %v", changes)
		}
	})

	t.Run("aborted transactions are not recorded", func(t *testing.T) {
		doc, text, tracker := newTrackedDoc()
		_ = doc.Transact(nil, func(tx *engine.Transaction) error {
			_ = text.InsertString(tx, 0, "x")
			return errors.New("abort")
		})
		if tracker.ChangeCount() != 0 {
			t.Errorf("expected no changes, got %d", tracker.ChangeCount())
		}
	})

	t.Run("detach", func(t *testing.T) {
		doc, text, tracker := newTrackedDoc()
		tracker.Detach()
		edit(t, doc, nil, func(tx *engine.Transaction) error { return text.InsertString(tx, 0, "x") })
		if tracker.ChangeCount() != 0 {
			t.Error("detached tracker still records")
		}
	})

	t.Run("clock", func(t *testing.T) {
		stamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		doc, text, tracker := newTrackedDoc(WithClock(func() time.Time { return stamp }))
		edit(t, doc, nil, func(tx *engine.Transaction) error { return text.InsertString(tx, 0, "x") })
		if got := tracker.LatestChanges(1)[0].Timestamp; !got.Equal(stamp) {
			t.Errorf("expected %v, got %v", stamp, got)
		}
	})
}

// TestTrackerSnapshots tests snapshot queries
func TestTrackerSnapshots(t *testing.T) {
	doc, text, tracker := newTrackedDoc()
	edit(t, doc, nil, func(tx *engine.Transaction) error { return text.InsertString(tx, 0, "ab") })
	id := tracker.CreateSnapshot("before")
	edit(t, doc, nil, func(tx *engine.Transaction) error { return text.InsertString(tx, 2, "cde") })
	edit(t, doc, nil, func(tx *engine.Transaction) error { return text.Delete(tx, 0, 1) })

	cs, err := tracker.DiffSinceSnapshot(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs.Len() != 2 || cs.StartRevision != 1 {
		t.Errorf("expected 2 changes after r1, got %d after r%d", cs.Len(), cs.StartRevision)
	}

	inserted, err := tracker.InsertedSinceSnapshot(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted.String() != "1:[2+3]" {
		t.Errorf("unexpected inserted ranges %s", inserted)
	}

	if _, err := tracker.GetSnapshotByName("before"); err != nil {
		t.Errorf("snapshot lookup by name failed: %v", err)
	}
	tracker.DeleteSnapshot(id)
	if _, err := tracker.GetSnapshot(id); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("expected ErrSnapshotNotFound, got %v", err)
	}
	if _, err := tracker.DiffSinceSnapshot(id); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("expected ErrSnapshotNotFound, got %v", err)
	}

	tracker.CreateSnapshot("again")
	tracker.Clear()
	if tracker.ChangeCount() != 0 || tracker.SnapshotCount() != 0 {
		t.Error("Clear left data behind")
	}
}

// TestRemoteChangesTracked tests that applied updates are journaled as remote
func TestRemoteChangesTracked(t *testing.T) {
	src := engine.New(engine.WithClientID(2))
	edit(t, src, nil, func(tx *engine.Transaction) error {
		return src.GetText("body").InsertString(tx, 0, "hi")
	})

	doc, text, tracker := newTrackedDoc()
	if err := engine.ApplyUpdate(doc, engine.EncodeStateAsUpdate(src, doc.StateVector()), "net"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if text.String() != "hi" {
		t.Fatalf("expected %q, got %q", "hi", text.String())
	}
	c := tracker.LatestChanges(1)[0]
	if c.Local || c.Origin != "net" || c.Insertions.String() != "2:[0+2]" {
		t.Errorf("unexpected remote change %+v", c)
	}
	if cs := tracker.BuildChangeSet(0); !strings.Contains(cs.Summary(), "1 remote") {
		t.Errorf("summary should count remote changes: %q", cs.Summary())
	}
}
