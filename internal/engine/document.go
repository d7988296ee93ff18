package engine

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/dshills/ydoc/internal/engine/deleteset"
)

// Doc is a replicated document: a struct store plus named root types.
//
// A Doc is not safe for concurrent use. All changes go through Transact,
// which serializes them by construction.
type Doc struct {
	clientID uint64
	guid     string
	gc       bool

	store *StructStore
	share map[string]*Type
	tx    *Transaction

	observers  []afterTransactionObserver
	observerID int

	// pendingGC holds items released from protection since the last
	// collection.
	pendingGC *deleteset.DeleteSet
}

type afterTransactionObserver struct {
	id int
	fn func(*Transaction)
}

// New creates an empty document.
func New(opts ...Option) *Doc {
	d := &Doc{
		gc:        true,
		store:     newStructStore(),
		share:     make(map[string]*Type),
		pendingGC: deleteset.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.clientID == 0 {
		d.clientID = randomClientID()
	}
	if d.guid == "" {
		d.guid = uuid.NewString()
	}
	return d
}

func randomClientID() uint64 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 1
	}
	if id := uint64(binary.LittleEndian.Uint32(b[:])); id != 0 {
		return id
	}
	return 1
}

// ClientID returns the replica id used for local changes.
func (d *Doc) ClientID() uint64 { return d.clientID }

// GUID returns the document's globally unique id.
func (d *Doc) GUID() string { return d.guid }

// GCEnabled reports whether deleted content is garbage collected.
func (d *Doc) GCEnabled() bool { return d.gc }

// Store returns the document's struct store.
func (d *Doc) Store() *StructStore { return d.store }

// StateVector returns the current state of every known client.
func (d *Doc) StateVector() StateVector { return d.store.StateVector() }

// Root returns the root type called name, creating it on first use.
func (d *Doc) Root(name string, kind TypeKind) (*Type, error) {
	if t, ok := d.share[name]; ok {
		if t.kind != kind {
			return nil, fmt.Errorf("%w: %q is a %s", ErrKindMismatch, name, t.kind)
		}
		return t, nil
	}
	t := newType(kind)
	t.doc = d
	t.name = name
	d.share[name] = t
	return t, nil
}

func (d *Doc) mustRoot(name string, kind TypeKind) *Type {
	t, err := d.Root(name, kind)
	if err != nil {
		panic(err)
	}
	return t
}

// GetArray returns the root array called name.
// It panics if name is already used by another kind.
func (d *Doc) GetArray(name string) *Type { return d.mustRoot(name, KindArray) }

// GetText returns the root text called name.
// It panics if name is already used by another kind.
func (d *Doc) GetText(name string) *Type { return d.mustRoot(name, KindText) }

// GetMap returns the root map called name.
// It panics if name is already used by another kind.
func (d *Doc) GetMap(name string) *Type { return d.mustRoot(name, KindMap) }

// Roots returns the names of the root types in sorted order.
func (d *Doc) Roots() []string {
	names := make([]string, 0, len(d.share))
	for name := range d.share {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the root type called name without creating it.
func (d *Doc) Lookup(name string) (*Type, bool) {
	t, ok := d.share[name]
	return t, ok
}

// InTransaction reports whether a transaction is running.
func (d *Doc) InTransaction() bool { return d.tx != nil }

// OnAfterTransaction registers fn to run after every committed
// transaction. The returned function removes the observer.
func (d *Doc) OnAfterTransaction(fn func(*Transaction)) (cancel func()) {
	d.observerID++
	id := d.observerID
	d.observers = append(d.observers, afterTransactionObserver{id: id, fn: fn})
	return func() {
		for i, o := range d.observers {
			if o.id == id {
				d.observers = append(d.observers[:i:i], d.observers[i+1:]...)
				return
			}
		}
	}
}

// Transact runs fn inside a transaction tagged with origin. A call made
// while another transaction is running joins it.
//
// If fn returns an error or panics, every change it made is rolled back
// and no observer runs. Errors are returned as is; panics are re-raised.
func (d *Doc) Transact(origin any, fn func(*Transaction) error) error {
	if d.tx != nil {
		return fn(d.tx)
	}
	return d.transact(origin, true, fn)
}

func (d *Doc) transact(origin any, local bool, fn func(*Transaction) error) error {
	tx := newTransaction(d, origin, local)
	d.tx = tx
	committed := false
	defer func() {
		if committed {
			return
		}
		d.tx = nil
		tx.journal.rollback()
		for t := range tx.changed {
			t.ClearSearchMarkers()
		}
		if r := recover(); r != nil {
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	committed = true
	d.commit(tx)
	return nil
}

func (d *Doc) commit(tx *Transaction) {
	tx.deletions.SortAndMerge()
	tx.afterState = d.store.StateVector()
	tx.computeChangedParents()
	tx.journal = journal{}
	d.tx = nil

	observers := append([]afterTransactionObserver(nil), d.observers...)
	for _, o := range observers {
		o.fn(tx)
	}

	if d.gc {
		pending := d.pendingGC
		d.pendingGC = deleteset.New()
		d.collectGarbage(deleteset.Merge(tx.deletions, pending))
	}
}

// collectGarbage drops the payload of deleted, unprotected items in ds.
func (d *Doc) collectGarbage(ds *deleteset.DeleteSet) {
	ds.Each(func(client uint64, r deleteset.Range) {
		structs := d.store.clients[client]
		i := findIndex(structs, r.Clock)
		if i < 0 {
			return
		}
		for ; i < len(structs) && structs[i].ID().Clock < r.End(); i++ {
			item, ok := structs[i].(*Item)
			if !ok || !item.deleted || item.protect > 0 {
				continue
			}
			if _, done := item.content.(*ContentDeleted); done || item.subtreeProtected() {
				continue
			}
			item.gc(d.store, false)
		}
	})
}
