package engine

import (
	"fmt"
	"sort"

	"github.com/dshills/ydoc/internal/engine/deleteset"
)

// StructRecord describes one struct in an Update.
type StructRecord struct {
	ID          ID
	Length      uint64
	GC          bool
	Origin      *ID
	RightOrigin *ID

	// Exactly one of ParentRoot and ParentItem is set for items.
	ParentRoot string
	ParentKind TypeKind
	ParentItem *ID
	ParentSub  string

	Content Content
}

// Update is an in-memory batch of structs and deletions exchanged between
// documents. It is what a network provider would carry; no wire encoding
// is defined.
type Update struct {
	Structs   []StructRecord
	Deletions *deleteset.DeleteSet
}

// EncodeStateAsUpdate returns every struct of doc not covered by sv,
// together with the document's complete delete set.
func EncodeStateAsUpdate(doc *Doc, sv StateVector) *Update {
	u := &Update{Deletions: deleteset.New()}
	store := doc.store
	clients := make([]uint64, 0, len(store.clients))
	for client := range store.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i] < clients[j] })

	for _, client := range clients {
		structs := store.clients[client]
		for _, st := range structs {
			if st.Deleted() {
				u.Deletions.Add(client, st.ID().Clock, st.Len())
			}
		}
		from := sv.Get(client)
		if from >= store.State(client) {
			continue
		}
		i := findIndex(structs, from)
		if i < 0 {
			continue
		}
		for j, st := range structs[i:] {
			offset := uint64(0)
			if j == 0 {
				offset = from - st.ID().Clock
			}
			u.Structs = append(u.Structs, record(st, offset))
		}
	}
	u.Deletions.SortAndMerge()
	return u
}

func record(st Struct, offset uint64) StructRecord {
	id := st.ID()
	rec := StructRecord{
		ID:     ID{id.Client, id.Clock + offset},
		Length: st.Len() - offset,
	}
	item, ok := st.(*Item)
	if !ok {
		rec.GC = true
		return rec
	}
	if offset > 0 {
		rec.Origin = idPtr(id.Client, id.Clock+offset-1)
	} else if item.origin != nil {
		o := *item.origin
		rec.Origin = &o
	}
	if item.rightOrigin != nil {
		ro := *item.rightOrigin
		rec.RightOrigin = &ro
	}
	if item.parent.item == nil {
		rec.ParentRoot = item.parent.name
		rec.ParentKind = item.parent.kind
	} else {
		pid := item.parent.item.id
		rec.ParentItem = &pid
	}
	rec.ParentSub = item.parentSub
	rec.Content = item.content.Copy()
	if offset > 0 {
		rec.Content = rec.Content.Splice(offset)
	}
	return rec
}

// ApplyUpdate integrates u into doc inside one transaction tagged with
// origin. Structs the document already has are skipped; the rest are
// integrated once their dependencies are known. Deletions are applied
// last. If some structs still have unknown dependencies the whole update
// is rolled back and ErrMissingDependencies is returned.
func ApplyUpdate(doc *Doc, u *Update, origin any) error {
	if doc.tx != nil {
		return applyUpdate(doc.tx, u)
	}
	return doc.transact(origin, false, func(tx *Transaction) error {
		return applyUpdate(tx, u)
	})
}

func applyUpdate(tx *Transaction, u *Update) error {
	store := tx.doc.store
	pending := append([]StructRecord(nil), u.Structs...)
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].ID.Client != pending[j].ID.Client {
			return pending[i].ID.Client < pending[j].ID.Client
		}
		return pending[i].ID.Clock < pending[j].ID.Clock
	})

	for len(pending) > 0 {
		progress := false
		rest := pending[:0]
		for _, rec := range pending {
			state := store.State(rec.ID.Client)
			switch {
			case rec.ID.Clock+rec.Length <= state:
				progress = true
			case rec.ID.Clock > state || !dependenciesKnown(store, rec):
				rest = append(rest, rec)
			default:
				integrateRecord(tx, rec, state-rec.ID.Clock)
				progress = true
			}
		}
		pending = rest
		if !progress {
			return fmt.Errorf("%w: %d structs pending", ErrMissingDependencies, len(pending))
		}
	}

	if u.Deletions != nil {
		applyDeletions(tx, u.Deletions)
	}
	for t := range tx.changed {
		t.ClearSearchMarkers()
	}
	return nil
}

func dependenciesKnown(store *StructStore, rec StructRecord) bool {
	for _, dep := range []*ID{rec.Origin, rec.RightOrigin, rec.ParentItem} {
		if dep != nil && dep.Client != rec.ID.Client && dep.Clock >= store.State(dep.Client) {
			return false
		}
	}
	return true
}

func integrateRecord(tx *Transaction, rec StructRecord, offset uint64) {
	store := tx.doc.store
	if rec.GC {
		g := &GC{id: ID{rec.ID.Client, rec.ID.Clock + offset}, length: rec.Length - offset}
		store.add(g)
		tx.journal.record(func() { store.remove(g) })
		return
	}

	item := &Item{
		id:        rec.ID,
		length:    rec.Length,
		parentSub: rec.ParentSub,
		content:   rec.Content.Copy(),
	}
	if rec.Origin != nil {
		o := *rec.Origin
		item.origin = &o
	}
	if rec.RightOrigin != nil {
		ro := *rec.RightOrigin
		item.rightOrigin = &ro
	}

	parent, ok := resolveParent(tx, rec)
	if ok && offset == 0 && item.origin != nil {
		if item.left = store.CleanEnd(tx, *item.origin); item.left == nil {
			ok = false
		}
	}
	if ok && item.rightOrigin != nil {
		if item.right = store.CleanStart(tx, *item.rightOrigin); item.right == nil {
			ok = false
		}
	}
	if !ok {
		g := &GC{id: ID{rec.ID.Client, rec.ID.Clock + offset}, length: rec.Length - offset}
		store.add(g)
		tx.journal.record(func() { store.remove(g) })
		return
	}
	item.parent = parent
	item.integrate(tx, offset)
}

// resolveParent finds the type a record belongs to. It fails when the
// parent item was collected.
func resolveParent(tx *Transaction, rec StructRecord) (*Type, bool) {
	if rec.ParentItem == nil {
		t, err := tx.doc.Root(rec.ParentRoot, rec.ParentKind)
		return t, err == nil
	}
	item, ok := tx.doc.store.Find(*rec.ParentItem).(*Item)
	if !ok {
		return nil, false
	}
	ct, ok := item.content.(*ContentType)
	if !ok {
		return nil, false
	}
	return ct.typ, true
}

func applyDeletions(tx *Transaction, ds *deleteset.DeleteSet) {
	store := tx.doc.store
	for _, client := range ds.Clients() {
		state := store.State(client)
		for _, r := range ds.Ranges(client) {
			end := r.End()
			if end > state {
				end = state
			}
			clock := r.Clock
			for clock < end {
				st := store.Find(ID{client, clock})
				if st == nil {
					break
				}
				item, ok := st.(*Item)
				if !ok || item.deleted {
					clock = st.ID().Clock + st.Len()
					continue
				}
				if item.id.Clock < clock {
					item = store.CleanStart(tx, ID{client, clock})
				}
				if item.id.Clock+item.length > end {
					store.CleanStart(tx, ID{client, end})
				}
				item.Delete(tx)
				clock = item.id.Clock + item.length
			}
		}
	}
}
