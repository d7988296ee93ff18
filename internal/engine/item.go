package engine

// Struct is an entry in the struct store: either a live or deleted *Item,
// or a *GC tombstone whose payload and position are gone.
type Struct interface {
	ID() ID
	Len() uint64
	Deleted() bool
	isStruct()
}

// GC is a collected range of structs. Only its id span survives.
type GC struct {
	id     ID
	length uint64
}

func (g *GC) ID() ID         { return g.id }
func (g *GC) Len() uint64    { return g.length }
func (g *GC) Deleted() bool  { return true }
func (g *GC) isStruct()      {}
func (g *GC) String() string { return "gc(" + g.id.String() + ")" }

// Item is a run of content inserted by one client in one transaction.
type Item struct {
	id          ID
	length      uint64
	left, right *Item
	origin      *ID
	rightOrigin *ID
	parent      *Type
	parentSub   string
	content     Content
	deleted     bool
	redone      *ID
	protect     int
}

func (it *Item) isStruct() {}

// ID returns the id of the first clock in the item.
func (it *Item) ID() ID { return it.id }

// Len returns the number of clocks covered by the item.
func (it *Item) Len() uint64 { return it.length }

// Deleted reports whether the item is a tombstone.
func (it *Item) Deleted() bool { return it.deleted }

// LastID returns the id of the last clock in the item.
func (it *Item) LastID() ID {
	return ID{it.id.Client, it.id.Clock + it.length - 1}
}

// Left returns the item to the left in the parent's list.
func (it *Item) Left() *Item { return it.left }

// Right returns the item to the right in the parent's list.
func (it *Item) Right() *Item { return it.right }

// Parent returns the type the item belongs to.
func (it *Item) Parent() *Type { return it.parent }

// ParentSub returns the map key, or "" for sequence items.
func (it *Item) ParentSub() string { return it.parentSub }

// Content returns the item's payload.
func (it *Item) Content() Content { return it.content }

// Countable reports whether the item counts toward its parent's length.
func (it *Item) Countable() bool { return it.content.Countable() }

// Redone returns the id of the item that replaced this one on redo.
func (it *Item) Redone() (ID, bool) {
	if it.redone == nil {
		return ID{}, false
	}
	return *it.redone, true
}

// Protected reports whether the item is shielded from garbage collection.
func (it *Item) Protected() bool { return it.protect > 0 }

// ProtectCount returns the number of holders protecting the item.
func (it *Item) ProtectCount() int { return it.protect }

// Delete marks the item deleted and records it in the transaction.
// Deleting an item holding a nested type deletes its children as well.
//
// Item-level deletes do not refresh the parent's search markers; callers
// working below the Type API must call ClearSearchMarkers themselves.
func (it *Item) Delete(tx *Transaction) {
	if it.deleted {
		return
	}
	parent := it.parent
	countable := it.Countable() && it.parentSub == ""
	if countable {
		parent.length -= it.length
	}
	it.deleted = true
	tx.journal.record(func() {
		it.deleted = false
		if countable {
			parent.length += it.length
		}
	})
	tx.deletions.Add(it.id.Client, it.id.Clock, it.length)
	tx.addChangedType(parent, it.parentSub)
	it.content.delete(tx)
}

// SetProtected adds (true) or releases (false) one protection hold on the
// item. The count never drops below zero. A deleted item whose count
// reaches zero is collected at the end of the next committed transaction.
func SetProtected(it *Item, protect bool) {
	prev := it.protect
	if protect {
		it.protect++
	} else if it.protect > 0 {
		it.protect--
	}
	if it.protect == prev {
		return
	}
	doc := it.parent.doc
	if doc == nil {
		return
	}
	if doc.tx != nil {
		doc.tx.journal.record(func() { it.protect = prev })
	}
	if it.protect == 0 && it.deleted && doc.gc {
		doc.pendingGC.Add(it.id.Client, it.id.Clock, it.length)
	}
}

// IsParentOf reports whether item lives inside root, directly or through
// nested types.
func IsParentOf(root *Type, item *Item) bool {
	for item != nil {
		if item.parent == root {
			return true
		}
		item = item.parent.item
	}
	return false
}

// split cuts it at diff and returns the right half. The right half is
// inserted into the store after it.
func (it *Item) split(tx *Transaction, diff uint64) *Item {
	right := &Item{
		id:          ID{it.id.Client, it.id.Clock + diff},
		length:      it.length - diff,
		left:        it,
		origin:      idPtr(it.id.Client, it.id.Clock+diff-1),
		right:       it.right,
		rightOrigin: it.rightOrigin,
		parent:      it.parent,
		parentSub:   it.parentSub,
		content:     it.content.Splice(diff),
		deleted:     it.deleted,
		protect:     it.protect,
	}
	if it.redone != nil {
		right.redone = idPtr(it.redone.Client, it.redone.Clock+diff)
	}
	it.right = right
	if right.right != nil {
		right.right.left = right
	}
	if right.parentSub != "" && right.right == nil {
		right.parent.entries[right.parentSub] = right
	}
	it.length = diff

	tx.journal.record(func() {
		tx.doc.store.remove(right)
		it.right = right.right
		if right.right != nil {
			right.right.left = it
		}
		if right.parentSub != "" && right.right == nil {
			right.parent.entries[right.parentSub] = it
		}
		it.content.mergeWith(right.content)
		it.length += right.length
	})
	return right
}

// integrate links a new item into its parent, resolving concurrent
// insertions at the same position. offset skips clocks the store already
// knows about.
func (it *Item) integrate(tx *Transaction, offset uint64) {
	store := tx.doc.store
	if offset > 0 {
		it.id.Clock += offset
		it.left = store.CleanEnd(tx, ID{it.id.Client, it.id.Clock - 1})
		if it.left != nil {
			last := it.left.LastID()
			it.origin = &last
		}
		it.content = it.content.Splice(offset)
		it.length -= offset
	}

	parent := it.parent
	if (it.left == nil && (it.right == nil || it.right.left != nil)) ||
		(it.left != nil && it.left.right != it.right) {
		it.resolveConflicts(store)
	}

	if it.left != nil {
		it.right = it.left.right
		it.left.right = it
	} else {
		var r *Item
		if it.parentSub != "" {
			r = parent.entries[it.parentSub]
			for r != nil && r.left != nil {
				r = r.left
			}
		} else {
			r = parent.start
			parent.start = it
		}
		it.right = r
	}
	prevEntry, hadEntry := parent.entries[it.parentSub]
	if it.right != nil {
		it.right.left = it
	} else if it.parentSub != "" {
		parent.entries[it.parentSub] = it
	}
	countable := it.parentSub == "" && it.Countable() && !it.deleted
	if countable {
		parent.length += it.length
	}
	store.add(it)

	tx.journal.record(func() {
		if it.left != nil {
			it.left.right = it.right
		} else if it.parentSub == "" {
			parent.start = it.right
		}
		if it.right != nil {
			it.right.left = it.left
		} else if it.parentSub != "" {
			if hadEntry {
				parent.entries[it.parentSub] = prevEntry
			} else {
				delete(parent.entries, it.parentSub)
			}
		}
		if countable {
			parent.length -= it.length
		}
		store.remove(it)
	})

	if it.parentSub != "" && it.left != nil && it.right == nil {
		it.left.Delete(tx)
	}
	it.content.integrate(tx, it)
	tx.addChangedType(parent, it.parentSub)
	if (parent.item != nil && parent.item.deleted) || (it.parentSub != "" && it.right != nil) {
		it.Delete(tx)
	}
}

// resolveConflicts moves it.left past concurrently inserted items that
// sort before it.
func (it *Item) resolveConflicts(store *StructStore) {
	left := it.left
	var o *Item
	if left != nil {
		o = left.right
	} else if it.parentSub != "" {
		o = it.parent.entries[it.parentSub]
		for o != nil && o.left != nil {
			o = o.left
		}
	} else {
		o = it.parent.start
	}

	conflicting := make(map[*Item]struct{})
	beforeOrigin := make(map[*Item]struct{})
	for o != nil && o != it.right {
		beforeOrigin[o] = struct{}{}
		conflicting[o] = struct{}{}
		if sameID(it.origin, o.origin) {
			if o.id.Client < it.id.Client {
				left = o
				conflicting = make(map[*Item]struct{})
			} else if sameID(it.rightOrigin, o.rightOrigin) {
				break
			}
		} else if o.origin != nil {
			oo, _ := store.Find(*o.origin).(*Item)
			if _, ok := beforeOrigin[oo]; ok && oo != nil {
				if _, ok := conflicting[oo]; !ok {
					left = o
					conflicting = make(map[*Item]struct{})
				}
			} else {
				break
			}
		} else {
			break
		}
		o = o.right
	}
	it.left = left
}

// gc drops the item's payload. When the whole parent was collected the
// item is replaced by a GC struct in the store.
func (it *Item) gc(store *StructStore, parentGCd bool) {
	it.content.gc(store)
	if parentGCd {
		store.replace(it, &GC{id: it.id, length: it.length})
		return
	}
	it.content = &ContentDeleted{length: it.length}
}

// subtreeProtected reports whether any item below a nested type is held.
func (it *Item) subtreeProtected() bool {
	ct, ok := it.content.(*ContentType)
	if !ok {
		return false
	}
	for n := ct.typ.start; n != nil; n = n.right {
		if n.protect > 0 || n.subtreeProtected() {
			return true
		}
	}
	for _, last := range ct.typ.entries {
		for n := last; n != nil; n = n.left {
			if n.protect > 0 || n.subtreeProtected() {
				return true
			}
		}
	}
	return false
}
