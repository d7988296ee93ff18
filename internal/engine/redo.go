package engine

// DeleteQueue is an ordered set of items scheduled for deletion.
// Items keep the order in which they were first pushed.
type DeleteQueue struct {
	items []*Item
	seen  map[*Item]struct{}
}

// NewDeleteQueue creates an empty queue.
func NewDeleteQueue() *DeleteQueue {
	return &DeleteQueue{seen: make(map[*Item]struct{})}
}

// Push appends item unless it is already queued. It reports whether the
// item was added.
func (q *DeleteQueue) Push(item *Item) bool {
	if _, ok := q.seen[item]; ok {
		return false
	}
	q.seen[item] = struct{}{}
	q.items = append(q.items, item)
	return true
}

// Contains reports whether item is queued.
func (q *DeleteQueue) Contains(item *Item) bool {
	_, ok := q.seen[item]
	return ok
}

// Len returns the number of queued items.
func (q *DeleteQueue) Len() int { return len(q.items) }

// Items returns the queued items in push order.
func (q *DeleteQueue) Items() []*Item { return q.items }

// FollowRedone resolves id through the chain of redone replacements and
// returns the last struct of the chain together with the offset of the
// resolved clock inside it. A nil struct means id is unknown.
func FollowRedone(store *StructStore, id ID) (Struct, uint64) {
	next := &id
	var diff uint64
	var st Struct
	for next != nil {
		target := *next
		if diff > 0 {
			target.Clock += diff
		}
		st = store.Find(target)
		if st == nil {
			return nil, 0
		}
		diff = target.Clock - st.ID().Clock
		item, ok := st.(*Item)
		if !ok {
			break
		}
		next = item.redone
	}
	return st, diff
}

// Redo restores a deleted item by inserting a copy of its content at its
// original position, and returns the copy. The copy belongs to the local
// client.
//
// redoSet holds every item being restored in the same unit; a deleted
// parent is restored first if it is part of the set, otherwise the item
// cannot be restored. queue holds the items the unit will delete: a map
// entry is only restored when every later value written under its key is
// queued or was itself replaced, unless ignoreRemoteMapChanges is set.
//
// Redo returns nil when the item cannot be restored, including when its
// content was garbage collected.
func Redo(tx *Transaction, item *Item, redoSet map[*Item]struct{}, queue *DeleteQueue, ignoreRemoteMapChanges bool) *Item {
	store := tx.doc.store
	if item.redone != nil {
		return store.CleanStart(tx, *item.redone)
	}
	if _, collected := item.content.(*ContentDeleted); collected {
		return nil
	}

	parentItem := item.parent.item
	if parentItem != nil && parentItem.deleted {
		if parentItem.redone == nil {
			if _, ok := redoSet[parentItem]; !ok {
				return nil
			}
			if Redo(tx, parentItem, redoSet, queue, ignoreRemoteMapChanges) == nil {
				return nil
			}
		}
		for parentItem.redone != nil {
			next := store.CleanStart(tx, *parentItem.redone)
			if next == nil {
				return nil
			}
			parentItem = next
		}
	}

	parent := item.parent
	if parentItem != nil {
		ct, ok := parentItem.content.(*ContentType)
		if !ok {
			return nil
		}
		parent = ct.typ
	}

	var left, right *Item
	if item.parentSub == "" {
		left = item.left
		for left != nil {
			if trace := traceToParent(tx, left, parentItem); trace != nil {
				left = trace
				break
			}
			left = left.left
		}
		right = item
		for right != nil {
			if trace := traceToParent(tx, right, parentItem); trace != nil {
				right = trace
				break
			}
			right = right.right
		}
	} else if parent == item.parent && item.right != nil && !ignoreRemoteMapChanges {
		left = item
		for left != nil && left.right != nil && (left.right.redone != nil || queue.Contains(left.right)) {
			left = left.right
			for left != nil && left.redone != nil {
				left = store.CleanStart(tx, *left.redone)
			}
		}
		if left != nil && left.right != nil {
			// A later value written by someone else wins.
			return nil
		}
	} else {
		left = parent.entries[item.parentSub]
	}

	redone := &Item{
		id:        ID{tx.doc.clientID, tx.nextClock()},
		left:      left,
		right:     right,
		parent:    parent,
		parentSub: item.parentSub,
		content:   item.content.Copy(),
	}
	redone.length = redone.content.Len()
	if left != nil {
		last := left.LastID()
		redone.origin = &last
	}
	if right != nil {
		ro := right.id
		redone.rightOrigin = &ro
	}

	prev := item.redone
	rid := redone.id
	item.redone = &rid
	tx.journal.record(func() { item.redone = prev })

	redone.integrate(tx, 0)
	return redone
}

// traceToParent follows n through its redone chain until it reaches an
// item whose parent is held by parentItem.
func traceToParent(tx *Transaction, n *Item, parentItem *Item) *Item {
	for n != nil && n.parent.item != parentItem {
		if n.redone == nil {
			return nil
		}
		n = tx.doc.store.CleanStart(tx, *n.redone)
	}
	return n
}
