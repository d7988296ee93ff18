package engine

import (
	"github.com/dshills/ydoc/internal/engine/deleteset"
)

// Tagged is implemented by origins that belong to a category. The tag is
// read once, when the transaction is created.
type Tagged interface {
	OriginTag() string
}

// Transaction is one atomic batch of changes to a Doc.
type Transaction struct {
	doc         *Doc
	origin      any
	tag         string
	local       bool
	beforeState StateVector
	afterState  StateVector
	deletions   *deleteset.DeleteSet

	// changed maps each type whose content changed to the keys that
	// changed; "" marks a sequence change.
	changed map[*Type]map[string]struct{}

	changedParents     map[*Type]struct{}
	changedParentOrder []*Type

	journal journal
}

func newTransaction(doc *Doc, origin any, local bool) *Transaction {
	tx := &Transaction{
		doc:         doc,
		origin:      origin,
		local:       local,
		beforeState: doc.store.StateVector(),
		deletions:   deleteset.New(),
		changed:     make(map[*Type]map[string]struct{}),
	}
	if t, ok := origin.(Tagged); ok {
		tx.tag = t.OriginTag()
	}
	return tx
}

// Doc returns the document the transaction runs on.
func (tx *Transaction) Doc() *Doc { return tx.doc }

// Origin returns the value passed to Transact.
func (tx *Transaction) Origin() any { return tx.origin }

// OriginTag returns the category of the origin, or "" if it has none.
func (tx *Transaction) OriginTag() string { return tx.tag }

// Local reports whether the changes were made on this replica.
func (tx *Transaction) Local() bool { return tx.local }

// BeforeState returns the state vector at the start of the transaction.
func (tx *Transaction) BeforeState() StateVector { return tx.beforeState }

// AfterState returns the state vector at commit. It is nil until the
// transaction commits.
func (tx *Transaction) AfterState() StateVector { return tx.afterState }

// Deletions returns the structs deleted by the transaction.
func (tx *Transaction) Deletions() *deleteset.DeleteSet { return tx.deletions }

// ChangedParentTypes returns every changed type and all of its ancestors,
// in discovery order. Only available after commit.
func (tx *Transaction) ChangedParentTypes() []*Type {
	return tx.changedParentOrder
}

// HasChangedParent reports whether t is among the changed parent types.
func (tx *Transaction) HasChangedParent(t *Type) bool {
	_, ok := tx.changedParents[t]
	return ok
}

// SequenceChanged reports whether the list content of t changed.
func (tx *Transaction) SequenceChanged(t *Type) bool {
	keys, ok := tx.changed[t]
	if !ok {
		return false
	}
	_, ok = keys[""]
	return ok
}

// ChangedTypes returns the types whose own content changed.
func (tx *Transaction) ChangedTypes() []*Type {
	return sortTypes(tx.changed)
}

// addChangedType records a change to t. Changes to types created in this
// same transaction are not reported.
func (tx *Transaction) addChangedType(t *Type, parentSub string) {
	item := t.item
	if item != nil && (item.id.Clock >= tx.beforeState.Get(item.id.Client) || item.deleted) {
		return
	}
	keys, ok := tx.changed[t]
	if !ok {
		keys = make(map[string]struct{})
		tx.changed[t] = keys
	}
	keys[parentSub] = struct{}{}
}

func (tx *Transaction) computeChangedParents() {
	tx.changedParents = make(map[*Type]struct{})
	tx.changedParentOrder = nil
	for _, t := range sortTypes(tx.changed) {
		for p := t; p != nil; {
			if _, ok := tx.changedParents[p]; ok {
				break
			}
			tx.changedParents[p] = struct{}{}
			tx.changedParentOrder = append(tx.changedParentOrder, p)
			if p.item == nil {
				break
			}
			p = p.item.parent
		}
	}
}

// nextClock returns the next clock for the local client.
func (tx *Transaction) nextClock() uint64 {
	return tx.doc.store.State(tx.doc.clientID)
}

// journal records inverse steps for every structural change so a failed
// transaction can be undone.
type journal struct {
	steps []func()
}

func (j *journal) record(step func()) {
	j.steps = append(j.steps, step)
}

func (j *journal) rollback() {
	for i := len(j.steps) - 1; i >= 0; i-- {
		j.steps[i]()
	}
	j.steps = nil
}

func (j *journal) len() int {
	return len(j.steps)
}
