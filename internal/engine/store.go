package engine

import (
	"fmt"
	"sort"

	"github.com/dshills/ydoc/internal/engine/deleteset"
)

// StructStore holds every struct of a document, ordered by clock per client.
type StructStore struct {
	clients map[uint64][]Struct
}

func newStructStore() *StructStore {
	return &StructStore{clients: make(map[uint64][]Struct)}
}

// State returns the next clock expected from client.
func (s *StructStore) State(client uint64) uint64 {
	structs := s.clients[client]
	if len(structs) == 0 {
		return 0
	}
	last := structs[len(structs)-1]
	return last.ID().Clock + last.Len()
}

// StateVector returns the state of every known client.
func (s *StructStore) StateVector() StateVector {
	sv := make(StateVector, len(s.clients))
	for client := range s.clients {
		sv[client] = s.State(client)
	}
	return sv
}

// Structs returns the structs of client in clock order.
// The returned slice must not be modified.
func (s *StructStore) Structs(client uint64) []Struct {
	return s.clients[client]
}

func (s *StructStore) add(st Struct) {
	id := st.ID()
	if state := s.State(id.Client); id.Clock != state {
		panic(fmt.Sprintf("engine: struct %s added out of order (expected clock %d)", id, state))
	}
	s.clients[id.Client] = append(s.clients[id.Client], st)
}

// remove deletes st from the store. Used by rollback only.
func (s *StructStore) remove(st Struct) {
	id := st.ID()
	structs := s.clients[id.Client]
	i := findIndex(structs, id.Clock)
	if i < 0 || structs[i] != st {
		return
	}
	s.clients[id.Client] = append(structs[:i], structs[i+1:]...)
	if len(s.clients[id.Client]) == 0 {
		delete(s.clients, id.Client)
	}
}

func (s *StructStore) replace(old, next Struct) {
	id := old.ID()
	structs := s.clients[id.Client]
	if i := findIndex(structs, id.Clock); i >= 0 && structs[i] == old {
		structs[i] = next
	}
}

// findIndex returns the index of the struct covering clock, or -1.
func findIndex(structs []Struct, clock uint64) int {
	i := sort.Search(len(structs), func(i int) bool {
		st := structs[i]
		return st.ID().Clock+st.Len() > clock
	})
	if i < len(structs) && structs[i].ID().Clock <= clock {
		return i
	}
	return -1
}

// Find returns the struct covering id, or nil if the store has no such clock.
func (s *StructStore) Find(id ID) Struct {
	structs := s.clients[id.Client]
	if i := findIndex(structs, id.Clock); i >= 0 {
		return structs[i]
	}
	return nil
}

// CleanStart returns the item starting exactly at id, splitting the item
// that covers it if necessary. It returns nil if id is unknown or
// collected.
func (s *StructStore) CleanStart(tx *Transaction, id ID) *Item {
	st := s.Find(id)
	item, ok := st.(*Item)
	if !ok {
		return nil
	}
	if item.id.Clock < id.Clock {
		return s.insertSplit(tx, item, id.Clock-item.id.Clock)
	}
	return item
}

// CleanEnd returns the item ending exactly at id, splitting the item that
// covers it if necessary. It returns nil if id is unknown or collected.
func (s *StructStore) CleanEnd(tx *Transaction, id ID) *Item {
	st := s.Find(id)
	item, ok := st.(*Item)
	if !ok {
		return nil
	}
	if id.Clock != item.id.Clock+item.length-1 {
		s.insertSplit(tx, item, id.Clock-item.id.Clock+1)
	}
	return item
}

func (s *StructStore) insertSplit(tx *Transaction, item *Item, diff uint64) *Item {
	right := item.split(tx, diff)
	structs := s.clients[item.id.Client]
	i := findIndex(structs, item.id.Clock)
	structs = append(structs, nil)
	copy(structs[i+2:], structs[i+1:])
	structs[i+1] = right
	s.clients[item.id.Client] = structs
	return right
}

// IterateDeletedStructs calls fn for every struct covered by ds, splitting
// items at range boundaries so each struct lies wholly inside a range.
// Collected structs are passed as *GC and never split.
//
// It fails with ErrMissingStruct when a range reaches past the clocks the
// store knows for its client.
func IterateDeletedStructs(tx *Transaction, ds *deleteset.DeleteSet, fn func(Struct) error) error {
	store := tx.doc.store
	for _, client := range ds.Clients() {
		for _, r := range ds.Ranges(client) {
			if r.End() > store.State(client) {
				return fmt.Errorf("%w: %d:%d+%d", ErrMissingStruct, client, r.Clock, r.Len)
			}
			clock := r.Clock
			for clock < r.End() {
				st := store.Find(ID{client, clock})
				if item, ok := st.(*Item); ok {
					if item.id.Clock < clock {
						item = store.CleanStart(tx, ID{client, clock})
					}
					if item.id.Clock+item.length > r.End() {
						store.CleanStart(tx, ID{client, r.End()})
					}
					st = item
				}
				if err := fn(st); err != nil {
					return err
				}
				clock = st.ID().Clock + st.Len()
			}
		}
	}
	return nil
}
