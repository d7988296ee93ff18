package history

import "github.com/dshills/ydoc/internal/engine"

// Direction tells which stack an event concerns.
type Direction string

const (
	// DirectionUndo refers to the undo stack.
	DirectionUndo Direction = "undo"
	// DirectionRedo refers to the redo stack.
	DirectionRedo Direction = "redo"
)

// StackItemEvent is passed to stack item handlers.
type StackItemEvent struct {
	// StackItem is the item that was added, extended or popped.
	StackItem *StackItem

	// Origin is the origin of the transaction that caused the event.
	// For popped items it is the manager itself.
	Origin any

	// Direction is the stack the item was added to, or popped from.
	Direction Direction

	// ChangedParentTypes are the types touched by the transaction.
	ChangedParentTypes []*engine.Type

	// Merged is true when the transaction was merged into the existing
	// top item instead of pushing a new one.
	Merged bool
}

// StackItemHandler receives stack item events.
type StackItemHandler func(StackItemEvent)

// registry is an ordered list of handlers that can be removed by id.
type registry struct {
	nextID   uint64
	handlers []registeredHandler
}

type registeredHandler struct {
	id uint64
	fn StackItemHandler
}

func (r *registry) add(fn StackItemHandler) func() {
	r.nextID++
	id := r.nextID
	r.handlers = append(r.handlers, registeredHandler{id: id, fn: fn})
	return func() {
		for i, h := range r.handlers {
			if h.id == id {
				r.handlers = append(r.handlers[:i:i], r.handlers[i+1:]...)
				return
			}
		}
	}
}

func (r *registry) emit(ev StackItemEvent) {
	handlers := append([]registeredHandler(nil), r.handlers...)
	for _, h := range handlers {
		h.fn(ev)
	}
}

func (r *registry) reset() {
	r.handlers = nil
}

// OnStackItemAdded registers fn to run whenever a captured transaction
// adds or extends a stack item. The returned function removes it.
func (um *UndoManager) OnStackItemAdded(fn StackItemHandler) (cancel func()) {
	return um.added.add(fn)
}

// OnStackItemPopped registers fn to run whenever Undo or Redo inverts a
// stack item. The returned function removes it.
func (um *UndoManager) OnStackItemPopped(fn StackItemHandler) (cancel func()) {
	return um.popped.add(fn)
}
