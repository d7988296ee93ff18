package engine

import (
	"fmt"
	"sort"
)

// ID identifies a struct by the replica that created it and its clock.
type ID struct {
	Client uint64
	Clock  uint64
}

// String returns "client:clock".
func (id ID) String() string {
	return fmt.Sprintf("%d:%d", id.Client, id.Clock)
}

func idPtr(client, clock uint64) *ID {
	return &ID{Client: client, Clock: clock}
}

func sameID(a, b *ID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// StateVector maps each client to the next clock it will allocate.
type StateVector map[uint64]uint64

// Get returns the clock for client, zero if unknown.
func (sv StateVector) Get(client uint64) uint64 {
	return sv[client]
}

// Clone returns a copy of the vector.
func (sv StateVector) Clone() StateVector {
	out := make(StateVector, len(sv))
	for k, v := range sv {
		out[k] = v
	}
	return out
}

// Clients returns the clients in ascending order.
func (sv StateVector) Clients() []uint64 {
	clients := make([]uint64, 0, len(sv))
	for c := range sv {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i] < clients[j] })
	return clients
}
