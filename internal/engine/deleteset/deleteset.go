// Package deleteset implements range-based id sets keyed by replica.
//
// A DeleteSet maps a client (replica) id to a sorted list of clock ranges.
// The engine records the structs removed by a transaction in one; the undo
// history reuses the same shape to describe structs inserted by a
// transaction, since both are just "which ids were touched".
//
// Ranges are appended unsorted while a transaction runs and normalized with
// SortAndMerge before anyone queries them. Contains and Ranges assume a
// normalized set.
package deleteset

import (
	"fmt"
	"sort"
	"strings"
)

// Range is a contiguous span of clocks for one client.
type Range struct {
	Clock uint64
	Len   uint64
}

// End returns the first clock after the range.
func (r Range) End() uint64 {
	return r.Clock + r.Len
}

// Contains returns true if clock falls inside the range.
func (r Range) Contains(clock uint64) bool {
	return clock >= r.Clock && clock < r.End()
}

// DeleteSet is a per-client collection of clock ranges.
type DeleteSet struct {
	clients map[uint64][]Range
}

// New creates an empty delete set.
func New() *DeleteSet {
	return &DeleteSet{clients: make(map[uint64][]Range)}
}

// Add appends a range for client. Zero-length ranges are ignored.
// Call SortAndMerge before querying the set.
func (ds *DeleteSet) Add(client, clock, length uint64) {
	if length == 0 {
		return
	}
	ds.clients[client] = append(ds.clients[client], Range{Clock: clock, Len: length})
}

// SortAndMerge sorts every client's ranges and coalesces overlapping or
// adjacent ones.
func (ds *DeleteSet) SortAndMerge() {
	for client, ranges := range ds.clients {
		ds.clients[client] = normalize(ranges)
	}
}

func normalize(ranges []Range) []Range {
	if len(ranges) < 2 {
		return ranges
	}
	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].Clock < ranges[j].Clock
	})
	out := ranges[:1]
	for _, r := range ranges[1:] {
		last := &out[len(out)-1]
		if r.Clock <= last.End() {
			if r.End() > last.End() {
				last.Len = r.End() - last.Clock
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// Merge returns the union of the given sets. The inputs are not modified.
// The result is normalized, so merge order never changes the outcome.
func Merge(sets ...*DeleteSet) *DeleteSet {
	result := New()
	for _, ds := range sets {
		if ds == nil {
			continue
		}
		for client, ranges := range ds.clients {
			result.clients[client] = append(result.clients[client], ranges...)
		}
	}
	result.SortAndMerge()
	return result
}

// Contains reports whether (client, clock) lies in one of the ranges.
func (ds *DeleteSet) Contains(client, clock uint64) bool {
	ranges := ds.clients[client]
	i := sort.Search(len(ranges), func(i int) bool {
		return ranges[i].End() > clock
	})
	return i < len(ranges) && ranges[i].Contains(clock)
}

// Clients returns the client ids present in the set in ascending order.
func (ds *DeleteSet) Clients() []uint64 {
	clients := make([]uint64, 0, len(ds.clients))
	for client, ranges := range ds.clients {
		if len(ranges) > 0 {
			clients = append(clients, client)
		}
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i] < clients[j] })
	return clients
}

// Ranges returns the ranges recorded for client.
// The returned slice must not be modified.
func (ds *DeleteSet) Ranges(client uint64) []Range {
	return ds.clients[client]
}

// Each calls fn for every range in client order.
func (ds *DeleteSet) Each(fn func(client uint64, r Range)) {
	for _, client := range ds.Clients() {
		for _, r := range ds.clients[client] {
			fn(client, r)
		}
	}
}

// IsEmpty returns true if no ranges are recorded.
func (ds *DeleteSet) IsEmpty() bool {
	for _, ranges := range ds.clients {
		if len(ranges) > 0 {
			return false
		}
	}
	return true
}

// Size returns the total number of clocks covered by the set.
func (ds *DeleteSet) Size() uint64 {
	var n uint64
	for _, ranges := range ds.clients {
		for _, r := range ranges {
			n += r.Len
		}
	}
	return n
}

// Clone creates a deep copy of the set.
func (ds *DeleteSet) Clone() *DeleteSet {
	clone := New()
	for client, ranges := range ds.clients {
		clone.clients[client] = append([]Range(nil), ranges...)
	}
	return clone
}

// Equal reports whether both normalized sets cover the same ids.
func (ds *DeleteSet) Equal(other *DeleteSet) bool {
	a, b := ds.Clients(), other.Clients()
	if len(a) != len(b) {
		return false
	}
	for i, client := range a {
		if b[i] != client {
			return false
		}
		ra, rb := ds.clients[client], other.clients[client]
		if len(ra) != len(rb) {
			return false
		}
		for j := range ra {
			if ra[j] != rb[j] {
				return false
			}
		}
	}
	return true
}

// String renders the set as "client:[clock+len ...]" groups.
func (ds *DeleteSet) String() string {
	var sb strings.Builder
	for i, client := range ds.Clients() {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d:[", client)
		for j, r := range ds.clients[client] {
			if j > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%d+%d", r.Clock, r.Len)
		}
		sb.WriteByte(']')
	}
	return sb.String()
}
