package engine

import (
	"fmt"
	"sort"
	"strings"
)

// TypeKind identifies the shape of a shared type.
type TypeKind int

// Shared type kinds.
const (
	KindArray TypeKind = iota
	KindText
	KindMap
)

// String returns the kind name.
func (k TypeKind) String() string {
	switch k {
	case KindArray:
		return "array"
	case KindText:
		return "text"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("TypeKind(%d)", int(k))
	}
}

const maxSearchMarkers = 8

// searchMarker remembers the index at which an item starts.
type searchMarker struct {
	item  *Item
	index uint64
}

// Type is a shared collection: a sequence (array or text) with optional
// keyed entries (map). Root types belong to a Doc by name; nested types are
// created with NewArray, NewText or NewMap and inserted as values.
type Type struct {
	kind    TypeKind
	doc     *Doc
	name    string
	item    *Item
	start   *Item
	entries map[string]*Item
	length  uint64
	markers []searchMarker
}

func newType(kind TypeKind) *Type {
	return &Type{kind: kind, entries: make(map[string]*Item)}
}

// NewArray creates an unattached array type for insertion as a value.
func NewArray() *Type { return newType(KindArray) }

// NewText creates an unattached text type for insertion as a value.
func NewText() *Type { return newType(KindText) }

// NewMap creates an unattached map type for insertion as a value.
func NewMap() *Type { return newType(KindMap) }

// Kind returns the type kind.
func (t *Type) Kind() TypeKind { return t.kind }

// Doc returns the owning document, or nil for an unattached type.
func (t *Type) Doc() *Doc { return t.doc }

// Name returns the root name, or "" for nested types.
func (t *Type) Name() string { return t.name }

// Item returns the item holding a nested type, or nil for roots.
func (t *Type) Item() *Item { return t.item }

// First returns the first item of the sequence, deleted or not.
func (t *Type) First() *Item { return t.start }

// Len returns the number of visible sequence elements.
func (t *Type) Len() uint64 { return t.length }

// Path returns a readable location such as "list[3:7].title".
func (t *Type) Path() string {
	if t.item == nil {
		return t.name
	}
	parent := t.item.parent.Path()
	if t.item.parentSub != "" {
		return parent + "." + t.item.parentSub
	}
	return fmt.Sprintf("%s[%s]", parent, t.item.id)
}

func (t *Type) checkTx(tx *Transaction) error {
	if t.doc == nil {
		return ErrNotIntegrated
	}
	if tx.doc != t.doc {
		return ErrForeignTransaction
	}
	return nil
}

// Insert inserts values at index. *Type values are embedded as nested
// types and must not already be attached to a document.
func (t *Type) Insert(tx *Transaction, index uint64, values ...any) error {
	if err := t.checkTx(tx); err != nil {
		return err
	}
	if index > t.length {
		return fmt.Errorf("%w: insert at %d, length %d", ErrIndexOutOfRange, index, t.length)
	}
	contents, err := toContents(values)
	if err != nil {
		return err
	}
	left := t.itemBefore(tx, index)
	t.insertAfter(tx, left, contents...)
	t.ClearSearchMarkers()
	return nil
}

// InsertString inserts text at index.
func (t *Type) InsertString(tx *Transaction, index uint64, s string) error {
	if err := t.checkTx(tx); err != nil {
		return err
	}
	if index > t.length {
		return fmt.Errorf("%w: insert at %d, length %d", ErrIndexOutOfRange, index, t.length)
	}
	if s == "" {
		return nil
	}
	left := t.itemBefore(tx, index)
	t.insertAfter(tx, left, NewContentString(s))
	t.ClearSearchMarkers()
	return nil
}

// Push appends values to the end of the sequence.
func (t *Type) Push(tx *Transaction, values ...any) error {
	return t.Insert(tx, t.length, values...)
}

// Delete removes length elements starting at index.
func (t *Type) Delete(tx *Transaction, index, length uint64) error {
	if err := t.checkTx(tx); err != nil {
		return err
	}
	if index+length > t.length {
		return fmt.Errorf("%w: delete %d at %d, length %d", ErrIndexOutOfRange, length, index, t.length)
	}
	if length == 0 {
		return nil
	}
	left := t.itemBefore(tx, index)
	n := t.start
	if left != nil {
		n = left.right
	}
	for ; n != nil && length > 0; n = n.right {
		if n.deleted || !n.Countable() {
			continue
		}
		if n.length > length {
			tx.doc.store.CleanStart(tx, ID{n.id.Client, n.id.Clock + length})
		}
		length -= n.length
		n.Delete(tx)
	}
	t.ClearSearchMarkers()
	return nil
}

// Set writes value under key.
func (t *Type) Set(tx *Transaction, key string, value any) error {
	if err := t.checkTx(tx); err != nil {
		return err
	}
	if key == "" {
		return ErrEmptyKey
	}
	contents, err := toContents([]any{value})
	if err != nil {
		return err
	}
	left := t.entries[key]
	item := &Item{
		id:        ID{tx.doc.clientID, tx.nextClock()},
		left:      left,
		parent:    t,
		parentSub: key,
		content:   contents[0],
		length:    contents[0].Len(),
	}
	if left != nil {
		last := left.LastID()
		item.origin = &last
	}
	item.integrate(tx, 0)
	return nil
}

// Get returns the value stored under key.
func (t *Type) Get(key string) (any, bool) {
	item := t.entries[key]
	if item == nil || item.deleted {
		return nil, false
	}
	values := item.content.Values()
	if len(values) == 0 {
		return nil, false
	}
	return values[len(values)-1], true
}

// DeleteKey removes key. Missing keys are ignored.
func (t *Type) DeleteKey(tx *Transaction, key string) error {
	if err := t.checkTx(tx); err != nil {
		return err
	}
	if item := t.entries[key]; item != nil && !item.deleted {
		item.Delete(tx)
	}
	return nil
}

// Keys returns the live keys in sorted order.
func (t *Type) Keys() []string {
	keys := make([]string, 0, len(t.entries))
	for k, item := range t.entries {
		if !item.deleted {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Entry returns the current item for key, deleted or not.
func (t *Type) Entry(key string) *Item {
	return t.entries[key]
}

// ToSlice returns the visible sequence values.
func (t *Type) ToSlice() []any {
	var out []any
	for n := t.start; n != nil; n = n.right {
		if !n.deleted && n.Countable() {
			out = append(out, n.content.Values()...)
		}
	}
	return out
}

// At returns the value at index in a sequence.
func (t *Type) At(index uint64) (any, bool) {
	if index >= t.length {
		return nil, false
	}
	n, start := t.findItem(index)
	if n == nil {
		return nil, false
	}
	return n.content.Values()[index-start], true
}

// String renders text types as their text and other types as JSON-like
// values.
func (t *Type) String() string {
	if t.kind == KindText {
		var sb strings.Builder
		for n := t.start; n != nil; n = n.right {
			if n.deleted {
				continue
			}
			if cs, ok := n.content.(*ContentString); ok {
				sb.WriteString(cs.String())
			}
		}
		return sb.String()
	}
	return fmt.Sprint(t.ToJSONValue())
}

// ToJSONValue converts the type into plain Go values: []any for arrays,
// string for text and map[string]any for maps.
func (t *Type) ToJSONValue() any {
	switch t.kind {
	case KindText:
		return t.String()
	case KindMap:
		out := make(map[string]any)
		for _, k := range t.Keys() {
			v, _ := t.Get(k)
			out[k] = jsonValue(v)
		}
		return out
	default:
		values := t.ToSlice()
		out := make([]any, len(values))
		for i, v := range values {
			out[i] = jsonValue(v)
		}
		return out
	}
}

func jsonValue(v any) any {
	if nested, ok := v.(*Type); ok {
		return nested.ToJSONValue()
	}
	return v
}

// ClearSearchMarkers drops the cached index positions of the type.
func (t *Type) ClearSearchMarkers() {
	t.markers = t.markers[:0]
}

// SearchMarkers returns the number of cached index positions.
func (t *Type) SearchMarkers() int {
	return len(t.markers)
}

// findItem returns the visible item covering index and the index at which
// it starts.
func (t *Type) findItem(index uint64) (*Item, uint64) {
	n, pos := t.start, uint64(0)
	for _, m := range t.markers {
		if m.index <= index && m.index >= pos {
			n, pos = m.item, m.index
		}
	}
	for ; n != nil; n = n.right {
		if n.deleted || !n.Countable() {
			continue
		}
		if index < pos+n.length {
			t.remember(n, pos)
			return n, pos
		}
		pos += n.length
	}
	return nil, 0
}

func (t *Type) remember(item *Item, index uint64) {
	for i := range t.markers {
		if t.markers[i].item == item {
			t.markers[i].index = index
			return
		}
	}
	if len(t.markers) >= maxSearchMarkers {
		t.markers = t.markers[1:]
	}
	t.markers = append(t.markers, searchMarker{item: item, index: index})
}

// itemBefore returns the item that ends exactly at index, splitting as
// needed, or nil when index is 0.
func (t *Type) itemBefore(tx *Transaction, index uint64) *Item {
	if index == 0 {
		return nil
	}
	n, start := t.findItem(index - 1)
	if n == nil {
		return nil
	}
	if end := index - start; end < n.length {
		tx.doc.store.CleanStart(tx, ID{n.id.Client, n.id.Clock + end})
	}
	return n
}

func (t *Type) insertAfter(tx *Transaction, left *Item, contents ...Content) {
	right := t.start
	if left != nil {
		right = left.right
	}
	for _, c := range contents {
		item := &Item{
			id:      ID{tx.doc.clientID, tx.nextClock()},
			left:    left,
			right:   right,
			parent:  t,
			content: c,
			length:  c.Len(),
		}
		if left != nil {
			last := left.LastID()
			item.origin = &last
		}
		if right != nil {
			rid := right.id
			item.rightOrigin = &rid
		}
		item.integrate(tx, 0)
		left = item
	}
}

// toContents groups plain values into ContentAny runs and wraps nested
// types in ContentType.
func toContents(values []any) ([]Content, error) {
	var out []Content
	var run []any
	flush := func() {
		if len(run) > 0 {
			out = append(out, NewContentAny(run...))
			run = nil
		}
	}
	for _, v := range values {
		nested, ok := v.(*Type)
		if !ok {
			run = append(run, v)
			continue
		}
		if nested.doc != nil {
			return nil, ErrTypeAttached
		}
		flush()
		out = append(out, &ContentType{typ: nested})
	}
	flush()
	return out, nil
}

// sortTypes orders types deterministically: roots by name, then nested
// types by the id of their item.
func sortTypes(set map[*Type]map[string]struct{}) []*Type {
	out := make([]*Type, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.item == nil) != (b.item == nil) {
			return a.item == nil
		}
		if a.item == nil {
			return a.name < b.name
		}
		if a.item.id.Client != b.item.id.Client {
			return a.item.id.Client < b.item.id.Client
		}
		return a.item.id.Clock < b.item.id.Clock
	})
	return out
}
