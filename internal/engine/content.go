package engine

// Content is the payload carried by an Item.
//
// Content is a closed set: ContentAny, ContentString, ContentType and
// ContentDeleted.
type Content interface {
	// Len returns the number of clocks the content occupies.
	Len() uint64

	// Countable reports whether the content contributes to its parent's length.
	Countable() bool

	// Copy returns an independent copy. Nested types are copied as new
	// empty types of the same kind.
	Copy() Content

	// Splice keeps [0, offset) in the receiver and returns the rest.
	Splice(offset uint64) Content

	// Values returns the user-visible values held by the content.
	Values() []any

	// mergeWith appends right to the receiver if both are of the same kind.
	mergeWith(right Content) bool
	integrate(tx *Transaction, item *Item)
	delete(tx *Transaction)
	gc(store *StructStore)
}

// ContentAny holds arbitrary values, one clock each.
type ContentAny struct {
	values []any
}

// NewContentAny wraps values.
func NewContentAny(values ...any) *ContentAny {
	return &ContentAny{values: append([]any(nil), values...)}
}

func (c *ContentAny) Len() uint64     { return uint64(len(c.values)) }
func (c *ContentAny) Countable() bool { return true }
func (c *ContentAny) Values() []any   { return c.values }

func (c *ContentAny) Copy() Content {
	return NewContentAny(c.values...)
}

func (c *ContentAny) Splice(offset uint64) Content {
	right := &ContentAny{values: append([]any(nil), c.values[offset:]...)}
	c.values = c.values[:offset:offset]
	return right
}

func (c *ContentAny) mergeWith(right Content) bool {
	r, ok := right.(*ContentAny)
	if !ok {
		return false
	}
	c.values = append(c.values, r.values...)
	return true
}

func (c *ContentAny) integrate(*Transaction, *Item) {}
func (c *ContentAny) delete(*Transaction)           {}
func (c *ContentAny) gc(*StructStore)               {}

// ContentString holds text, one clock per rune.
type ContentString struct {
	runes []rune
}

// NewContentString wraps s.
func NewContentString(s string) *ContentString {
	return &ContentString{runes: []rune(s)}
}

func (c *ContentString) Len() uint64     { return uint64(len(c.runes)) }
func (c *ContentString) Countable() bool { return true }

// String returns the text.
func (c *ContentString) String() string { return string(c.runes) }

func (c *ContentString) Values() []any {
	out := make([]any, len(c.runes))
	for i, r := range c.runes {
		out[i] = string(r)
	}
	return out
}

func (c *ContentString) Copy() Content {
	return &ContentString{runes: append([]rune(nil), c.runes...)}
}

func (c *ContentString) Splice(offset uint64) Content {
	right := &ContentString{runes: append([]rune(nil), c.runes[offset:]...)}
	c.runes = c.runes[:offset:offset]
	return right
}

func (c *ContentString) mergeWith(right Content) bool {
	r, ok := right.(*ContentString)
	if !ok {
		return false
	}
	c.runes = append(c.runes, r.runes...)
	return true
}

func (c *ContentString) integrate(*Transaction, *Item) {}
func (c *ContentString) delete(*Transaction)           {}
func (c *ContentString) gc(*StructStore)               {}

// ContentType holds a nested shared type.
type ContentType struct {
	typ *Type
}

// Type returns the nested type.
func (c *ContentType) Type() *Type { return c.typ }

func (c *ContentType) Len() uint64     { return 1 }
func (c *ContentType) Countable() bool { return true }
func (c *ContentType) Values() []any   { return []any{c.typ} }

func (c *ContentType) Copy() Content {
	return &ContentType{typ: newType(c.typ.kind)}
}

func (c *ContentType) Splice(uint64) Content {
	panic("engine: nested type content cannot be split")
}

func (c *ContentType) mergeWith(Content) bool { return false }

func (c *ContentType) integrate(tx *Transaction, item *Item) {
	c.typ.doc = tx.doc
	c.typ.item = item
}

func (c *ContentType) delete(tx *Transaction) {
	for n := c.typ.start; n != nil; n = n.right {
		if !n.deleted {
			n.Delete(tx)
		}
	}
	for _, last := range c.typ.entries {
		if !last.deleted {
			last.Delete(tx)
		}
	}
	delete(tx.changed, c.typ)
}

func (c *ContentType) gc(store *StructStore) {
	for n := c.typ.start; n != nil; n = n.right {
		n.gc(store, true)
	}
	c.typ.start = nil
	for _, last := range c.typ.entries {
		for n := last; n != nil; n = n.left {
			n.gc(store, true)
		}
	}
	c.typ.entries = make(map[string]*Item)
}

// ContentDeleted replaces the payload of a garbage-collected item.
type ContentDeleted struct {
	length uint64
}

func (c *ContentDeleted) Len() uint64     { return c.length }
func (c *ContentDeleted) Countable() bool { return false }
func (c *ContentDeleted) Values() []any   { return nil }

func (c *ContentDeleted) Copy() Content {
	return &ContentDeleted{length: c.length}
}

func (c *ContentDeleted) Splice(offset uint64) Content {
	right := &ContentDeleted{length: c.length - offset}
	c.length = offset
	return right
}

func (c *ContentDeleted) mergeWith(right Content) bool {
	r, ok := right.(*ContentDeleted)
	if !ok {
		return false
	}
	c.length += r.length
	return true
}

func (c *ContentDeleted) integrate(*Transaction, *Item) {}
func (c *ContentDeleted) delete(*Transaction)           {}
func (c *ContentDeleted) gc(*StructStore)               {}
