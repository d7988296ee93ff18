package history

import (
	"reflect"

	"github.com/dshills/ydoc/internal/engine"
)

// OriginSet matches transaction origins either by value or by the category
// tag an origin declares through engine.Tagged.
//
// Values are compared with ==; origins of non-comparable types never match
// by value.
type OriginSet struct {
	Values []any
	Tags   []string
}

// IsEmpty reports whether the set matches nothing.
func (s OriginSet) IsEmpty() bool {
	return len(s.Values) == 0 && len(s.Tags) == 0
}

// originFilter is the compiled form of an OriginSet.
type originFilter struct {
	values map[any]struct{}
	tags   map[string]struct{}
}

func newOriginFilter(s OriginSet) *originFilter {
	f := &originFilter{
		values: make(map[any]struct{}, len(s.Values)),
		tags:   make(map[string]struct{}, len(s.Tags)),
	}
	for _, v := range s.Values {
		f.addValue(v)
	}
	for _, tag := range s.Tags {
		f.tags[tag] = struct{}{}
	}
	return f
}

// matches reports whether the origin of tx, or its tag, is in the set.
func (f *originFilter) matches(tx *engine.Transaction) bool {
	if origin := tx.Origin(); isComparable(origin) {
		if _, ok := f.values[origin]; ok {
			return true
		}
	}
	if tag := tx.OriginTag(); tag != "" {
		_, ok := f.tags[tag]
		return ok
	}
	return false
}

func (f *originFilter) addValue(v any) {
	if isComparable(v) {
		f.values[v] = struct{}{}
	}
}

func (f *originFilter) removeValue(v any) {
	if isComparable(v) {
		delete(f.values, v)
	}
}

func isComparable(v any) bool {
	t := reflect.TypeOf(v)
	return t == nil || t.Comparable()
}
