package lua

import (
	"fmt"
	"sort"

	"github.com/dshills/ydoc/internal/engine"
	lua "github.com/yuin/gopher-lua"
)

// Bridge converts document values to Lua values.
type Bridge struct {
	L *lua.LState
}

// NewBridge creates a new Bridge for the given Lua state.
func NewBridge(L *lua.LState) *Bridge {
	return &Bridge{L: L}
}

// ToLuaValue converts a Go value to a Lua value. Shared types become
// their kind name.
func (b *Bridge) ToLuaValue(v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		t := b.L.CreateTable(len(val), 0)
		for _, e := range val {
			t.Append(b.ToLuaValue(e))
		}
		return t
	case map[string]any:
		t := b.L.CreateTable(0, len(val))
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t.RawSetString(k, b.ToLuaValue(val[k]))
		}
		return t
	case *engine.Type:
		return lua.LString(val.Kind().String())
	case lua.LValue:
		return val
	default:
		return lua.LString(fmt.Sprint(val))
	}
}

// ItemTable describes an item as the table passed to filter.
func (b *Bridge) ItemTable(item *engine.Item) *lua.LTable {
	t := b.L.CreateTable(0, 7)
	id := item.ID()
	t.RawSetString("client", lua.LNumber(id.Client))
	t.RawSetString("clock", lua.LNumber(id.Clock))
	t.RawSetString("length", lua.LNumber(item.Len()))

	kind, value := describeContent(item.Content())
	t.RawSetString("kind", lua.LString(kind))
	t.RawSetString("value", b.ToLuaValue(value))

	if p := item.Parent(); p != nil {
		t.RawSetString("parent", lua.LString(p.Path()))
	}
	if key := item.ParentSub(); key != "" {
		t.RawSetString("key", lua.LString(key))
	}
	return t
}

func describeContent(c engine.Content) (string, any) {
	switch c := c.(type) {
	case *engine.ContentString:
		return "string", c.String()
	case *engine.ContentAny:
		return "any", c.Values()
	case *engine.ContentType:
		return "type", c.Type()
	default:
		return "deleted", nil
	}
}
