package lua

import (
	"fmt"

	"github.com/dshills/ydoc/internal/engine"
	lua "github.com/yuin/gopher-lua"
)

// FilterFunc is the global function a delete filter script defines.
const FilterFunc = "filter"

// DeleteFilter decides with a Lua function whether an undo may delete an
// item. Its Filter method satisfies history.DeleteFilter.
type DeleteFilter struct {
	state  *State
	bridge *Bridge
}

// NewDeleteFilter compiles src, which must define a global function
// filter(item).
func NewDeleteFilter(src string, opts ...StateOption) (*DeleteFilter, error) {
	state := NewState(opts...)
	if err := state.DoString(src); err != nil {
		state.Close()
		return nil, fmt.Errorf("compile delete filter: %w", err)
	}
	if state.GetGlobal(FilterFunc).Type() != lua.LTFunction {
		state.Close()
		return nil, ErrNoFilterFunc
	}
	return &DeleteFilter{state: state, bridge: NewBridge(state.L)}, nil
}

// Filter reports whether item may be deleted. nil and false keep it;
// any other value allows the deletion.
func (f *DeleteFilter) Filter(item *engine.Item) (bool, error) {
	ret, err := f.state.Call(FilterFunc, f.bridge.ItemTable(item))
	if err != nil {
		return false, fmt.Errorf("lua filter: %w", err)
	}
	return lua.LVAsBool(ret), nil
}

// Close releases the Lua state.
func (f *DeleteFilter) Close() error {
	return f.state.Close()
}
