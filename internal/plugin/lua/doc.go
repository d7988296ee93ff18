// Package lua runs user-supplied Lua snippets inside a sandboxed
// gopher-lua state.
//
// The sandbox opens only the base, table, string and math libraries,
// removes the chunk loaders and restricts require to those libraries.
// Each call runs under a deadline.
//
// The main user is the scripted delete filter of the undo manager:
//
//	f, err := lua.NewDeleteFilter(`
//	    function filter(item)
//	        return item.kind ~= "type"
//	    end
//	`)
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//	um, err := history.NewUndoManager(doc, scope, history.WithDeleteFilter(f.Filter))
//
// filter receives a table describing the item about to be deleted:
//
//	client  replica id of the item
//	clock   clock of its first element
//	length  number of elements
//	kind    "string", "any", "type" or "deleted"
//	parent  path of the parent type
//	key     map key, nil for sequence items
//	value   the content: a string, an array of values or the nested type's kind
//
// Returning false (or nil) keeps the item; raising an error aborts the undo.
package lua
