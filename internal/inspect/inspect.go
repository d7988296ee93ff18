// Package inspect renders document, undo manager and change journal state
// as JSON reports.
package inspect

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/sjson"

	"github.com/dshills/ydoc/internal/engine"
	"github.com/dshills/ydoc/internal/engine/deleteset"
	"github.com/dshills/ydoc/internal/engine/history"
	"github.com/dshills/ydoc/internal/engine/tracking"
)

// Report collects sections into one JSON object.
type Report struct {
	json string
	err  error
}

// New starts an empty report.
func New() *Report {
	return &Report{json: "{}"}
}

func (r *Report) set(path string, value any) {
	if r.err != nil {
		return
	}
	r.json, r.err = sjson.Set(r.json, path, value)
}

func (r *Report) setRaw(path, raw string) {
	if r.err != nil {
		return
	}
	r.json, r.err = sjson.SetRaw(r.json, path, raw)
}

// JSON returns the report and the first error met while building it.
func (r *Report) JSON() (string, error) {
	return r.json, r.err
}

// Document adds a "document" section: ids, state vector and the JSON
// value of every root type.
func (r *Report) Document(doc *engine.Doc) *Report {
	sec, err := Document(doc)
	if err != nil {
		r.err = err
		return r
	}
	r.setRaw("document", sec)
	return r
}

// Manager adds a "history" section describing both stacks of um.
func (r *Report) Manager(um *history.UndoManager) *Report {
	sec, err := Manager(um)
	if err != nil {
		r.err = err
		return r
	}
	r.setRaw("history", sec)
	return r
}

// Journal adds a "journal" section with the latest n tracked changes.
func (r *Report) Journal(tr *tracking.Tracker, n int) *Report {
	sec, err := Journal(tr, n)
	if err != nil {
		r.err = err
		return r
	}
	r.setRaw("journal", sec)
	return r
}

// Document renders doc.
func Document(doc *engine.Doc) (string, error) {
	r := New()
	r.set("guid", doc.GUID())
	r.set("client_id", doc.ClientID())
	r.set("gc", doc.GCEnabled())

	sv := doc.StateVector()
	r.setRaw("state", "[]")
	for _, client := range sv.Clients() {
		r.setRaw("state.-1", fmt.Sprintf(`{"client":%d,"clock":%d}`, client, sv.Get(client)))
	}

	r.setRaw("roots", "{}")
	for _, name := range doc.Roots() {
		t, _ := doc.Lookup(name)
		key := "roots." + escapeKey(name)
		r.set(key+".kind", t.Kind().String())
		r.set(key+".value", t.ToJSONValue())
	}
	return r.JSON()
}

// Manager renders the state of um.
func Manager(um *history.UndoManager) (string, error) {
	r := New()
	r.set("capture_timeout", um.CaptureTimeout().String())
	r.set("undoing", um.Undoing())
	r.set("redoing", um.Redoing())

	scope := make([]string, 0, len(um.Scope()))
	for _, t := range um.Scope() {
		scope = append(scope, t.Path())
	}
	r.set("scope", scope)

	stacks := []struct {
		name  string
		items []*history.StackItem
	}{
		{"undo", um.UndoStack()},
		{"redo", um.RedoStack()},
	}
	for _, st := range stacks {
		r.set(st.name+".depth", len(st.items))
		r.setRaw(st.name+".items", "[]")
		for _, item := range st.items {
			raw, err := StackItem(item)
			if err != nil {
				return "", err
			}
			r.setRaw(st.name+".items.-1", raw)
		}
	}
	return r.JSON()
}

// StackItem renders one stack item.
func StackItem(item *history.StackItem) (string, error) {
	r := New()
	r.setRaw("insertions", Ranges(item.Insertions()))
	r.setRaw("deletions", Ranges(item.Deletions()))
	r.set("created", item.Created().Format(time.RFC3339Nano))
	r.setRaw("meta", "{}")
	for k, v := range item.Meta {
		r.set("meta."+escapeKey(k), v)
	}
	return r.JSON()
}

// Journal renders the latest n changes recorded by tr, oldest first.
func Journal(tr *tracking.Tracker, n int) (string, error) {
	r := New()
	r.set("revision", uint64(tr.Revision()))
	r.set("count", tr.ChangeCount())
	r.setRaw("changes", "[]")
	for _, c := range tr.LatestChanges(n) {
		raw, err := Change(c)
		if err != nil {
			return "", err
		}
		r.setRaw("changes.-1", raw)
	}
	return r.JSON()
}

// Change renders one journal entry.
func Change(c tracking.Change) (string, error) {
	r := New()
	r.set("revision", uint64(c.Revision))
	r.set("type", c.Type.String())
	r.set("origin", OriginLabel(c.Origin))
	if c.Tag != "" {
		r.set("tag", c.Tag)
	}
	r.set("local", c.Local)
	r.setRaw("insertions", Ranges(c.Insertions))
	r.setRaw("deletions", Ranges(c.Deletions))
	r.set("roots", c.Roots)
	r.set("timestamp", c.Timestamp.Format(time.RFC3339Nano))
	return r.JSON()
}

// Ranges renders a range set as [{"client":c,"ranges":[[clock,len],...]}].
func Ranges(ds *deleteset.DeleteSet) string {
	if ds == nil {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, client := range ds.Clients() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(`{"client":`)
		b.WriteString(strconv.FormatUint(client, 10))
		b.WriteString(`,"ranges":[`)
		for j, rg := range ds.Ranges(client) {
			if j > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "[%d,%d]", rg.Clock, rg.Len)
		}
		b.WriteString("]}")
	}
	b.WriteByte(']')
	return b.String()
}

// OriginLabel names a transaction origin for display.
func OriginLabel(origin any) string {
	switch o := origin.(type) {
	case nil:
		return "local"
	case *history.UndoManager:
		return "undo-manager"
	case string:
		return o
	case engine.Tagged:
		return o.OriginTag()
	case fmt.Stringer:
		return o.String()
	default:
		return fmt.Sprintf("%T", o)
	}
}

// escapeKey escapes the characters sjson treats as path syntax.
func escapeKey(key string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)
	return r.Replace(key)
}
