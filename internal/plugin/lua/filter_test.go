package lua

import (
	"errors"
	"strings"
	"testing"

	"github.com/dshills/ydoc/internal/engine"
	"github.com/dshills/ydoc/internal/engine/history"
)

func newDoc(t *testing.T) *engine.Doc {
	t.Helper()
	return engine.New(engine.WithClientID(3), engine.WithGC(false))
}

func mustTransact(t *testing.T, doc *engine.Doc, fn func(tx *engine.Transaction) error) {
	t.Helper()
	if err := doc.Transact(nil, fn); err != nil {
		t.Fatal(err)
	}
}

func TestNewDeleteFilterErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"syntax", "function filter(", nil},
		{"no filter", "x = 1", ErrNoFilterFunc},
		{"filter not function", "filter = true", ErrNoFilterFunc},
		{"sandbox", "os.remove('x') function filter() return true end", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewDeleteFilter(tt.src)
			if err == nil {
				f.Close()
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestItemTable(t *testing.T) {
	doc := newDoc(t)
	text := doc.GetText("body")
	meta := doc.GetMap("meta")
	list := doc.GetArray("list")

	mustTransact(t, doc, func(tx *engine.Transaction) error {
		if err := text.InsertString(tx, 0, "hello"); err != nil {
			return err
		}
		if err := meta.Set(tx, "title", "draft"); err != nil {
			return err
		}
		return list.Push(tx, engine.NewMap())
	})

	f, err := NewDeleteFilter(`
		function filter(item)
			local value = item.value
			if type(value) == "table" then value = value[1] end
			seen = item.client .. ":" .. item.clock .. " len=" .. item.length ..
				" kind=" .. item.kind .. " parent=" .. item.parent ..
				" key=" .. tostring(item.key) .. " value=" .. tostring(value)
			return true
		end
	`)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	tests := []struct {
		name string
		item *engine.Item
		want string
	}{
		{"string", text.First(), "3:0 len=5 kind=string parent=body key=nil value=hello"},
		{"map entry", meta.Entry("title"), "3:5 len=1 kind=any parent=meta key=title value=draft"},
		{"nested type", list.First(), "3:6 len=1 kind=type parent=list key=nil value=map"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := f.Filter(tt.item)
			if err != nil || !ok {
				t.Fatalf("Filter = %v, %v", ok, err)
			}
			if got := f.state.GetGlobal("seen").String(); got != tt.want {
				t.Errorf("item table = %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestFilterResults(t *testing.T) {
	doc := newDoc(t)
	text := doc.GetText("body")
	mustTransact(t, doc, func(tx *engine.Transaction) error {
		return text.InsertString(tx, 0, "abc")
	})

	tests := []struct {
		src     string
		want    bool
		wantErr bool
	}{
		{"function filter(item) return true end", true, false},
		{"function filter(item) return false end", false, false},
		{"function filter(item) end", false, false},
		{"function filter(item) return 0 end", true, false},
		{"function filter(item) return item.value == 'abc' end", true, false},
		{"function filter(item) error('no') end", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			f, err := NewDeleteFilter(tt.src)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()

			got, err := f.Filter(text.First())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Filter error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Filter = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterWithUndoManager(t *testing.T) {
	doc := newDoc(t)
	text := doc.GetText("body")

	f, err := NewDeleteFilter(`
		function filter(item)
			return not string.find(item.value, "!")
		end
	`)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	um, err := history.NewUndoManager(doc, []*engine.Type{text}, history.WithDeleteFilter(f.Filter))
	if err != nil {
		t.Fatal(err)
	}
	defer um.Destroy()

	mustTransact(t, doc, func(tx *engine.Transaction) error {
		return text.InsertString(tx, 0, "hi")
	})
	um.StopCapturing()
	mustTransact(t, doc, func(tx *engine.Transaction) error {
		return text.InsertString(tx, 2, "!")
	})

	// The vetoed item has no effect and is skipped.
	item, err := um.Undo()
	if err != nil {
		t.Fatal(err)
	}
	if item == nil {
		t.Fatal("expected the earlier item to be undone")
	}
	if got := text.String(); got != "!" {
		t.Errorf("text = %q, want %q", got, "!")
	}
	if um.CanUndo() {
		t.Error("both items should be gone from the undo stack")
	}

	failing, err := NewDeleteFilter(`function filter(item) error("denied") end`)
	if err != nil {
		t.Fatal(err)
	}
	defer failing.Close()
	um2, err := history.NewUndoManager(doc, []*engine.Type{text}, history.WithDeleteFilter(failing.Filter))
	if err != nil {
		t.Fatal(err)
	}
	defer um2.Destroy()
	mustTransact(t, doc, func(tx *engine.Transaction) error {
		return text.InsertString(tx, 0, "x")
	})
	if _, err := um2.Undo(); err == nil || !strings.Contains(err.Error(), "denied") {
		t.Errorf("expected filter error, got %v", err)
	}
	if got := text.String(); got != "x!" {
		t.Errorf("failed undo must roll back, text = %q", got)
	}
}
