package app

import (
	"bytes"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/dshills/ydoc/internal/engine"
)

type memFS map[string]string

func (m memFS) Open(string) (fs.File, error) { return nil, fs.ErrNotExist }

func (m memFS) ReadFile(path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return []byte(data), nil
}

func (m memFS) Stat(path string) (fs.FileInfo, error) {
	if _, ok := m[path]; !ok {
		return nil, fs.ErrNotExist
	}
	return nil, nil
}

func newTestApp(t *testing.T, opts Options) (*Application, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	opts.Output = &out
	opts.LogOutput = &bytes.Buffer{}
	if opts.Environ == nil {
		opts.Environ = []string{}
	}
	if opts.FS == nil {
		opts.FS = memFS{}
	}
	a, err := New(opts)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { a.Shutdown() })
	return a, &out
}

func runScript(t *testing.T, a *Application, script string) {
	t.Helper()
	if err := a.Run(strings.NewReader(script)); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
}

func TestScripts(t *testing.T) {
	tests := []struct {
		name    string
		environ []string
		script  string
		want    string
	}{
		{
			name: "undo and redo text",
			script: `
# two separate edits
text body
insert body 0 hello
stop
insert body 5 " world"
print
undo
print body
redo
print
`,
			want: `body: "hello world"
undo: ok (undo=1 redo=1)
body: "hello"
redo: ok (undo=2 redo=0)
body: "hello world"
`,
		},
		{
			name: "remote text survives undo",
			script: `
text body
insert body 0 abc
stop
remote-insert body 3 XYZ
undo
print
`,
			want: `undo: ok (undo=0 redo=1)
body: "XYZ"
`,
		},
		{
			name: "remote overwrite leaves nothing to undo",
			script: `
map meta
set meta title "draft"
stop
remote-set meta title "final"
undo
print meta
`,
			want: `undo: nothing to undo
meta: {"title":"final"}
`,
		},
		{
			name: "array values and unset",
			script: `
array list
map meta
insert list 0 {"n":1}
insert list 1 [2,3]
set meta count 2
unset meta count
print
undo
print
`,
			want: `list: [{"n":1},[2,3]]
meta: {}
undo: ok (undo=0 redo=1)
list: []
meta: {}
`,
		},
		{
			name:    "tracked origins from environment",
			environ: []string{"YDOC_HISTORY_TRACKED_ORIGINS=editor"},
			script: `
text body
origin editor
insert body 0 a
origin script
insert body 1 b
undo
print
`,
			want: `undo: ok (undo=0 redo=1)
body: "b"
`,
		},
		{
			name: "clear drops both stacks",
			script: `
text body
insert body 0 x
undo
clear
redo
undo
print
`,
			want: `undo: ok (undo=0 redo=1)
redo: nothing to redo
undo: nothing to undo
body: ""
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, out := newTestApp(t, Options{Environ: tt.environ})
			runScript(t, a, tt.script)
			if got := out.String(); got != tt.want {
				t.Errorf("output:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestScriptErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		line   int
		want   error
	}{
		{"unknown command", "text body\njump body", 2, ErrUnknownCommand},
		{"missing arguments", "text body\ndelete body 0", 2, ErrUsage},
		{"bad index", "text body\ninsert body x y", 2, ErrUsage},
		{"undo before declaration", "# nothing yet\nundo", 2, ErrNoScope},
		{"undeclared root", "text body\n\ninsert notes 0 x", 3, ErrUnknownRoot},
		{"kind mismatch", "text body\nmap body", 2, engine.ErrKindMismatch},
		{"set on text", "text body\nset body k v", 2, engine.ErrKindMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestApp(t, Options{})
			err := a.Run(strings.NewReader(tt.script))
			if !errors.Is(err, tt.want) {
				t.Fatalf("Run() error = %v, want %v", err, tt.want)
			}
			var opErr *OperationError
			if !errors.As(err, &opErr) || opErr.Line != tt.line {
				t.Errorf("error line = %v, want %d", err, tt.line)
			}
		})
	}
}

func TestDeleteFilterScript(t *testing.T) {
	a, out := newTestApp(t, Options{
		FS:         memFS{"/keep.lua": `function filter(item) return item.value ~= "keep" end`},
		FilterPath: "/keep.lua",
	})
	runScript(t, a, `
text body
insert body 0 keep
stop
insert body 4 drop
undo
undo
print
`)
	want := `undo: ok (undo=1 redo=1)
undo: nothing to undo
body: "keep"
`
	if got := out.String(); got != want {
		t.Errorf("output:\n%s\nwant:\n%s", got, want)
	}
}

func TestConfigFile(t *testing.T) {
	fsys := memFS{"/ydoc.yaml": `
document:
  guid: notes
history:
  max_entries: 1
`}
	a, out := newTestApp(t, Options{FS: fsys, ConfigPath: "/ydoc.yaml"})
	runScript(t, a, `
text body
insert body 0 a
stop
insert body 1 b
undo
undo
print
`)
	if a.Doc().GUID() != "notes" {
		t.Errorf("GUID = %q", a.Doc().GUID())
	}
	want := `undo: ok (undo=0 redo=1)
undo: nothing to undo
body: "a"
`
	if got := out.String(); got != want {
		t.Errorf("output:\n%s\nwant:\n%s", got, want)
	}

	if _, err := New(Options{FS: fsys, ConfigPath: "/missing.toml", Environ: []string{}}); err == nil {
		t.Error("expected error for missing config file")
	}
	if _, err := New(Options{FS: fsys, LogLevel: "loud", Environ: []string{}}); err == nil {
		t.Error("expected error for invalid log level")
	}
}

func TestJournalMetricsAndReport(t *testing.T) {
	a, out := newTestApp(t, Options{
		JSON: true,
		Environ: []string{
			"YDOC_METRICS_ENABLED=true",
			"YDOC_DOCUMENT_GUID=doc1",
		},
	})
	runScript(t, a, `
text body
snapshot start
insert body 0 hi
undo
diff start
metrics
`)

	got := out.String()
	for _, want := range []string{
		"since start:",
		"r1 insert by local",
		"r2 delete by undo-manager",
		`ydoc_history_stack_items_popped_total{direction="undo",manager="doc1"} 1`,
		`ydoc_history_stack_depth{manager="doc1",stack="redo"} 1`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	lines := strings.Split(strings.TrimSpace(got), "\n")
	report := lines[len(lines)-1]
	if !gjson.Valid(report) {
		t.Fatalf("last line is not a JSON report: %s", report)
	}
	if v := gjson.Get(report, "document.guid").String(); v != "doc1" {
		t.Errorf("document.guid = %q", v)
	}
	if v := gjson.Get(report, "history.redo.depth").Int(); v != 1 {
		t.Errorf("history.redo.depth = %d", v)
	}
	if v := gjson.Get(report, "journal.changes.#").Int(); v != 2 {
		t.Errorf("journal.changes = %d", v)
	}
}

func TestMetricsDisabled(t *testing.T) {
	a, _ := newTestApp(t, Options{})
	if err := a.Run(strings.NewReader("metrics")); err == nil {
		t.Error("metrics command should fail when metrics are disabled")
	}
}

func TestShutdown(t *testing.T) {
	a, _ := newTestApp(t, Options{})
	runScript(t, a, "text body\ninsert body 0 x")

	if err := a.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := a.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
	if err := a.Run(strings.NewReader("print")); !errors.Is(err, ErrShutdown) {
		t.Errorf("Run after Shutdown = %v", err)
	}
}
