package app

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/common/expfmt"

	"github.com/dshills/ydoc/internal/engine"
	"github.com/dshills/ydoc/internal/engine/tracking"
	"github.com/dshills/ydoc/internal/inspect"
)

// command runs one script line. args holds the fixed arguments, rest
// the remainder of the line.
type command struct {
	nargs int
	usage string
	run   func(a *Application, args []string, rest string) error
}

var commands = map[string]command{
	"text":          {1, "text <root>", declareCmd(engine.KindText)},
	"map":           {1, "map <root>", declareCmd(engine.KindMap)},
	"array":         {1, "array <root>", declareCmd(engine.KindArray)},
	"origin":        {1, "origin <name|->", (*Application).cmdOrigin},
	"insert":        {2, "insert <root> <index> <text|json>", (*Application).cmdInsert},
	"delete":        {3, "delete <root> <index> <n>", (*Application).cmdDelete},
	"set":           {2, "set <root> <key> <json|text>", (*Application).cmdSet},
	"unset":         {2, "unset <root> <key>", (*Application).cmdUnset},
	"remote-insert": {2, "remote-insert <root> <index> <text|json>", (*Application).cmdRemoteInsert},
	"remote-set":    {2, "remote-set <root> <key> <json|text>", (*Application).cmdRemoteSet},
	"stop":          {0, "stop", (*Application).cmdStop},
	"undo":          {0, "undo", (*Application).cmdUndo},
	"redo":          {0, "redo", (*Application).cmdRedo},
	"clear":         {0, "clear", (*Application).cmdClear},
	"print":         {0, "print [root]", (*Application).cmdPrint},
	"state":         {0, "state", (*Application).cmdState},
	"snapshot":      {1, "snapshot <name>", (*Application).cmdSnapshot},
	"diff":          {1, "diff <name>", (*Application).cmdDiff},
	"metrics":       {0, "metrics", (*Application).cmdMetrics},
}

// Run executes a script read from r, one command per line. Blank lines
// and lines starting with # are skipped. Run stops at the first failing
// line.
func (a *Application) Run(r io.Reader) error {
	if a.closed {
		return ErrShutdown
	}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := a.Exec(line, text); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	if a.json {
		return a.cmdState(nil, "")
	}
	return nil
}

// Exec runs a single script line.
func (a *Application) Exec(line int, text string) error {
	name, rest := cut(text)
	cmd, ok := commands[name]
	if !ok {
		return NewOperationError(line, name, ErrUnknownCommand)
	}
	args := make([]string, 0, cmd.nargs)
	for len(args) < cmd.nargs {
		var arg string
		arg, rest = cut(rest)
		if arg == "" {
			return NewOperationError(line, name, ErrUsage).WithContext(cmd.usage)
		}
		args = append(args, arg)
	}
	a.logger.Debug("line %d: %s", line, text)
	if err := cmd.run(a, args, rest); err != nil {
		return NewOperationError(line, name, err)
	}
	return nil
}

func cut(s string) (string, string) {
	s = strings.TrimSpace(s)
	head, tail, _ := strings.Cut(s, " ")
	return head, strings.TrimSpace(tail)
}

func declareCmd(kind engine.TypeKind) func(*Application, []string, string) error {
	return func(a *Application, args []string, _ string) error {
		return a.declare(args[0], kind)
	}
}

func (a *Application) cmdOrigin(args []string, _ string) error {
	if args[0] == "-" {
		a.origin = nil
		return nil
	}
	a.origin = args[0]
	return nil
}

func (a *Application) cmdInsert(args []string, rest string) error {
	return a.insert(a.doc, a.origin, args, rest)
}

func (a *Application) cmdRemoteInsert(args []string, rest string) error {
	if err := a.syncRemote(); err != nil {
		return err
	}
	if err := a.insert(a.remote, nil, args, rest); err != nil {
		return err
	}
	return a.pullRemote()
}

func (a *Application) insert(doc *engine.Doc, origin any, args []string, rest string) error {
	if _, err := a.root(args[0], engine.KindText, engine.KindArray); err != nil {
		return err
	}
	index, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: index %q", ErrUsage, args[1])
	}
	t, _ := doc.Lookup(args[0])
	return doc.Transact(origin, func(tx *engine.Transaction) error {
		if t.Kind() == engine.KindText {
			return t.InsertString(tx, index, textArg(rest))
		}
		return t.Insert(tx, index, valueArg(rest))
	})
}

func (a *Application) cmdDelete(args []string, _ string) error {
	t, err := a.root(args[0], engine.KindText, engine.KindArray)
	if err != nil {
		return err
	}
	index, err1 := strconv.ParseUint(args[1], 10, 64)
	n, err2 := strconv.ParseUint(args[2], 10, 64)
	if err1 != nil || err2 != nil {
		return fmt.Errorf("%w: index and length must be numbers", ErrUsage)
	}
	return a.doc.Transact(a.origin, func(tx *engine.Transaction) error {
		return t.Delete(tx, index, n)
	})
}

func (a *Application) cmdSet(args []string, rest string) error {
	return a.set(a.doc, a.origin, args, rest)
}

func (a *Application) cmdRemoteSet(args []string, rest string) error {
	if err := a.syncRemote(); err != nil {
		return err
	}
	if err := a.set(a.remote, nil, args, rest); err != nil {
		return err
	}
	return a.pullRemote()
}

func (a *Application) set(doc *engine.Doc, origin any, args []string, rest string) error {
	if _, err := a.root(args[0], engine.KindMap); err != nil {
		return err
	}
	t, _ := doc.Lookup(args[0])
	return doc.Transact(origin, func(tx *engine.Transaction) error {
		return t.Set(tx, args[1], valueArg(rest))
	})
}

func (a *Application) cmdUnset(args []string, _ string) error {
	t, err := a.root(args[0], engine.KindMap)
	if err != nil {
		return err
	}
	return a.doc.Transact(a.origin, func(tx *engine.Transaction) error {
		return t.DeleteKey(tx, args[1])
	})
}

func (a *Application) cmdStop([]string, string) error {
	if a.um == nil {
		return ErrNoScope
	}
	a.um.StopCapturing()
	return nil
}

func (a *Application) cmdUndo([]string, string) error {
	if a.um == nil {
		return ErrNoScope
	}
	item, err := a.um.Undo()
	if err != nil {
		return err
	}
	return a.reportPop("undo", item != nil)
}

func (a *Application) cmdRedo([]string, string) error {
	if a.um == nil {
		return ErrNoScope
	}
	item, err := a.um.Redo()
	if err != nil {
		return err
	}
	return a.reportPop("redo", item != nil)
}

func (a *Application) reportPop(dir string, done bool) error {
	if !done {
		_, err := fmt.Fprintf(a.out, "%s: nothing to %s\n", dir, dir)
		return err
	}
	_, err := fmt.Fprintf(a.out, "%s: ok (undo=%d redo=%d)\n", dir, a.um.UndoLen(), a.um.RedoLen())
	return err
}

func (a *Application) cmdClear([]string, string) error {
	if a.um == nil {
		return ErrNoScope
	}
	return a.um.Clear()
}

func (a *Application) cmdPrint(_ []string, rest string) error {
	names := a.doc.Roots()
	if rest != "" {
		if _, err := a.root(rest, engine.KindText, engine.KindMap, engine.KindArray); err != nil {
			return err
		}
		names = []string{rest}
	}
	for _, name := range names {
		t, _ := a.doc.Lookup(name)
		data, err := json.Marshal(t.ToJSONValue())
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(a.out, "%s: %s\n", name, data); err != nil {
			return err
		}
	}
	return nil
}

func (a *Application) cmdState([]string, string) error {
	report, err := a.Report()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, report)
	return err
}

func (a *Application) cmdSnapshot(args []string, _ string) error {
	a.tracker.CreateSnapshot(args[0])
	return nil
}

func (a *Application) cmdDiff(args []string, _ string) error {
	snap, err := a.tracker.GetSnapshotByName(args[0])
	if err != nil {
		return err
	}
	cs, err := a.tracker.DiffSinceSnapshot(snap.ID)
	if err != nil {
		return err
	}
	return a.printChangeSet(args[0], cs)
}

func (a *Application) printChangeSet(name string, cs *tracking.ChangeSet) error {
	if _, err := fmt.Fprintf(a.out, "since %s: %s\n", name, cs.Summary()); err != nil {
		return err
	}
	for _, c := range cs.Changes {
		if _, err := fmt.Fprintf(a.out, "  r%d %s by %s\n", c.Revision, c.Type, inspect.OriginLabel(c.Origin)); err != nil {
			return err
		}
	}
	return nil
}

func (a *Application) cmdMetrics([]string, string) error {
	if a.registry == nil {
		return fmt.Errorf("metrics are disabled")
	}
	families, err := a.registry.Gather()
	if err != nil {
		return err
	}
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(a.out, mf); err != nil {
			return err
		}
	}
	return nil
}

// textArg unquotes a Go-quoted argument and returns anything else as is.
func textArg(s string) string {
	if strings.HasPrefix(s, `"`) {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
	}
	return s
}

// valueArg decodes a JSON value, falling back to text.
func valueArg(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return textArg(s)
}
