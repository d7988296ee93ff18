// Package app wires configuration, logging, the document, its undo
// manager and the observers around them, and runs edit scripts against
// the result.
package app

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/ydoc/internal/config"
	"github.com/dshills/ydoc/internal/config/loader"
	"github.com/dshills/ydoc/internal/engine"
	"github.com/dshills/ydoc/internal/engine/history"
	"github.com/dshills/ydoc/internal/engine/tracking"
	"github.com/dshills/ydoc/internal/inspect"
	"github.com/dshills/ydoc/internal/logging"
	"github.com/dshills/ydoc/internal/metrics"
	"github.com/dshills/ydoc/internal/plugin/lua"
)

// RemoteOrigin is the origin of updates applied from the simulated peer.
const RemoteOrigin = "remote"

// Options configures the application.
type Options struct {
	// ConfigPath is the path to a TOML or YAML configuration file.
	ConfigPath string

	// LogLevel overrides the configured log level when set.
	LogLevel string

	// JSON prints the full inspection report when the script ends.
	JSON bool

	// FilterPath names a Lua delete filter script. It takes precedence
	// over history.delete_filter.
	FilterPath string

	// Output receives command output. Defaults to os.Stdout.
	Output io.Writer

	// LogOutput receives log records. Defaults to os.Stderr.
	LogOutput io.Writer

	// Environ replaces the process environment when not nil.
	Environ []string

	// FS reads configuration and filter files. Defaults to the OS.
	FS loader.FileSystem
}

// Application is one document, its peer and everything observing it.
type Application struct {
	cfg    *config.Config
	logger *logging.Logger
	out    io.Writer
	json   bool

	doc    *engine.Doc
	remote *engine.Doc
	roots  map[string]engine.TypeKind

	um      *history.UndoManager
	umOpts  []history.Option
	filter  *lua.DeleteFilter
	tracker *tracking.Tracker

	registry *prometheus.Registry
	metrics  *metrics.Metrics
	detach   []func()

	origin any
	closed bool
}

// New loads the configuration and builds the application.
func New(opts Options) (*Application, error) {
	if opts.FS == nil {
		opts.FS = loader.DefaultFS()
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	loadOpts := []config.Option{config.WithFS(opts.FS)}
	if opts.ConfigPath != "" {
		loadOpts = append(loadOpts, config.WithFile(opts.ConfigPath))
	}
	if opts.Environ != nil {
		loadOpts = append(loadOpts, config.WithEnviron(opts.Environ))
	}
	cfg, err := config.Load(loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.Logging.Level)
	logCfg.Format = logging.Format(cfg.Logging.Format)
	if opts.LogOutput != nil {
		logCfg.Output = opts.LogOutput
	}
	logger := logging.New(logCfg)

	a := &Application{
		cfg:    cfg,
		logger: logger.WithComponent("app"),
		out:    opts.Output,
		json:   opts.JSON,
		doc:    engine.New(cfg.DocOptions()...),
		roots:  make(map[string]engine.TypeKind),
	}
	a.remote = engine.New(engine.WithGUID(a.doc.GUID()))

	a.tracker = tracking.NewTracker()
	a.tracker.Attach(a.doc)
	a.detach = append(a.detach, a.tracker.Detach)

	umOpts, err := managerConfig(cfg.History).ManagerOptions()
	if err != nil {
		return nil, err
	}
	a.umOpts = append(umOpts, history.WithLogger(logger))

	src := cfg.History.DeleteFilter
	if opts.FilterPath != "" {
		data, err := opts.FS.ReadFile(opts.FilterPath)
		if err != nil {
			return nil, fmt.Errorf("read delete filter: %w", err)
		}
		src = string(data)
	}
	if src != "" {
		if a.filter, err = lua.NewDeleteFilter(src); err != nil {
			return nil, err
		}
		a.umOpts = append(a.umOpts, history.WithDeleteFilter(a.filter.Filter))
	}

	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.metrics = metrics.New(a.registry, cfg.Metrics.Namespace)
	}

	a.logger.Debug("document %s ready (client %d)", a.doc.GUID(), a.doc.ClientID())
	return a, nil
}

// managerConfig keeps updates pulled from the peer out of the undo
// stacks unless the configuration tracks origins explicitly.
func managerConfig(h config.HistoryConfig) config.HistoryConfig {
	if len(h.TrackedOrigins) > 0 || len(h.TrackedTags) > 0 {
		return h
	}
	for _, o := range h.IgnoredOrigins {
		if o == RemoteOrigin {
			return h
		}
	}
	h.IgnoredOrigins = append(append([]string(nil), h.IgnoredOrigins...), RemoteOrigin)
	return h
}

// Config returns the loaded configuration.
func (a *Application) Config() *config.Config { return a.cfg }

// Doc returns the local document.
func (a *Application) Doc() *engine.Doc { return a.doc }

// UndoManager returns the undo manager, or nil before a root is declared.
func (a *Application) UndoManager() *history.UndoManager { return a.um }

// Tracker returns the change journal.
func (a *Application) Tracker() *tracking.Tracker { return a.tracker }

// Registry returns the metrics registry, or nil when metrics are off.
func (a *Application) Registry() *prometheus.Registry { return a.registry }

// Report renders the document, undo manager and journal as JSON.
func (a *Application) Report() (string, error) {
	r := inspect.New().Document(a.doc)
	if a.um != nil {
		r.Manager(a.um)
	}
	return r.Journal(a.tracker, 20).JSON()
}

// declare creates a root and adds it to the undo scope, creating the
// manager on first use.
func (a *Application) declare(name string, kind engine.TypeKind) error {
	if k, ok := a.roots[name]; ok && k != kind {
		return fmt.Errorf("%w: %q is a %s", engine.ErrKindMismatch, name, k)
	}
	t, err := a.doc.Root(name, kind)
	if err != nil {
		return err
	}
	if _, err := a.remote.Root(name, kind); err != nil {
		return err
	}
	a.roots[name] = kind

	if a.um != nil {
		return a.um.AddToScope(t)
	}
	um, err := history.NewUndoManager(a.doc, []*engine.Type{t}, a.umOpts...)
	if err != nil {
		return err
	}
	a.um = um
	if a.metrics != nil {
		a.detach = append(a.detach, a.metrics.Attach(a.doc.GUID(), um))
	}
	return nil
}

func (a *Application) root(name string, kinds ...engine.TypeKind) (*engine.Type, error) {
	kind, ok := a.roots[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownRoot, name)
	}
	for _, k := range kinds {
		if k == kind {
			t, _ := a.doc.Lookup(name)
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q is a %s", engine.ErrKindMismatch, name, kind)
}

// syncRemote brings the peer up to date with the local document.
func (a *Application) syncRemote() error {
	return engine.ApplyUpdate(a.remote, engine.EncodeStateAsUpdate(a.doc, a.remote.StateVector()), a.doc.GUID())
}

// pullRemote applies the peer's changes to the local document.
func (a *Application) pullRemote() error {
	return engine.ApplyUpdate(a.doc, engine.EncodeStateAsUpdate(a.remote, a.doc.StateVector()), RemoteOrigin)
}

// Shutdown releases the undo manager, the Lua state and all observers.
// It is safe to call more than once.
func (a *Application) Shutdown() error {
	if a.closed {
		return nil
	}
	a.closed = true

	var err error
	if a.um != nil {
		err = a.um.Destroy()
	}
	for i := len(a.detach) - 1; i >= 0; i-- {
		a.detach[i]()
	}
	if a.filter != nil {
		a.filter.Close()
	}
	return err
}
