package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dshills/ydoc/internal/config/loader"
	"github.com/dshills/ydoc/internal/engine"
	"github.com/dshills/ydoc/internal/engine/history"
	"github.com/dshills/ydoc/internal/logging"
)

// Config holds every ydoc setting.
type Config struct {
	Document DocumentConfig
	History  HistoryConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// DocumentConfig configures the replicated document.
type DocumentConfig struct {
	// ClientID is the replica id. Zero picks a random one.
	ClientID uint64
	// GUID names the document. Empty generates one.
	GUID string
	// GC enables garbage collection of deleted content.
	GC bool
}

// HistoryConfig configures the undo manager.
type HistoryConfig struct {
	CaptureTimeout         time.Duration
	TrackedOrigins         []string
	TrackedTags            []string
	IgnoredOrigins         []string
	IgnoredTags            []string
	MaxEntries             int
	IgnoreRemoteMapChanges bool
	// DeleteFilter is Lua source defining filter(item).
	DeleteFilter string
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Document: DocumentConfig{GC: true},
		History: HistoryConfig{
			CaptureTimeout: history.DefaultCaptureTimeout,
		},
		Logging: LoggingConfig{Level: "info", Format: string(logging.FormatText)},
		Metrics: MetricsConfig{Namespace: "ydoc"},
	}
}

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	fs        loader.FileSystem
	file      string
	envPrefix string
	environ   []string
	useEnv    bool
}

// WithFile names a TOML or YAML file to load. A named file that does not
// exist is an error.
func WithFile(path string) Option {
	return func(o *loadOptions) { o.file = path }
}

// WithFS reads files through fsys instead of the OS.
func WithFS(fsys loader.FileSystem) Option {
	return func(o *loadOptions) { o.fs = fsys }
}

// WithEnvPrefix changes the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(o *loadOptions) { o.envPrefix = prefix }
}

// WithEnviron reads variables from environ instead of the process
// environment.
func WithEnviron(environ []string) Option {
	return func(o *loadOptions) { o.environ = environ }
}

// WithoutEnv skips the environment layer.
func WithoutEnv() Option {
	return func(o *loadOptions) { o.useEnv = false }
}

// Load builds a Config from the defaults, the optional file and the
// environment, in increasing priority, and validates the result.
func Load(opts ...Option) (*Config, error) {
	o := loadOptions{
		fs:        loader.DefaultFS(),
		envPrefix: loader.DefaultEnvPrefix,
		useEnv:    true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	merged := make(map[string]any)
	if o.file != "" {
		if _, err := o.fs.Stat(o.file); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrFileNotFound, o.file)
			}
			return nil, err
		}
		fl, err := loader.ForPath(o.fs, o.file)
		if err != nil {
			return nil, err
		}
		data, err := fl.Load()
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, data)
	}
	if o.useEnv {
		var env *loader.EnvLoader
		if o.environ != nil {
			env = loader.NewEnvLoaderFrom(o.envPrefix, o.environ)
		} else {
			env = loader.NewEnvLoader(o.envPrefix)
		}
		data, err := env.Load()
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, data)
	}

	cfg := Default()
	if err := cfg.Apply(merged); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DocOptions converts the document section to engine options.
func (c *Config) DocOptions() []engine.Option {
	opts := []engine.Option{engine.WithGC(c.Document.GC)}
	if c.Document.ClientID != 0 {
		opts = append(opts, engine.WithClientID(c.Document.ClientID))
	}
	if c.Document.GUID != "" {
		opts = append(opts, engine.WithGUID(c.Document.GUID))
	}
	return opts
}

// Logger builds a logger from the logging section.
func (c *Config) Logger() *logging.Logger {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.Logging.Level)
	cfg.Format = logging.Format(c.Logging.Format)
	return logging.New(cfg)
}

// ManagerOptions converts the history section to undo manager options.
// The delete filter is not included; it has to be compiled first.
func (h HistoryConfig) ManagerOptions() ([]history.Option, error) {
	tracked := len(h.TrackedOrigins) > 0 || len(h.TrackedTags) > 0
	ignored := len(h.IgnoredOrigins) > 0 || len(h.IgnoredTags) > 0
	if tracked && ignored {
		return nil, &ValidationError{
			Path:    "history.tracked_origins",
			Message: "tracked and ignored origins are mutually exclusive",
			Code:    ErrCodeConflict,
		}
	}

	opts := []history.Option{
		history.WithCaptureTimeout(h.CaptureTimeout),
		history.WithMaxEntries(h.MaxEntries),
	}
	if h.IgnoreRemoteMapChanges {
		opts = append(opts, history.WithIgnoreRemoteMapChanges())
	}
	if tracked {
		opts = append(opts, history.WithTrackedOrigins(originSet(h.TrackedOrigins, h.TrackedTags)))
	}
	if ignored {
		opts = append(opts, history.WithIgnoredOrigins(originSet(h.IgnoredOrigins, h.IgnoredTags)))
	}
	return opts, nil
}

func originSet(values, tags []string) history.OriginSet {
	set := history.OriginSet{Tags: append([]string(nil), tags...)}
	for _, v := range values {
		set.Values = append(set.Values, v)
	}
	return set
}
