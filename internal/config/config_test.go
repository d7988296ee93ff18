package config

import (
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/dshills/ydoc/internal/engine"
	"github.com/dshills/ydoc/internal/engine/history"
)

type memFS struct {
	files map[string]string
}

func newMemFS(files map[string]string) *memFS { return &memFS{files: files} }

func (m *memFS) Open(name string) (fs.File, error) { return nil, fs.ErrNotExist }

func (m *memFS) ReadFile(path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return []byte(data), nil
}

func (m *memFS) Stat(path string) (fs.FileInfo, error) {
	if _, ok := m.files[path]; !ok {
		return nil, fs.ErrNotExist
	}
	return nil, nil
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.History.CaptureTimeout != history.DefaultCaptureTimeout {
		t.Errorf("CaptureTimeout = %v", cfg.History.CaptureTimeout)
	}
	if !cfg.Document.GC {
		t.Error("GC should default to true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	fsys := newMemFS(map[string]string{
		"/ydoc.toml": `
[document]
client_id = 7
guid = "notes"

[history]
capture_timeout = "1s"
tracked_tags = ["local"]
max_entries = 10

[logging]
level = "debug"
`,
		"/ydoc.yaml": `
history:
  capture_timeout: 250
  ignored_origins: [remote]
metrics:
  enabled: true
`,
	})

	t.Run("toml", func(t *testing.T) {
		cfg, err := Load(WithFS(fsys), WithFile("/ydoc.toml"), WithEnviron([]string{}))
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Document.ClientID != 7 || cfg.Document.GUID != "notes" {
			t.Errorf("Document = %+v", cfg.Document)
		}
		if cfg.History.CaptureTimeout != time.Second {
			t.Errorf("CaptureTimeout = %v", cfg.History.CaptureTimeout)
		}
		if len(cfg.History.TrackedTags) != 1 || cfg.History.TrackedTags[0] != "local" {
			t.Errorf("TrackedTags = %v", cfg.History.TrackedTags)
		}
		if cfg.History.MaxEntries != 10 {
			t.Errorf("MaxEntries = %d", cfg.History.MaxEntries)
		}
		if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
			t.Errorf("Logging = %+v", cfg.Logging)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		cfg, err := Load(WithFS(fsys), WithFile("/ydoc.yaml"), WithoutEnv())
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.History.CaptureTimeout != 250*time.Millisecond {
			t.Errorf("integer capture_timeout should be milliseconds, got %v", cfg.History.CaptureTimeout)
		}
		if len(cfg.History.IgnoredOrigins) != 1 || !cfg.Metrics.Enabled || cfg.Metrics.Namespace != "ydoc" {
			t.Errorf("unexpected config %+v", cfg)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		cfg, err := Load(WithFS(fsys), WithFile("/ydoc.toml"), WithEnviron([]string{
			"YDOC_HISTORY_MAX_ENTRIES=3",
			"YDOC_LOG_LEVEL=warn",
		}))
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.History.MaxEntries != 3 || cfg.Logging.Level != "warn" {
			t.Errorf("env not applied: %+v %+v", cfg.History, cfg.Logging)
		}
		if cfg.History.CaptureTimeout != time.Second {
			t.Error("file values not overridden by env should remain")
		}
	})

	t.Run("custom prefix", func(t *testing.T) {
		cfg, err := Load(WithEnvPrefix("APP_"), WithEnviron([]string{
			"APP_HISTORY_CAPTURE_TIMEOUT=2s",
			"YDOC_HISTORY_MAX_ENTRIES=9",
		}))
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.History.CaptureTimeout != 2*time.Second || cfg.History.MaxEntries != 0 {
			t.Errorf("History = %+v", cfg.History)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(WithFS(fsys), WithFile("/nope.toml"), WithoutEnv())
		if !errors.Is(err, ErrFileNotFound) {
			t.Errorf("expected ErrFileNotFound, got %v", err)
		}
	})
}

func TestLoadErrors(t *testing.T) {
	fsys := newMemFS(map[string]string{
		"/bad.toml":      "[history\n",
		"/conflict.toml": "[history]\ntracked_tags = [\"a\"]\nignored_origins = [\"b\"]\n",
		"/types.toml":    "[history]\nmax_entries = \"ten\"\ncapture_timeout = true\n",
		"/unknown.toml":  "[history]\nundo_limit = 3\n[editor]\ntab = 4\n",
		"/range.toml":    "[history]\nmax_entries = -1\ncapture_timeout = \"-1s\"\n",
		"/level.toml":    "[logging]\nlevel = \"loud\"\nformat = \"xml\"\n",
		"/ext.json":      "{}",
	})

	tests := []struct {
		file  string
		check func(t *testing.T, err error)
	}{
		{"/bad.toml", func(t *testing.T, err error) {
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Errorf("expected *ParseError, got %v", err)
			}
		}},
		{"/conflict.toml", func(t *testing.T, err error) {
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Code != ErrCodeConflict {
				t.Errorf("expected conflict, got %v", err)
			}
		}},
		{"/types.toml", func(t *testing.T, err error) {
			if !errors.Is(err, ErrTypeMismatch) {
				t.Errorf("expected ErrTypeMismatch, got %v", err)
			}
			var terr *TypeError
			if !errors.As(err, &terr) || terr.Path != "history.capture_timeout" {
				t.Errorf("expected first type error on capture_timeout, got %v", err)
			}
		}},
		{"/unknown.toml", func(t *testing.T, err error) {
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Code != ErrCodeUnknownSetting {
				t.Errorf("expected unknown setting, got %v", err)
			}
		}},
		{"/range.toml", func(t *testing.T, err error) {
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Code != ErrCodeOutOfRange {
				t.Errorf("expected out of range, got %v", err)
			}
		}},
		{"/level.toml", func(t *testing.T, err error) {
			if !errors.Is(err, ErrValidationFailed) {
				t.Errorf("expected ErrValidationFailed, got %v", err)
			}
		}},
		{"/ext.json", func(t *testing.T, err error) {
			if err == nil {
				t.Error("expected unsupported format error")
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			_, err := Load(WithFS(fsys), WithFile(tt.file), WithoutEnv())
			if err == nil {
				t.Fatal("expected error")
			}
			tt.check(t, err)
		})
	}
}

func TestManagerOptions(t *testing.T) {
	doc := engine.New(Default().DocOptions()...)
	text := doc.GetText("body")

	h := HistoryConfig{
		CaptureTimeout:         time.Second,
		TrackedOrigins:         []string{"editor"},
		MaxEntries:             4,
		IgnoreRemoteMapChanges: true,
	}
	opts, err := h.ManagerOptions()
	if err != nil {
		t.Fatalf("ManagerOptions failed: %v", err)
	}
	um, err := history.NewUndoManager(doc, []*engine.Type{text}, opts...)
	if err != nil {
		t.Fatalf("NewUndoManager failed: %v", err)
	}
	defer um.Destroy()

	if um.CaptureTimeout() != time.Second {
		t.Errorf("CaptureTimeout = %v", um.CaptureTimeout())
	}

	edit := func(origin any) {
		if err := doc.Transact(origin, func(tx *engine.Transaction) error {
			return text.InsertString(tx, text.Len(), "x")
		}); err != nil {
			t.Fatal(err)
		}
		um.StopCapturing()
	}
	edit("editor")
	edit("network")
	if um.UndoLen() != 1 {
		t.Errorf("only the tracked origin should be captured, UndoLen = %d", um.UndoLen())
	}
}

func TestDocOptions(t *testing.T) {
	cfg := Default()
	cfg.Document.ClientID = 42
	cfg.Document.GUID = "fixed"
	doc := engine.New(cfg.DocOptions()...)
	if doc.ClientID() != 42 || doc.GUID() != "fixed" {
		t.Errorf("doc = %d %q", doc.ClientID(), doc.GUID())
	}
}
