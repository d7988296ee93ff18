package loader

import (
	"errors"
	"strings"
	"testing"
)

func TestTOMLLoader_Load(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/ydoc.toml", `
[history]
capture_timeout = "250ms"
max_entries = 50
tracked_tags = ["local", "paste"]

[logging]
level = "debug"
`)

	config, err := NewTOMLLoaderWithFS(memfs, "/ydoc.toml").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	history, ok := config["history"].(map[string]any)
	if !ok {
		t.Fatal("expected history to be a map")
	}
	if history["capture_timeout"] != "250ms" {
		t.Errorf("capture_timeout = %v", history["capture_timeout"])
	}
	if history["max_entries"] != int64(50) {
		t.Errorf("max_entries = %v (%T), want 50", history["max_entries"], history["max_entries"])
	}
	tags, ok := history["tracked_tags"].([]any)
	if !ok || len(tags) != 2 || tags[1] != "paste" {
		t.Errorf("tracked_tags = %v", history["tracked_tags"])
	}
}

func TestTOMLLoader_LoadNonExistent(t *testing.T) {
	config, err := NewTOMLLoaderWithFS(NewMemFS(), "/missing.toml").Load()
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if config != nil {
		t.Errorf("expected nil config, got %v", config)
	}
}

func TestTOMLLoader_LoadInvalid(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/bad.toml", "[history\nmax_entries = 1\n")

	_, err := NewTOMLLoaderWithFS(memfs, "/bad.toml").Load()
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if perr.Path != "/bad.toml" {
		t.Errorf("Path = %q", perr.Path)
	}
	if perr.Line == 0 {
		t.Error("expected a line number")
	}
	if !strings.Contains(perr.Error(), "/bad.toml") {
		t.Errorf("error should name the file: %v", perr)
	}
}

func TestTOMLLoader_LoadFromReader(t *testing.T) {
	l := NewTOMLLoader("")
	config, err := l.LoadFromReader(strings.NewReader("[metrics]\nenabled = true\n"))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}
	metrics := config["metrics"].(map[string]any)
	if metrics["enabled"] != true {
		t.Errorf("enabled = %v", metrics["enabled"])
	}
}

func TestTOMLLoader_LoadWithIncludes(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/etc/ydoc/base.toml", `
[history]
capture_timeout = "1s"
max_entries = 10
`)
	memfs.AddFile("/etc/ydoc/tags.toml", `
[history]
tracked_tags = ["local"]
max_entries = 20
`)
	memfs.AddFile("/etc/ydoc/ydoc.toml", `
"@include" = ["base.toml", "tags.toml"]

[history]
max_entries = 30
`)

	config, err := NewTOMLLoaderWithFS(memfs, "/etc/ydoc/ydoc.toml").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := config[IncludeKey]; ok {
		t.Error("include key should be removed")
	}
	history := config["history"].(map[string]any)
	if history["capture_timeout"] != "1s" {
		t.Errorf("capture_timeout = %v, want value from base.toml", history["capture_timeout"])
	}
	if history["max_entries"] != int64(30) {
		t.Errorf("max_entries = %v, main file should win", history["max_entries"])
	}
	if tags, _ := history["tracked_tags"].([]any); len(tags) != 1 {
		t.Errorf("tracked_tags = %v", history["tracked_tags"])
	}
}

func TestTOMLLoader_LoadWithIncludes_DepthExceeded(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/a.toml", `"@include" = "b.toml"`)
	memfs.AddFile("/b.toml", `"@include" = "a.toml"`)

	_, err := NewTOMLLoaderWithFS(memfs, "/a.toml").Load()
	if err == nil || !strings.Contains(err.Error(), "include depth exceeded") {
		t.Errorf("expected depth error, got %v", err)
	}
}

func TestTOMLLoader_InvalidInclude(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/a.toml", `"@include" = 3`)

	if _, err := NewTOMLLoaderWithFS(memfs, "/a.toml").Load(); err == nil {
		t.Error("expected error for non-string include")
	}
}
