package loader

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// IncludeKey names the top-level key listing files a TOML document
// builds on. Included files have lower priority than the including file.
const IncludeKey = "@include"

// TOMLLoader loads configuration from TOML files.
type TOMLLoader struct {
	fs   FileSystem
	path string
}

// NewTOMLLoader creates a new TOML loader for the given path.
func NewTOMLLoader(path string) *TOMLLoader {
	return NewTOMLLoaderWithFS(DefaultFS(), path)
}

// NewTOMLLoaderWithFS creates a TOML loader with a custom file system.
func NewTOMLLoaderWithFS(fs FileSystem, path string) *TOMLLoader {
	return &TOMLLoader{fs: fs, path: path}
}

// Load reads configuration from the configured path, following includes.
func (l *TOMLLoader) Load() (map[string]any, error) {
	return l.LoadWithIncludes(l.path, 8)
}

// LoadFrom reads configuration from a specific path.
func (l *TOMLLoader) LoadFrom(path string) (map[string]any, error) {
	data, ok, err := readFile(l.fs, path)
	if err != nil || !ok {
		return nil, err
	}
	return l.parse(path, data)
}

// LoadFromReader reads configuration from an io.Reader.
func (l *TOMLLoader) LoadFromReader(r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return l.parse("<reader>", data)
}

func (l *TOMLLoader) parse(source string, data []byte) (map[string]any, error) {
	var config map[string]any
	if err := toml.Unmarshal(data, &config); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}
		var decErr *toml.DecodeError
		if errors.As(err, &decErr) {
			perr.Line, perr.Column = decErr.Position()
		}
		return nil, perr
	}
	return config, nil
}

// LoadWithIncludes loads a TOML file and processes @include directives.
// maxDepth limits nested includes.
func (l *TOMLLoader) LoadWithIncludes(path string, maxDepth int) (map[string]any, error) {
	if maxDepth <= 0 {
		return nil, fmt.Errorf("include depth exceeded for %s", path)
	}

	config, err := l.LoadFrom(path)
	if err != nil || config == nil {
		return config, err
	}

	includes, ok := config[IncludeKey]
	if !ok {
		return config, nil
	}
	delete(config, IncludeKey)

	var list []string
	switch v := includes.(type) {
	case string:
		list = []string{v}
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s must be string or array of strings", IncludeKey)
			}
			list = append(list, s)
		}
	default:
		return nil, fmt.Errorf("%s must be string or array of strings, got %T", IncludeKey, includes)
	}

	merged := make(map[string]any)
	for _, inc := range list {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		incConfig, err := l.LoadWithIncludes(inc, maxDepth-1)
		if err != nil {
			return nil, fmt.Errorf("loading include %s: %w", inc, err)
		}
		merged = DeepMerge(merged, incConfig)
	}
	return DeepMerge(merged, config), nil
}
