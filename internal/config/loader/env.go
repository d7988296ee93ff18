package loader

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

// DefaultEnvPrefix is the prefix of environment variables read by
// NewEnvLoader("").
const DefaultEnvPrefix = "YDOC_"

// EnvLoader loads configuration from environment variables.
//
// YDOC_HISTORY_CAPTURE_TIMEOUT maps to history.capture_timeout: the first
// word after the prefix names the section, the rest is the setting.
type EnvLoader struct {
	prefix  string
	mapping map[string]string
	environ func() []string
}

// NewEnvLoader creates a new environment variable loader. The prefix
// includes the trailing underscore; empty means DefaultEnvPrefix.
func NewEnvLoader(prefix string) *EnvLoader {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
		environ: os.Environ,
	}
}

// NewEnvLoaderFrom creates a loader reading the given KEY=VALUE pairs
// instead of the process environment.
func NewEnvLoaderFrom(prefix string, environ []string) *EnvLoader {
	l := NewEnvLoader(prefix)
	l.environ = func() []string { return environ }
	return l
}

// defaultEnvMapping covers settings whose names do not follow the
// section_setting rule.
func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "LOG_LEVEL":  "logging.level",
		prefix + "LOG_FORMAT": "logging.format",
	}
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	l.mapping[envVar] = configPath
}

// Load reads environment variables and returns a configuration map.
// Empty values are kept as empty strings.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)
	for _, env := range l.environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}
		path, mapped := l.mapping[name]
		if !mapped {
			path = l.envToPath(name)
		}
		if path == "" {
			continue
		}
		setByPath(config, path, parseValue(value))
	}
	return config, nil
}

// envToPath converts YDOC_HISTORY_MAX_ENTRIES to history.max_entries.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	section, setting, ok := strings.Cut(name, "_")
	if !ok || section == "" || setting == "" {
		return ""
	}
	return section + "." + setting
}

// parseValue converts a raw variable into a bool, integer, float, JSON
// array or object, or leaves it as a string. Durations stay strings and
// are parsed by the section that owns them.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}
	return s
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}
