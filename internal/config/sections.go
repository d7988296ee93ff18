package config

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dshills/ydoc/internal/logging"
)

// Apply overlays a merged settings map onto c. Unknown settings and
// values of the wrong type are reported together.
func (c *Config) Apply(m map[string]any) error {
	d := &decoder{}
	for _, section := range sortedKeys(m) {
		values, ok := m[section].(map[string]any)
		if !ok {
			d.fail(&TypeError{Path: section, Expected: "table", Actual: typeName(m[section])})
			continue
		}
		switch section {
		case "document":
			d.document(&c.Document, values)
		case "history":
			d.history(&c.History, values)
		case "logging":
			d.logging(&c.Logging, values)
		case "metrics":
			d.metrics(&c.Metrics, values)
		default:
			d.fail(&ValidationError{Path: section, Message: "unknown section", Code: ErrCodeUnknownSetting})
		}
	}
	return errors.Join(d.errs...)
}

// Validate checks setting ranges and combinations.
func (c *Config) Validate() error {
	var errs []error
	if c.History.CaptureTimeout < 0 {
		errs = append(errs, &ValidationError{
			Path: "history.capture_timeout", Message: "must not be negative",
			Value: c.History.CaptureTimeout, Code: ErrCodeOutOfRange,
		})
	}
	if c.History.MaxEntries < 0 {
		errs = append(errs, &ValidationError{
			Path: "history.max_entries", Message: "must not be negative",
			Value: c.History.MaxEntries, Code: ErrCodeOutOfRange,
		})
	}
	if _, err := c.History.ManagerOptions(); err != nil {
		errs = append(errs, err)
	}
	if !validLevel(c.Logging.Level) {
		errs = append(errs, &ValidationError{
			Path: "logging.level", Message: "must be debug, info, warn or error",
			Value: c.Logging.Level, Code: ErrCodeInvalidEnum,
		})
	}
	switch logging.Format(c.Logging.Format) {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, &ValidationError{
			Path: "logging.format", Message: "must be text or json",
			Value: c.Logging.Format, Code: ErrCodeInvalidEnum,
		})
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		errs = append(errs, &ValidationError{
			Path: "metrics.namespace", Message: "required when metrics are enabled",
			Code: ErrCodeInvalidEnum,
		})
	}
	return errors.Join(errs...)
}

func validLevel(s string) bool {
	switch strings.ToLower(s) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

type decoder struct {
	errs []error
}

func (d *decoder) fail(err error) { d.errs = append(d.errs, err) }

func (d *decoder) unknown(path string) {
	d.fail(&ValidationError{Path: path, Message: "unknown setting", Code: ErrCodeUnknownSetting})
}

func (d *decoder) document(dst *DocumentConfig, m map[string]any) {
	for _, key := range sortedKeys(m) {
		path, v := "document."+key, m[key]
		switch key {
		case "client_id":
			if n, ok := d.int(path, v); ok {
				if n < 0 || n > math.MaxUint32 {
					d.fail(&ValidationError{Path: path, Message: "must fit in 32 bits", Value: n, Code: ErrCodeOutOfRange})
					continue
				}
				dst.ClientID = uint64(n)
			}
		case "guid":
			d.string(path, v, &dst.GUID)
		case "gc":
			d.bool(path, v, &dst.GC)
		default:
			d.unknown(path)
		}
	}
}

func (d *decoder) history(dst *HistoryConfig, m map[string]any) {
	for _, key := range sortedKeys(m) {
		path, v := "history."+key, m[key]
		switch key {
		case "capture_timeout":
			d.duration(path, v, &dst.CaptureTimeout)
		case "tracked_origins":
			d.strings(path, v, &dst.TrackedOrigins)
		case "tracked_tags":
			d.strings(path, v, &dst.TrackedTags)
		case "ignored_origins":
			d.strings(path, v, &dst.IgnoredOrigins)
		case "ignored_tags":
			d.strings(path, v, &dst.IgnoredTags)
		case "max_entries":
			if n, ok := d.int(path, v); ok {
				dst.MaxEntries = int(n)
			}
		case "ignore_remote_map_changes":
			d.bool(path, v, &dst.IgnoreRemoteMapChanges)
		case "delete_filter":
			d.string(path, v, &dst.DeleteFilter)
		default:
			d.unknown(path)
		}
	}
}

func (d *decoder) logging(dst *LoggingConfig, m map[string]any) {
	for _, key := range sortedKeys(m) {
		path, v := "logging."+key, m[key]
		switch key {
		case "level":
			d.string(path, v, &dst.Level)
		case "format":
			d.string(path, v, &dst.Format)
		default:
			d.unknown(path)
		}
	}
}

func (d *decoder) metrics(dst *MetricsConfig, m map[string]any) {
	for _, key := range sortedKeys(m) {
		path, v := "metrics."+key, m[key]
		switch key {
		case "enabled":
			d.bool(path, v, &dst.Enabled)
		case "namespace":
			d.string(path, v, &dst.Namespace)
		default:
			d.unknown(path)
		}
	}
}

func (d *decoder) string(path string, v any, dst *string) {
	s, ok := v.(string)
	if !ok {
		d.fail(&TypeError{Path: path, Expected: "string", Actual: typeName(v)})
		return
	}
	*dst = s
}

func (d *decoder) bool(path string, v any, dst *bool) {
	b, ok := v.(bool)
	if !ok {
		d.fail(&TypeError{Path: path, Expected: "bool", Actual: typeName(v)})
		return
	}
	*dst = b
}

func (d *decoder) int(path string, v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	}
	d.fail(&TypeError{Path: path, Expected: "int", Actual: typeName(v)})
	return 0, false
}

// duration accepts Go duration strings or integer milliseconds.
func (d *decoder) duration(path string, v any, dst *time.Duration) {
	switch t := v.(type) {
	case string:
		dur, err := time.ParseDuration(t)
		if err != nil {
			d.fail(&ValidationError{Path: path, Message: "invalid duration", Value: t, Code: ErrCodeTypeMismatch})
			return
		}
		*dst = dur
	case time.Duration:
		*dst = t
	case int64, int:
		n, _ := d.int(path, t)
		*dst = time.Duration(n) * time.Millisecond
	default:
		d.fail(&TypeError{Path: path, Expected: "duration", Actual: typeName(v)})
	}
}

func (d *decoder) strings(path string, v any, dst *[]string) {
	switch t := v.(type) {
	case string:
		*dst = []string{t}
	case []string:
		*dst = append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok {
				d.fail(&TypeError{Path: fmt.Sprintf("%s[%d]", path, i), Expected: "string", Actual: typeName(e)})
				return
			}
			out = append(out, s)
		}
		*dst = out
	default:
		d.fail(&TypeError{Path: path, Expected: "[]string", Actual: typeName(v)})
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// typeName returns the type name for error messages.
func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	switch v.(type) {
	case string:
		return "string"
	case int, int64:
		return "int"
	case float64:
		return "float64"
	case bool:
		return "bool"
	case []any, []string:
		return "array"
	case map[string]any:
		return "table"
	default:
		return fmt.Sprintf("%T", v)
	}
}
