package agentconfig

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

type ValueType string

const (
	TypeString  ValueType = "string"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
)

type AllowlistEntry struct {
	Path string    `json:"path"`
	Type ValueType `json:"type"`
	Min  *float64  `json:"min,omitempty"`
	Max  *float64  `json:"max,omitempty"`
	Enum []string  `json:"enum,omitempty"`
}

func bound(v float64) *float64 { return &v }

var allowlist = map[string]AllowlistEntry{}

func init() {
	for _, entry := range []AllowlistEntry{
		{Path: "model", Type: TypeString},
		{Path: "gateway.port", Type: TypeNumber, Min: bound(1), Max: bound(65535)},
		{Path: "gateway.mode", Type: TypeString, Enum: []string{"local", "remote"}},
		{Path: "gateway.bind", Type: TypeString, Enum: []string{"loopback", "lan", "tailnet", "auto"}},
		{Path: "agents.defaults.model", Type: TypeString},
		{Path: "agents.defaults.thinkingDefault", Type: TypeString, Enum: []string{"off", "minimal", "low", "medium", "high"}},
		{Path: "agents.defaults.timeoutSeconds", Type: TypeNumber, Min: bound(10), Max: bound(3600)},
		{Path: "agents.defaults.maxConcurrent", Type: TypeNumber, Min: bound(1), Max: bound(32)},
		{Path: "agents.defaults.heartbeat.every", Type: TypeString},
		{Path: "logging.level", Type: TypeString, Enum: []string{"debug", "info", "warn", "error"}},
		{Path: "session.idleMinutes", Type: TypeNumber, Min: bound(1), Max: bound(10080)},
		{Path: "browser.enabled", Type: TypeBoolean},
		{Path: "tools.exec.enabled", Type: TypeBoolean},
		{Path: "messages.ackReaction", Type: TypeString},
	} {
		allowlist[entry.Path] = entry
	}
}

// Allowlist returns the editable paths sorted by path.
func Allowlist() []AllowlistEntry {
	out := make([]AllowlistEntry, 0, len(allowlist))
	for _, entry := range allowlist {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// IsPathAllowed is an exact membership test. Prefixes of allowed paths are not
// themselves allowed.
func IsPathAllowed(path string) bool {
	_, ok := allowlist[path]
	return ok
}

type Result struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func fail(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// ValidateValue checks value against the schema declared for path.
func ValidateValue(path string, value any) Result {
	entry, ok := allowlist[path]
	if !ok {
		return fail("path %q is not editable", path)
	}
	switch entry.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return fail("%s must be a string", path)
		}
		if len(entry.Enum) > 0 {
			for _, allowed := range entry.Enum {
				if s == allowed {
					return Result{OK: true}
				}
			}
			return fail("%s must be one of %s", path, strings.Join(entry.Enum, ", "))
		}
		return Result{OK: true}
	case TypeNumber:
		n, ok := toFloat(value)
		if !ok {
			return fail("%s must be a number", path)
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return fail("%s must be a finite number", path)
		}
		if entry.Min != nil && n < *entry.Min {
			return fail("%s must be at least %g", path, *entry.Min)
		}
		if entry.Max != nil && n > *entry.Max {
			return fail("%s must be at most %g", path, *entry.Max)
		}
		return Result{OK: true}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fail("%s must be a boolean", path)
		}
		return Result{OK: true}
	default:
		return fail("%s has an unknown type", path)
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// AffectsGateway reports whether changing path warrants a gateway restart.
func AffectsGateway(path string) bool {
	return path == "gateway" || strings.HasPrefix(path, "gateway.")
}
