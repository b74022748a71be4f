package agentconfig

import "strings"

// RedactedValue replaces every secret-looking value in MaskSecrets output.
const RedactedValue = "[REDACTED]"

var secretKeywords = []string{"token", "password", "api_key", "secret", "auth", "credentials", "private"}

// SetAtPath writes value at a dot-path inside obj. Missing segments are
// created. A segment holding anything other than an object is replaced by an
// empty object rather than treated as an error.
func SetAtPath(obj map[string]any, path string, value any) {
	segments := strings.Split(path, ".")
	current := obj
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[segment] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}

// GetAtPath reads a dot-path, returning false when any segment is missing.
func GetAtPath(obj map[string]any, path string) (any, bool) {
	var current any = obj
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func isSecretKey(key string) bool {
	lowered := strings.ToLower(key)
	for _, keyword := range secretKeywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

// MaskSecrets returns a copy of v in which the value of every secret-looking
// key is replaced wholesale, whatever its type.
func MaskSecrets(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, value := range typed {
			if isSecretKey(key) {
				out[key] = RedactedValue
				continue
			}
			out[key] = MaskSecrets(value)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, value := range typed {
			out[i] = MaskSecrets(value)
		}
		return out
	default:
		return v
	}
}
