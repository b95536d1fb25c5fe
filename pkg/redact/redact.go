// Package redact masks sensitive values in structured data before it is
// persisted to audit logs. Redaction is a pure function: it deep-copies its
// input and never mutates the original value.
package redact

import "strings"

// Marker replaces the value of any key whose name matches the sensitive set.
const Marker = "[REDACTED]"

// sensitiveTerms are matched as substrings of the lower-cased, normalized key
// name ("-" and "_" stripped), so "refreshToken", "REFRESH_TOKEN" and
// "refresh-token" all match "refreshtoken".
var sensitiveTerms = []string{
	"password",
	"token",
	"secret",
	"authorization",
	"creditcard",
	"cvv",
	"apikey",
	"accesstoken",
	"refreshtoken",
}

// IsSensitiveKey reports whether a key name should have its value masked.
func IsSensitiveKey(key string) bool {
	normalized := strings.ToLower(key)
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "_", "")
	for _, term := range sensitiveTerms {
		if strings.Contains(normalized, term) {
			return true
		}
	}
	return false
}

// Value returns a deep copy of v with every sensitive key's value replaced by
// Marker. Maps and slices are walked recursively; every other value passes
// through unchanged. Redaction is idempotent: redacting an already-redacted
// structure yields the same structure.
func Value(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if IsSensitiveKey(k) {
				out[k] = Marker
				continue
			}
			out[k] = Value(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = Value(inner)
		}
		return out
	default:
		return v
	}
}
