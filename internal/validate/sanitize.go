package validate

import (
	"strings"

	"github.com/goccy/go-json"
)

// sensitiveKeyFragments mark map keys whose values must never be echoed to a
// client. Matching is case-insensitive substring.
var sensitiveKeyFragments = []string{"api_key", "apikey", "token", "authorization", "secret"}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, frag := range sensitiveKeyFragments {
		if strings.Contains(k, frag) {
			return true
		}
	}
	return false
}

// Sanitize deep-copies a JSON body with credential-bearing keys removed at
// every nesting level. Non-JSON input is returned unchanged.
func Sanitize(body []byte) []byte {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return body
	}
	cleaned := sanitizeValue(doc)
	out, err := json.Marshal(cleaned)
	if err != nil {
		return body
	}
	return out
}

func sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			if isSensitiveKey(k) {
				continue
			}
			out[k] = sanitizeValue(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = sanitizeValue(inner)
		}
		return out
	default:
		return v
	}
}
