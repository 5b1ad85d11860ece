package council

import "encoding/json"

// CoerceContent normalises adapter output into a string. Adapter content is
// sometimes observed as a non-string value, or as a string containing the
// literal "[object Object]" from an upstream SDK's default stringification.
// Both must be coerced to a sensible string before storage and round-trip.
func CoerceContent(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		if t == "[object Object]" {
			return ""
		}
		return t
	case map[string]interface{}:
		for _, key := range []string{"text", "content", "message"} {
			if s, ok := t[key].(string); ok && s != "" {
				return s
			}
		}
		return canonicalSerialize(t)
	default:
		return canonicalSerialize(t)
	}
}

// canonicalSerialize falls back to a deterministic JSON rendering when no
// known text field can be extracted.
func canonicalSerialize(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
