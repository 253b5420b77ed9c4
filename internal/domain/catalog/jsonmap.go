package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// JSONMap is an opaque JSON object carried through the workflow verbatim.
type JSONMap map[string]any

// Clone returns a deep copy of the map. A nil map clones to nil.
func (m JSONMap) Clone() JSONMap {
	if m == nil {
		return nil
	}
	out := make(JSONMap, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case JSONMap:
		return t.Clone()
	case map[string]any:
		return JSONMap(t).Clone()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// String returns the value at key as a trimmed string.
func (m JSONMap) String(key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Has reports whether key is present, even with a nil value.
func (m JSONMap) Has(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m[key]
	return ok
}

// Map returns the nested object at key, or nil.
func (m JSONMap) Map(key string) JSONMap {
	if m == nil {
		return nil
	}
	switch v := m[key].(type) {
	case JSONMap:
		return v
	case map[string]any:
		return JSONMap(v)
	default:
		return nil
	}
}

// EncodeJSONMap renders the map as compact JSON; nil renders as null.
func EncodeJSONMap(m JSONMap) ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	return json.Marshal(map[string]any(m))
}

// ParseJSONMap decodes a JSON object. Empty input and "null" decode to nil.
// Numbers decode as json.Number so they re-encode exactly as stored.
func ParseJSONMap(data []byte) (JSONMap, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode json object: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode json object: unexpected data after object")
	}
	return JSONMap(m), nil
}

// AsInt converts a JSON number-like value to an int.
// JSON decoding yields float64; YAML and callers may supply int types or numeric strings.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
