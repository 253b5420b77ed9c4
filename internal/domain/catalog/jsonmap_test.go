package catalog

import (
	"encoding/json"
	"testing"
)

func TestJSONMap_CloneIsDeep(t *testing.T) {
	m := JSONMap{
		"nested": map[string]any{"a": 1},
		"list":   []any{map[string]any{"b": 2}},
	}

	c := m.Clone()
	c.Map("nested")["a"] = 99
	c["list"].([]any)[0].(JSONMap)["b"] = 99

	if m["nested"].(map[string]any)["a"] != 1 {
		t.Error("Clone() shared nested map")
	}
	if m["list"].([]any)[0].(map[string]any)["b"] != 2 {
		t.Error("Clone() shared list element")
	}
	if JSONMap(nil).Clone() != nil {
		t.Error("nil Clone() should be nil")
	}
}

func TestJSONMap_String(t *testing.T) {
	m := JSONMap{"s": "  x  ", "n": 3, "nil": nil}
	if m.String("s") != "x" || m.String("n") != "3" || m.String("nil") != "" || m.String("missing") != "" {
		t.Errorf("String() = %q %q %q", m.String("s"), m.String("n"), m.String("nil"))
	}
	if !m.Has("nil") || m.Has("missing") {
		t.Error("Has() mismatch")
	}
}

func TestEncodeParseJSONMap(t *testing.T) {
	data, err := EncodeJSONMap(nil)
	if err != nil || string(data) != "null" {
		t.Errorf("EncodeJSONMap(nil) = %s, %v", data, err)
	}

	parsed, err := ParseJSONMap([]byte(" null "))
	if err != nil || parsed != nil {
		t.Errorf("ParseJSONMap(null) = %v, %v", parsed, err)
	}

	parsed, err = ParseJSONMap([]byte(`{"schedule":"office","limit":10}`))
	if err != nil {
		t.Fatalf("ParseJSONMap() error = %v", err)
	}
	if parsed.String("schedule") != "office" {
		t.Errorf("schedule = %q", parsed.String("schedule"))
	}

	if _, err := ParseJSONMap([]byte(`[1,2]`)); err == nil {
		t.Error("ParseJSONMap(array) should fail")
	}
}

func TestParseJSONMap_KeepsLargeIntegers(t *testing.T) {
	const raw = `{"error_codes":{"E1":9007199254740993}}`

	parsed, err := ParseJSONMap([]byte(raw))
	if err != nil {
		t.Fatalf("ParseJSONMap() error = %v", err)
	}
	data, err := EncodeJSONMap(parsed.Clone())
	if err != nil {
		t.Fatalf("EncodeJSONMap() error = %v", err)
	}
	if string(data) != raw {
		t.Errorf("round trip = %s, want %s", data, raw)
	}

	if n, ok := AsInt(parsed.Map("error_codes")["E1"]); !ok || int64(n) != 9007199254740993 {
		t.Errorf("AsInt(E1) = %d, %v", n, ok)
	}
	if _, err := ParseJSONMap([]byte(`{"a":1} {"b":2}`)); err == nil {
		t.Error("ParseJSONMap(trailing object) should fail")
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		in   any
		want int
		ok   bool
	}{
		{5, 5, true},
		{int64(6), 6, true},
		{float64(7), 7, true},
		{7.5, 0, false},
		{json.Number("8"), 8, true},
		{" 9 ", 9, true},
		{"nine", 0, false},
		{true, 0, false},
	}

	for _, tt := range tests {
		got, ok := AsInt(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("AsInt(%v) = %d, %v, want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
