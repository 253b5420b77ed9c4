package version

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	got := Get()
	if !strings.HasPrefix(got, "v") || strings.ContainsAny(got, " \n") {
		t.Errorf("Get() = %q", got)
	}
}

func TestResolve(t *testing.T) {
	tests := map[string]string{
		"":       Get(),
		"dev":    Get(),
		"1.2.3":  "v1.2.3",
		"v2.0.0": "v2.0.0",
	}
	for in, want := range tests {
		if got := Resolve(in); got != want {
			t.Errorf("Resolve(%q) = %q, want %q", in, got, want)
		}
	}
}
