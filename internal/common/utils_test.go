package common

import "testing"

func TestNormalizePlace(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tokyo", "Tokyo"},
		{"  new   york  ", "New York"},
		{"moscow, russia", "Moscow, Russia"},
		{"SAINT PETERSBURG", "Saint Petersburg"},
		{"   ", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizePlace(tt.in); got != tt.want {
				t.Errorf("NormalizePlace(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHasAny(t *testing.T) {
	if !HasAny("request timeout exceeded", "refused", "timeout") {
		t.Error("expected match on timeout")
	}
	if HasAny("all good", "timeout", "refused") {
		t.Error("unexpected match")
	}
	if HasAny("anything") {
		t.Error("no substrings should never match")
	}
}
