package platform

import (
	"runtime"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		goos string
		want Tag
	}{
		{"linux", Linux},
		{"Linux", Linux},
		{"darwin", Mac},
		{"Darwin", Mac},
		{"macos", Mac},
		{"windows", Linux},
		{"freebsd", Linux},
		{"", Linux},
		{"  darwin  ", Mac},
	}
	for _, tt := range tests {
		if got := Resolve(tt.goos); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.goos, got, tt.want)
		}
	}
}

func TestCurrentIsAlwaysKnown(t *testing.T) {
	got := Current()
	if got != Linux && got != Mac {
		t.Fatalf("Current() = %q, want linux or mac", got)
	}
	if runtime.GOOS == "darwin" && got != Mac {
		t.Fatalf("Current() = %q on darwin, want mac", got)
	}
}
