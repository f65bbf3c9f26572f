package tools

import (
	"testing"
)

func TestDefaultsOrderAndShape(t *testing.T) {
	tools := Defaults()
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	want := []string{"rustup", "flutter", "rust-analyzer"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}

	if tools[0].Downloaded() || tools[1].Downloaded() {
		t.Fatal("rustup and flutter update themselves")
	}
	if !tools[2].Downloaded() {
		t.Fatal("rust-analyzer is installed from a release")
	}
	if got := tools[2].Release.Channel; got != "nightly" {
		t.Fatalf("rust-analyzer channel = %q", got)
	}
}
