package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestCodeOfWalksWrappedChain(t *testing.T) {
	base := New(CodeSpawnFailed, "spawn rustup: permission denied", fs.ErrPermission)
	wrapped := fmt.Errorf("update rustup: %w", base)

	if got := CodeOf(wrapped); got != CodeSpawnFailed {
		t.Fatalf("CodeOf = %q, want %q", got, CodeSpawnFailed)
	}
	if !IsCode(wrapped, CodeSpawnFailed) {
		t.Fatal("expected IsCode to match spawn_failed")
	}
	if !errors.Is(wrapped, fs.ErrPermission) {
		t.Fatal("expected inner error to remain reachable")
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if got := CodeOf(errors.New("boom")); got != CodeUnknown {
		t.Fatalf("CodeOf = %q, want %q", got, CodeUnknown)
	}
	if got := CodeOf(nil); got != CodeUnknown {
		t.Fatalf("CodeOf(nil) = %q, want %q", got, CodeUnknown)
	}
}

func TestErrorMessageFallbacks(t *testing.T) {
	tests := []struct {
		name string
		err  Error
		want string
	}{
		{"message wins", Error{Code: CodeIO, Message: "write failed", Err: errors.New("disk full")}, "write failed"},
		{"inner error", Error{Code: CodeIO, Err: errors.New("disk full")}, "disk full"},
		{"code only", Error{Code: CodeAlreadyExists}, "already_exists"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Fatalf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnvMissing(t *testing.T) {
	err := EnvMissing("XDG_CONFIG_HOME")
	if !IsCode(err, CodeEnvMissing) {
		t.Fatalf("expected env_missing, got %q", CodeOf(err))
	}
	if err.Error() != "environment variable XDG_CONFIG_HOME is not set" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
