package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"upder/internal/process"
	"upder/internal/tools"
	"upder/internal/update"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestStepReportCommandAndOutput(t *testing.T) {
	var out bytes.Buffer
	r := newStepReport(&out)

	r.StepStarted("rustup")
	r.Command("rustup", "rustup self update")
	r.Output("rustup", process.Output{Stdout: "info: checking\ninfo: done\n"})

	want := "==> rustup\n$ rustup self update\n    info: checking\n    info: done\n"
	if out.String() != want {
		t.Fatalf("output = %q, want %q", out.String(), want)
	}
}

func TestStepReportNonZeroExit(t *testing.T) {
	var out bytes.Buffer
	newStepReport(&out).Output("flutter", process.Output{ExitCode: 3})

	if !strings.Contains(out.String(), "exited with status 3") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestStepReportInstalled(t *testing.T) {
	var out bytes.Buffer
	newStepReport(&out).Installed("rust-analyzer", update.Download{
		Path:   "/home/u/.local/bin/rust-analyzer",
		Bytes:  1024,
		SHA256: "0123456789abcdef0123",
	})

	want := "installed /home/u/.local/bin/rust-analyzer (1.0 kB, sha256 0123456789ab)\n"
	if out.String() != want {
		t.Fatalf("output = %q, want %q", out.String(), want)
	}
}

func TestStepReportFinished(t *testing.T) {
	tests := []struct {
		name string
		res  tools.Result
		err  error
		want string
	}{
		{
			name: "upgraded",
			res:  tools.Result{Tool: "rustup", Before: update.Version{Major: 1, Minor: 27}, After: update.Version{Major: 1, Minor: 28}},
			want: "✓ rustup v1.27.0 -> v1.28.0\n",
		},
		{
			name: "unchanged",
			res:  tools.Result{Tool: "flutter", Before: update.Version{Major: 3}, After: update.Version{Major: 3}},
			want: "✓ flutter at v3.0.0\n",
		},
		{
			name: "unknown version",
			res:  tools.Result{Tool: "rust-analyzer"},
			want: "✓ rust-analyzer\n",
		},
		{
			name: "failed",
			res:  tools.Result{Tool: "flutter"},
			err:  errors.New("flutter not found"),
			want: "✗ flutter failed\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			newStepReport(&out).StepFinished(tt.res, tt.err)
			if out.String() != tt.want {
				t.Fatalf("output = %q, want %q", out.String(), tt.want)
			}
		})
	}
}
