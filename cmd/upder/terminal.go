package main

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const defaultWidth = 80

// terminal describes where output goes.
type terminal struct {
	interactive bool
	width       func() int
}

// detectTerminal inspects w. Anything that is not a TTY gets plain output
// with no colors and no redrawn progress line.
func detectTerminal(w io.Writer) terminal {
	f, ok := w.(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return terminal{interactive: false, width: func() int { return defaultWidth }}
	}
	fd := int(f.Fd())
	return terminal{
		interactive: true,
		width: func() int {
			cols, _, err := term.GetSize(fd)
			if err != nil || cols <= 0 {
				return defaultWidth
			}
			return cols
		},
	}
}

// applyColorProfile disables styling when output is not interactive.
func applyColorProfile(t terminal) {
	if !t.interactive {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}
