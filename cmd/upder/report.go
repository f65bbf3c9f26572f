package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/indent"

	"upder/internal/process"
	"upder/internal/tools"
	"upder/internal/update"
)

const outputIndent = 4

var (
	primaryColor = lipgloss.Color("#7D56F4")
	dimColor     = lipgloss.Color("#6272A4")
	successColor = lipgloss.Color("#50FA7B")
	warnColor    = lipgloss.Color("#FFB86C")
	errorColor   = lipgloss.Color("#FF5555")

	stepStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	commandStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor)

	warnStyle = lipgloss.NewStyle().
			Foreground(warnColor)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)
)

// stepReport prints what each step does. It serves both the orchestrator
// (step boundaries) and the tool updater (commands and their output).
type stepReport struct {
	w io.Writer
}

func newStepReport(w io.Writer) *stepReport {
	return &stepReport{w: w}
}

func (r *stepReport) StepStarted(name string) {
	_, _ = fmt.Fprintln(r.w, stepStyle.Render("==> "+name))
}

func (r *stepReport) Command(_ string, line string) {
	_, _ = fmt.Fprintln(r.w, commandStyle.Render("$ "+line))
}

func (r *stepReport) Output(_ string, out process.Output) {
	if text := strings.TrimRight(out.Stdout, "\n"); text != "" {
		_, _ = fmt.Fprintln(r.w, indent.String(text, outputIndent))
	}
	if out.ExitCode != 0 {
		_, _ = fmt.Fprintln(r.w, warnStyle.Render(fmt.Sprintf("exited with status %d", out.ExitCode)))
	}
}

func (r *stepReport) Installed(_ string, d update.Download) {
	digest := d.SHA256
	if len(digest) > 12 {
		digest = digest[:12]
	}
	msg := fmt.Sprintf("installed %s (%s", d.Path, humanize.Bytes(uint64(max(d.Bytes, 0))))
	if digest != "" {
		msg += ", sha256 " + digest
	}
	_, _ = fmt.Fprintln(r.w, msg+")")
}

func (r *stepReport) StepFinished(res tools.Result, err error) {
	if err != nil {
		_, _ = fmt.Fprintln(r.w, errorStyle.Render("✗ "+res.Tool+" failed"))
		return
	}
	_, _ = fmt.Fprintln(r.w, successStyle.Render("✓ "+res.Tool+versionNote(res)))
}

func versionNote(res tools.Result) string {
	switch {
	case res.Upgraded():
		return fmt.Sprintf(" %s -> %s", res.Before, res.After)
	case !res.After.IsZero():
		return fmt.Sprintf(" at %s", res.After)
	default:
		return ""
	}
}
