package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/reflow/wordwrap"

	"upder/internal/history"
)

// historyMarkdown lays out runs as a markdown table, newest first.
func historyMarkdown(runs []history.Run) string {
	if len(runs) == 0 {
		return "No runs recorded yet.\n"
	}

	var b strings.Builder
	b.WriteString("# Recent runs\n\n")
	b.WriteString("| Started | Status | Duration | Steps | Error |\n")
	b.WriteString("|---------|--------|----------|-------|-------|\n")
	for _, run := range runs {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.Status,
			formatRunDuration(run),
			cell(stepSummary(run.Steps)),
			cell(run.Error),
		)
	}
	return b.String()
}

func stepSummary(steps []history.Step) string {
	parts := make([]string, 0, len(steps))
	for _, step := range steps {
		part := step.Tool
		switch {
		case step.Status == history.StatusFailed:
			part += " (failed)"
		case step.Before != "" && step.After != "" && step.Before != step.After:
			part += " " + step.Before + " -> " + step.After
		case step.After != "":
			part += " " + step.After
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}

func formatRunDuration(run history.Run) string {
	d := run.Duration()
	if d == 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

// cell escapes text for a single table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	if s == "" {
		return "-"
	}
	return s
}

// renderHistory renders the table for the terminal, or as plain text when
// output is not interactive.
func renderHistory(runs []history.Run, t terminal) string {
	md := historyMarkdown(runs)
	width := t.width()

	style := "notty"
	if t.interactive {
		style = "dark"
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return wordwrap.String(md, width)
	}
	out, err := renderer.Render(md)
	if err != nil {
		return wordwrap.String(md, width)
	}
	return out
}
