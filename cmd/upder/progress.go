package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"upder/internal/update"
)

const (
	progressBarWidth = 30
	redrawInterval   = 100 * time.Millisecond
)

// progressBar draws download progress on one line, redrawn in place on a
// terminal. Off a terminal only the final summary is printed.
type progressBar struct {
	w        io.Writer
	term     terminal
	bar      progress.Model
	lastDraw time.Time
	now      func() time.Time
}

func newProgressBar(w io.Writer, t terminal) *progressBar {
	return &progressBar{
		w:    w,
		term: t,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(progressBarWidth),
		),
		now: time.Now,
	}
}

// Report implements update.ProgressReporter.
func (p *progressBar) Report(pr update.Progress) {
	if !p.term.interactive {
		return
	}
	now := p.now()
	if !p.lastDraw.IsZero() && now.Sub(p.lastDraw) < redrawInterval {
		return
	}
	p.lastDraw = now
	p.draw(pr)
}

// Finish implements update.ProgressReporter.
func (p *progressBar) Finish(pr update.Progress, err error) {
	if p.term.interactive {
		p.draw(pr)
		_, _ = fmt.Fprintln(p.w)
	}
	p.lastDraw = time.Time{}

	elapsed := pr.Elapsed.Round(time.Millisecond)
	if err != nil {
		_, _ = fmt.Fprintf(p.w, "download failed after %s at %s\n", humanize.Bytes(uint64(max(pr.Bytes, 0))), elapsed)
		return
	}
	_, _ = fmt.Fprintf(p.w, "downloaded %s in %s\n", humanize.Bytes(uint64(max(pr.Bytes, 0))), elapsed)
}

func (p *progressBar) draw(pr update.Progress) {
	line := ansi.Truncate(p.render(pr), p.term.width(), "")
	_, _ = fmt.Fprint(p.w, "\r"+line+ansi.EraseLineRight)
}

func (p *progressBar) render(pr update.Progress) string {
	var parts []string
	bytes := humanize.Bytes(uint64(max(pr.Bytes, 0)))
	if pr.Total > 0 {
		parts = append(parts, p.bar.ViewAs(pr.Fraction()),
			bytes+" / "+humanize.Bytes(uint64(pr.Total)))
	} else {
		parts = append(parts, bytes)
	}
	if pr.Throughput > 0 {
		parts = append(parts, humanize.Bytes(uint64(pr.Throughput))+"/s")
	}
	if eta := pr.ETA(); eta > 0 {
		parts = append(parts, "ETA "+eta.Round(time.Second).String())
	}
	return strings.Join(parts, "  ")
}
