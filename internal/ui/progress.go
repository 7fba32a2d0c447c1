package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/progress"
	"golang.org/x/term"
)

// ProgressBar renders an inline progress bar for long-running batch work.
// The bar is redrawn in place on every Add call and suppressed entirely when
// the output is not a terminal, so piped output stays clean.
type ProgressBar struct {
	label   string
	total   int
	current int
	model   progress.Model
	output  io.Writer
	enabled bool
}

// NewProgressBar creates a bar writing to stderr, enabled only on a TTY.
func NewProgressBar(label string, total int) *ProgressBar {
	return newProgressBar(label, total, os.Stderr, isTerminal(os.Stderr))
}

func newProgressBar(label string, total int, output io.Writer, enabled bool) *ProgressBar {
	model := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)
	return &ProgressBar{
		label:   label,
		total:   total,
		model:   model,
		output:  output,
		enabled: enabled && total > 0,
	}
}

// Add advances the bar by n items and redraws it.
func (p *ProgressBar) Add(n int) {
	p.current += n
	if p.current > p.total {
		p.current = p.total
	}
	p.draw()
}

// Finish completes the bar and moves to a fresh line.
func (p *ProgressBar) Finish() {
	p.current = p.total
	p.draw()
	if p.enabled {
		fmt.Fprintln(p.output)
	}
}

func (p *ProgressBar) draw() {
	if !p.enabled {
		return
	}
	frac := float64(p.current) / float64(p.total)
	fmt.Fprintf(p.output, "\r%s %s %d/%d", p.label, p.model.ViewAs(frac), p.current, p.total)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
