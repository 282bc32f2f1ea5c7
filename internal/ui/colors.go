package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/calyptra/tunesync/internal/jobs"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title    lipgloss.Style
	ok       lipgloss.Style
	err      lipgloss.Style
	warn     lipgloss.Style
	help     lipgloss.Style
	running  lipgloss.Style
	selected lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title:    NewBold(t).MarginBottom(1),
		ok:       NewBold(s),
		err:      NewBold(e),
		warn:     NewStyle(w),
		help:     NewEm(h),
		running:  NewBold(t),
		selected: lipgloss.NewStyle().Bold(true),
	}
}

// status picks the style a job status renders with.
func (p *Palette) status(s jobs.Status) lipgloss.Style {
	switch s {
	case jobs.StatusCompleted:
		return p.ok
	case jobs.StatusFailed:
		return p.err
	case jobs.StatusCancelled, jobs.StatusPending:
		return p.warn
	default:
		return p.running
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
