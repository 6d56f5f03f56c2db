package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/tiagowl/ImgMigrator/internal/models"
)

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	muted lipgloss.Style
}

// NewPalette builds a palette from foreground colors for titles, success, errors, warnings and muted text.
func NewPalette(title, ok, err, warn, muted string) *Palette {
	return &Palette{
		title: NewBold(title),
		ok:    NewBold(ok),
		err:   NewBold(err),
		warn:  NewStyle(warn),
		muted: NewStyle(muted).Italic(true),
	}
}

// DefaultPalette returns the CLI colors.
func DefaultPalette() *Palette {
	return NewPalette("#7D56F4", "#04B575", "#FF4141", "#FFA500", "#626262")
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func (p *Palette) Title(s string) string { return p.title.Render(s) }
func (p *Palette) OK(s string) string    { return p.ok.Render(s) }
func (p *Palette) Err(s string) string   { return p.err.Render(s) }
func (p *Palette) Warn(s string) string  { return p.warn.Render(s) }
func (p *Palette) Muted(s string) string { return p.muted.Render(s) }

// Status renders a migration status in its color.
func (p *Palette) Status(s models.Status) string {
	switch s {
	case models.StatusCompleted:
		return p.OK(string(s))
	case models.StatusFailed:
		return p.Err(string(s))
	case models.StatusPaused:
		return p.Warn(string(s))
	case models.StatusPending:
		return p.Muted(string(s))
	default:
		return p.Title(string(s))
	}
}
