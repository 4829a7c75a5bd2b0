package formatter

import (
	"github.com/charmbracelet/lipgloss"
)

// DefaultPalette is used when a nil [Palette] is passed to a formatter.
var DefaultPalette = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a small stylesheet of named [lipgloss.Style] values
type Palette struct {
	Title lipgloss.Style
	OK    lipgloss.Style
	Err   lipgloss.Style
	Warn  lipgloss.Style
	Muted lipgloss.Style
}

// NewPalette builds a palette from title, success, error, warning and muted colors.
func NewPalette(t, s, e, w, m string) *Palette {
	return &Palette{
		Title: NewBold(t),
		OK:    NewBold(s),
		Err:   NewBold(e),
		Warn:  NewStyle(w),
		Muted: NewEm(m),
	}
}

// PlainPalette renders without any styling.
func PlainPalette() *Palette {
	plain := lipgloss.NewStyle()
	return &Palette{Title: plain, OK: plain, Err: plain, Warn: plain, Muted: plain}
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

func paletteOrDefault(p *Palette) *Palette {
	if p == nil {
		return DefaultPalette
	}
	return p
}
