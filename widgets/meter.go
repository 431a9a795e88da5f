package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-modulate/theme"
)

// Meter renders horizontal value bars filled along the theme's palette
// gradient. Cell colors are fixed per position, so they are styled once
// at construction and Render just assembles strings.
type Meter struct {
	width int
	fill  []string
	half  []string
	empty string
}

func NewMeter(th *theme.Theme, width int) *Meter {
	if width < 1 {
		width = 1
	}

	m := &Meter{
		width: width,
		fill:  make([]string, width),
		half:  make([]string, width),
	}

	sym := th.Symbols
	for i := 0; i < width; i++ {
		pos := (float64(i) + 0.5) / float64(width)
		style := lipgloss.NewStyle().Foreground(th.Color(pos))
		m.fill[i] = style.Render(string(sym.MeterFill))
		m.half[i] = style.Render(string(sym.MeterHalf))
	}
	m.empty = lipgloss.NewStyle().Foreground(th.Muted()).Render(string(sym.MeterEmpty))

	return m
}

func (m *Meter) Width() int {
	return m.width
}

// Render draws the bar for a normalized value 0-1.
func (m *Meter) Render(norm float64) string {
	if norm < 0 {
		norm = 0
	}
	if norm > 1 {
		norm = 1
	}

	cells := norm * float64(m.width)
	full := int(cells)
	frac := cells - float64(full)

	var out strings.Builder
	for i := 0; i < m.width; i++ {
		switch {
		case i < full:
			out.WriteString(m.fill[i])
		case i == full && frac >= 0.5:
			out.WriteString(m.half[i])
		default:
			out.WriteString(m.empty)
		}
	}
	return out.String()
}
