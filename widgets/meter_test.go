package widgets

import (
	"regexp"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"go-modulate/theme"
)

var ansiRE = regexp.MustCompile("\x1b\\[[0-9;]*m")

func plain(s string) string {
	return ansiRE.ReplaceAllString(s, "")
}

func TestMeterFillCounts(t *testing.T) {
	m := NewMeter(theme.New(theme.Default()), 10)

	tests := []struct {
		norm float64
		full int
		half int
	}{
		{0, 0, 0},
		{1, 10, 0},
		{0.5, 5, 0},
		{0.55, 5, 1},
		{-1, 0, 0},
		{2, 10, 0},
	}

	for _, tt := range tests {
		got := plain(m.Render(tt.norm))
		full := strings.Count(got, "█")
		half := strings.Count(got, "▌")
		if full != tt.full || half != tt.half {
			t.Errorf("Render(%v) = %q: %d full %d half, want %d full %d half",
				tt.norm, got, full, half, tt.full, tt.half)
		}
	}
}

func TestMeterWidthStable(t *testing.T) {
	m := NewMeter(theme.New(theme.Default()), 12)
	for _, norm := range []float64{0, 0.25, 0.5, 0.77, 1} {
		if w := lipgloss.Width(m.Render(norm)); w != 12 {
			t.Errorf("width at %v = %d, want 12", norm, w)
		}
	}
}

func TestMeterMinWidth(t *testing.T) {
	m := NewMeter(theme.New(theme.Default()), 0)
	if m.Width() != 1 {
		t.Errorf("Width = %d, want 1", m.Width())
	}
}

func TestRenderKeyHelp(t *testing.T) {
	out := RenderKeyHelp([]KeySection{
		{Title: "transport", Keys: []KeyBinding{{Key: "space", Desc: "play/pause"}}},
	})
	if !strings.Contains(out, "transport") || !strings.Contains(out, "space") {
		t.Errorf("unexpected output %q", out)
	}
}
