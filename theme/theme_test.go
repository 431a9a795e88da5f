package theme

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestThemeColors(t *testing.T) {
	p := &Palette{Colors: []RGB{{0, 0, 0}, {255, 255, 255}}}
	th := New(p)

	if got := th.BG(); got != lipgloss.Color("#000000") {
		t.Errorf("BG = %v, want #000000", got)
	}
	if got := th.Success(); got != lipgloss.Color("#ffffff") {
		t.Errorf("Success = %v, want #ffffff", got)
	}
	if got := th.Color(0); got != lipgloss.Color("#000000") {
		t.Errorf("Color(0) = %v, want #000000", got)
	}
	if got := th.Color(1); got != lipgloss.Color("#ffffff") {
		t.Errorf("Color(1) = %v, want #ffffff", got)
	}
}

func TestThemeSymbols(t *testing.T) {
	th := New(Default())
	if th.Symbols.MeterFill != '█' {
		t.Errorf("MeterFill = %q", th.Symbols.MeterFill)
	}
	if th.Symbols.Play != '▶' {
		t.Errorf("Play = %q", th.Symbols.Play)
	}
	if th.Symbols.ToggleOn == th.Symbols.ToggleOff {
		t.Error("toggle symbols should differ")
	}
}
