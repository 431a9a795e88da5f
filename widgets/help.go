package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// RenderKeyColumns lays sections out side by side, gutter between them
func RenderKeyColumns(columns ...[]KeySection) string {
	blocks := make([]string, 0, len(columns)*2)
	for i, col := range columns {
		if i > 0 {
			blocks = append(blocks, "    ")
		}
		blocks = append(blocks, RenderKeyHelp(col))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, blocks...)
}
