package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap declares every binding once so the update switch and the help
// footer stay in sync.
type keyMap struct {
	// global
	Quit    key.Binding
	Play    key.Binding
	Rewind  key.Binding
	BPMUp   key.Binding
	BPMDown key.Binding
	Views   key.Binding
	Help    key.Binding

	// navigation
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	BigLeft  key.Binding
	BigRight key.Binding

	// params
	Learn   key.Binding
	Default key.Binding
	AnimOn  key.Binding
	DivDown key.Binding
	DivUp   key.Binding
	AmpDown key.Binding
	AmpUp   key.Binding
	Wave    key.Binding
	Flip    key.Binding

	// mappings
	Add    key.Binding
	Delete key.Binding
	Test   key.Binding

	// scenes
	Save   key.Binding
	New    key.Binding
	Rename key.Binding

	// settings
	Thru key.Binding

	// text input
	Confirm key.Binding
	Cancel  key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Play:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		Rewind:  key.NewBinding(key.WithKeys("0"), key.WithHelp("0", "rewind")),
		BPMUp:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "bpm")),
		BPMDown: key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "bpm down")),
		Views:   key.NewBinding(key.WithKeys("1", "2", "3", "4", "5"), key.WithHelp("1-5", "view")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),

		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("j/k", "move")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
		Left:     key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/l", "adjust")),
		Right:    key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l", "right")),
		BigLeft:  key.NewBinding(key.WithKeys("H", "shift+left"), key.WithHelp("H/L", "coarse")),
		BigRight: key.NewBinding(key.WithKeys("L", "shift+right"), key.WithHelp("L", "coarse up")),

		Learn:   key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "midi learn")),
		Default: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "default")),
		AnimOn:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "animate")),
		DivDown: key.NewBinding(key.WithKeys("["), key.WithHelp("[/]", "division")),
		DivUp:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "longer")),
		AmpDown: key.NewBinding(key.WithKeys(","), key.WithHelp(",/.", "amount")),
		AmpUp:   key.NewBinding(key.WithKeys("."), key.WithHelp(".", "more")),
		Wave:    key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "wave")),
		Flip:    key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "direction")),

		Add:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add (learn)")),
		Delete: key.NewBinding(key.WithKeys("d", "x"), key.WithHelp("d", "delete")),
		Test:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "test values")),

		Save:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
		New:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new scene")),
		Rename: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rename")),

		Thru: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "cycle thru port")),

		Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
		Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

// ShortHelp feeds the footer for the active view
func (m Model) ShortHelp() []key.Binding {
	k := m.keys
	switch m.view {
	case viewParams:
		return []key.Binding{k.Views, k.Up, k.Left, k.AnimOn, k.Learn, k.Help, k.Quit}
	case viewMappings:
		return []key.Binding{k.Views, k.Up, k.Add, k.Delete, k.Test, k.Help, k.Quit}
	case viewClock:
		return []key.Binding{k.Views, k.Play, k.BPMUp, k.Rewind, k.Help, k.Quit}
	case viewScenes:
		return []key.Binding{k.Views, k.Up, k.Confirm, k.Save, k.New, k.Rename, k.Delete, k.Quit}
	case viewSettings:
		return []key.Binding{k.Views, k.Thru, k.Help, k.Quit}
	}
	return []key.Binding{k.Views, k.Help, k.Quit}
}

// FullHelp feeds the expanded footer
func (m Model) FullHelp() [][]key.Binding {
	k := m.keys
	global := []key.Binding{k.Play, k.Rewind, k.BPMUp, k.Views, k.Quit}
	switch m.view {
	case viewParams:
		return [][]key.Binding{
			{k.Up, k.Down, k.Left, k.Right, k.BigLeft},
			{k.AnimOn, k.DivDown, k.AmpDown, k.Wave, k.Flip},
			{k.Learn, k.Default, k.Confirm},
			global,
		}
	case viewMappings:
		return [][]key.Binding{
			{k.Up, k.Down},
			{k.Add, k.Delete, k.Test, k.Cancel},
			global,
		}
	case viewScenes:
		return [][]key.Binding{
			{k.Up, k.Down, k.Left, k.Right},
			{k.Confirm, k.Save, k.New, k.Rename, k.Delete},
			global,
		}
	}
	return [][]key.Binding{global}
}
