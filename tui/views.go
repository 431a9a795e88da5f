package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-modulate/clock"
	"go-modulate/engine"
	"go-modulate/widgets"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var body string
	switch m.view {
	case viewParams:
		body = m.renderParams()
	case viewMappings:
		body = m.renderMappings()
	case viewClock:
		body = m.renderClock()
	case viewScenes:
		body = m.renderScenes()
	case viewSettings:
		body = m.renderSettings()
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(m.renderHeader())
	out.WriteString("\n\n")
	out.WriteString(body)
	out.WriteString("\n\n")
	out.WriteString(m.renderFooter())
	return out.String()
}

func clockLabel(s clock.State) string {
	switch s {
	case clock.StateInternal:
		return "INT"
	case clock.StateExternal:
		return "EXT"
	case clock.StateAwaitingExternal:
		return "WAIT"
	}
	return "STOP"
}

func (m Model) renderHeader() string {
	snap := m.eng.Clock()
	sym := m.th.Symbols

	glyph := sym.Pause
	if snap.Playing {
		glyph = sym.Play
	}

	scene := m.eng.SceneName()
	if scene == "" {
		scene = "untitled"
	}
	if m.eng.Dirty() {
		scene += string(sym.Dirty)
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.th.Accent())
	header := headerStyle.Render(fmt.Sprintf("go-modulate  %c %-4s  %5.1fbpm  %d:%d  scene:%s",
		glyph, clockLabel(snap.State), snap.BPM, snap.Bar+1, snap.Beat+1, scene))

	activeTab := lipgloss.NewStyle().Foreground(m.th.Accent()).Bold(true)
	dimTab := lipgloss.NewStyle().Foreground(m.th.Muted())
	tabs := make([]string, 0, 5)
	for v := viewParams; v <= viewSettings; v++ {
		label := fmt.Sprintf("%d:%s", int(v)+1, v)
		if v == m.view {
			tabs = append(tabs, activeTab.Render(label))
		} else {
			tabs = append(tabs, dimTab.Render(label))
		}
	}

	return header + "\n" + strings.Join(tabs, "  ")
}

func (m Model) renderFooter() string {
	var out strings.Builder

	if m.inputActive() {
		labels := map[inputMode]string{
			inputLearnTarget: "learn target",
			inputSaveLabel:   "save label",
			inputSceneName:   "new scene",
			inputRenameScene: "rename scene",
			inputRenameSave:  "rename save",
		}
		prompt := lipgloss.NewStyle().Foreground(m.th.Accent()).Render(labels[m.inputMode])
		out.WriteString(prompt)
		out.WriteString(" ")
		out.WriteString(m.input.View())
		out.WriteString("\n")
	} else if m.status != "" {
		style := lipgloss.NewStyle().Foreground(m.th.Muted())
		if m.statusErr {
			style = lipgloss.NewStyle().Foreground(m.th.Warning())
		}
		out.WriteString(style.Render(m.status))
		out.WriteString("\n")
	}

	out.WriteString(m.help.View(m))
	return out.String()
}

// ---- params ----

func (m Model) renderParams() string {
	params := m.eng.Params()
	sym := m.th.Symbols

	nameStyle := lipgloss.NewStyle().Foreground(m.th.FG())
	selStyle := lipgloss.NewStyle().Foreground(m.th.Cursor()).Bold(true)
	cursorStyle := lipgloss.NewStyle().Foreground(m.th.Cursor())
	valueStyle := lipgloss.NewStyle().Foreground(m.th.FG())
	animStyle := lipgloss.NewStyle().Foreground(m.th.Active())
	learnStyle := lipgloss.NewStyle().Foreground(m.th.Warning())
	planeStyle := lipgloss.NewStyle().Foreground(m.th.Muted()).Bold(true)

	var out strings.Builder
	lastPlane := engine.Plane(-1)
	for i, p := range params {
		if p.Plane != lastPlane {
			if i > 0 {
				out.WriteString("\n")
			}
			out.WriteString(planeStyle.Render(p.Plane.String()))
			out.WriteString("\n")
			lastPlane = p.Plane
		}

		cursor := "  "
		name := nameStyle.Render(fmt.Sprintf("%-16s", p.Name))
		if i == m.paramCursor {
			cursor = cursorStyle.Render(string(sym.Cursor)) + " "
			name = selStyle.Render(fmt.Sprintf("%-16s", p.Name))
		}

		value := fmt.Sprintf("%8.2f", p.Value)
		if p.Bool {
			if p.Value >= 0.5 {
				value = fmt.Sprintf("  %c   on", sym.ToggleOn)
			} else {
				value = fmt.Sprintf("  %c  off", sym.ToggleOff)
			}
		}

		out.WriteString(cursor)
		out.WriteString(name)
		out.WriteString(" ")
		out.WriteString(m.meter.Render(p.Norm))
		out.WriteString(valueStyle.Render(value))

		if cfg, ok := m.eng.AnimationFor(p.Name); ok {
			dir := ""
			if cfg.Direction < 0 {
				dir = " rev"
			}
			out.WriteString("  ")
			out.WriteString(animStyle.Render(fmt.Sprintf("~ %s %s %.2f%s",
				cfg.Division, cfg.Easing, cfg.Amplitude, dir)))
		}
		if m.learnFor == p.Name && m.eng.LearnPending() {
			out.WriteString("  ")
			out.WriteString(learnStyle.Render(string(sym.Learn) + " learn"))
		}
		out.WriteString("\n")
	}

	return strings.TrimRight(out.String(), "\n")
}

// ---- mappings ----

func (m Model) renderMappings() string {
	rows := m.mappingRows()

	mutedStyle := lipgloss.NewStyle().Foreground(m.th.Muted())
	rowStyle := lipgloss.NewStyle().Foreground(m.th.FG())
	selStyle := lipgloss.NewStyle().Foreground(m.th.Cursor()).Bold(true)
	cursorStyle := lipgloss.NewStyle().Foreground(m.th.Cursor())
	learnStyle := lipgloss.NewStyle().Foreground(m.th.Warning())

	var out strings.Builder

	if m.eng.LearnPending() {
		banner := string(m.th.Symbols.Learn) + " learn armed"
		if m.learnFor != "" {
			banner += " for " + m.learnFor
		}
		banner += " — move a control (esc cancels)"
		out.WriteString(learnStyle.Render(banner))
		out.WriteString("\n\n")
	}

	if len(rows) == 0 {
		out.WriteString(mutedStyle.Render("no mappings — press a to learn one"))
		return out.String()
	}

	out.WriteString(mutedStyle.Render(fmt.Sprintf("  %-14s %-5s %3s %4s  %s",
		"control", "kind", "ch", "num", "targets")))
	out.WriteString("\n")

	for i, row := range rows {
		targets := row.entry.Target
		if row.entry.P5Target != "" {
			targets += ", " + row.entry.P5Target
		}
		if row.entry.ShaderTarget != "" {
			targets += ", " + row.entry.ShaderTarget
		}

		line := fmt.Sprintf("%-14s %-5s %3d %4d  %s",
			row.id, row.kind, row.entry.Channel, row.entry.Value, targets)

		if i == m.mapCursor {
			out.WriteString(cursorStyle.Render(string(m.th.Symbols.Cursor)) + " ")
			out.WriteString(selStyle.Render(line))
		} else {
			out.WriteString("  ")
			out.WriteString(rowStyle.Render(line))
		}
		out.WriteString("\n")
	}

	return strings.TrimRight(out.String(), "\n")
}

// ---- clock ----

func (m Model) renderClock() string {
	snap := m.eng.Clock()
	sym := m.th.Symbols

	labelStyle := lipgloss.NewStyle().Foreground(m.th.Muted())
	valueStyle := lipgloss.NewStyle().Foreground(m.th.FG())
	activeStyle := lipgloss.NewStyle().Foreground(m.th.Active())

	transport := string(sym.Pause) + " paused"
	if snap.Playing {
		transport = string(sym.Play) + " playing"
	}

	var beats []string
	for b := 0; b < 4; b++ {
		if snap.Playing && b == snap.Beat {
			beats = append(beats, activeStyle.Render(string(sym.Beat)))
		} else {
			beats = append(beats, labelStyle.Render(string(sym.Tick)))
		}
	}

	var out strings.Builder
	line := func(label, value string) {
		out.WriteString(labelStyle.Render(fmt.Sprintf("%-10s", label)))
		out.WriteString(valueStyle.Render(value))
		out.WriteString("\n")
	}

	line("source", fmt.Sprintf("%s (%s)", clockLabel(snap.State), snap.State))
	line("bpm", fmt.Sprintf("%.1f", snap.BPM))
	line("position", fmt.Sprintf("bar %d  beat %d  pulse %d", snap.Bar+1, snap.Beat+1, snap.PulseCount))
	line("transport", transport)
	out.WriteString(labelStyle.Render(fmt.Sprintf("%-10s", "beats")))
	out.WriteString(strings.Join(beats, " "))
	out.WriteString("\n\n")

	out.WriteString(labelStyle.Render("division lengths at this tempo"))
	out.WriteString("\n")

	divs := clock.Divisions()
	half := (len(divs) + 1) / 2
	var left, right []string
	for i, d := range divs {
		dur, err := clock.Duration(snap.BPM, d)
		if err != nil {
			continue
		}
		s := fmt.Sprintf("%-8s %s", d, fmtSeconds(dur))
		if i < half {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	cols := lipgloss.JoinHorizontal(lipgloss.Top,
		valueStyle.Render(strings.Join(left, "\n")),
		"    ",
		valueStyle.Render(strings.Join(right, "\n")))
	out.WriteString(cols)

	return out.String()
}

func fmtSeconds(sec float64) string {
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	return fmt.Sprintf("%.2fs", sec)
}

// ---- scenes ----

func (m Model) renderScenes() string {
	mutedStyle := lipgloss.NewStyle().Foreground(m.th.Muted())
	rowStyle := lipgloss.NewStyle().Foreground(m.th.FG())
	selStyle := lipgloss.NewStyle().Foreground(m.th.Cursor()).Bold(true)
	titleStyle := lipgloss.NewStyle().Foreground(m.th.Accent())
	currentStyle := lipgloss.NewStyle().Foreground(m.th.Success())

	if len(m.scenes) == 0 {
		return mutedStyle.Render("no scenes yet — press s to save the current setup")
	}

	current := m.eng.SceneName()

	var left strings.Builder
	title := "scenes"
	if !m.savesCol {
		title += " " + string(m.th.Symbols.Cursor)
	}
	left.WriteString(titleStyle.Render(title))
	left.WriteString("\n")
	for i, name := range m.scenes {
		cursor := "  "
		style := rowStyle
		if i == m.sceneCursor {
			cursor = string(m.th.Symbols.Cursor) + " "
			if !m.savesCol {
				style = selStyle
			}
		}
		label := name
		if name == current {
			marker := " (current"
			if m.eng.Dirty() {
				marker += string(m.th.Symbols.Dirty)
			}
			marker += ")"
			label += marker
			style = currentStyle
			if i == m.sceneCursor && !m.savesCol {
				style = selStyle
			}
		}
		left.WriteString(cursor)
		left.WriteString(style.Render(label))
		left.WriteString("\n")
	}

	var right strings.Builder
	title = "saves"
	if m.savesCol {
		title += " " + string(m.th.Symbols.Cursor)
	}
	right.WriteString(titleStyle.Render(title))
	right.WriteString("\n")
	if len(m.saves) == 0 {
		right.WriteString(mutedStyle.Render("  (none)"))
		right.WriteString("\n")
	}
	for i, sv := range m.saves {
		cursor := "  "
		style := rowStyle
		if i == m.saveCursor && m.savesCol {
			cursor = string(m.th.Symbols.Cursor) + " "
			style = selStyle
		}
		label := sv.Label
		if label == "" {
			label = "(unnamed)"
		}
		right.WriteString(cursor)
		right.WriteString(style.Render(fmt.Sprintf("%-20s %s", label, sv.Timestamp.Format("Jan _2 15:04"))))
		right.WriteString("\n")
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		strings.TrimRight(left.String(), "\n"),
		"      ",
		strings.TrimRight(right.String(), "\n"))
}

// ---- settings ----

func (m Model) renderSettings() string {
	labelStyle := lipgloss.NewStyle().Foreground(m.th.Muted())
	valueStyle := lipgloss.NewStyle().Foreground(m.th.FG())

	var out strings.Builder
	line := func(label, value string) {
		out.WriteString(labelStyle.Render(fmt.Sprintf("%-10s", label)))
		out.WriteString(valueStyle.Render(value))
		out.WriteString("\n")
	}

	inputs := "(no midi)"
	if m.watcher != nil {
		if live := m.watcher.Ports(); len(live) > 0 {
			inputs = strings.Join(live, ", ")
		} else {
			inputs = "(none connected)"
		}
	}
	line("inputs", inputs)

	if len(m.cfg.MIDI.PreferredInputs) > 0 {
		line("preferred", strings.Join(m.cfg.MIDI.PreferredInputs, ", "))
	}
	if len(m.cfg.MIDI.ExcludedInputs) > 0 {
		line("excluded", strings.Join(m.cfg.MIDI.ExcludedInputs, ", "))
	}

	thru := m.thruPort
	if thru == "" {
		thru = "off"
	}
	line("thru", thru+"  (t cycles)")

	sync := "internal only"
	if m.cfg.Clock.PreferExternal {
		sync = fmt.Sprintf("prefer external, fall back after %dms", m.cfg.Clock.TimeoutMs)
	}
	line("clock", sync)
	line("ui", fmt.Sprintf("%d fps, palette %s (%d colors)",
		m.cfg.UI.FPS, m.th.Palette.Name, len(m.th.Palette.Colors)))

	audio := "off"
	if m.cfg.Audio.File != "" {
		audio = fmt.Sprintf("%s (%d mods)", m.cfg.Audio.File, len(m.cfg.Audio.Mods))
	}
	line("audio", audio)

	out.WriteString("\n")
	out.WriteString(labelStyle.Render("keys"))
	out.WriteString("\n")
	out.WriteString(valueStyle.Render(m.keyReference()))

	return out.String()
}

func (m Model) keyReference() string {
	global := []widgets.KeySection{
		{Title: "transport", Keys: []widgets.KeyBinding{
			{Key: "space", Desc: "play/pause"},
			{Key: "0", Desc: "rewind"},
			{Key: "+/-", Desc: "bpm"},
		}},
		{Title: "views", Keys: []widgets.KeyBinding{
			{Key: "1-5", Desc: "switch view"},
			{Key: "?", Desc: "expand help"},
			{Key: "q", Desc: "quit"},
		}},
	}
	params := []widgets.KeySection{
		{Title: "params", Keys: []widgets.KeyBinding{
			{Key: "j/k", Desc: "select"},
			{Key: "h/l", Desc: "adjust"},
			{Key: "H/L", Desc: "coarse adjust"},
			{Key: "d", Desc: "default"},
			{Key: "m", Desc: "midi learn"},
			{Key: "enter", Desc: "toggle bool"},
		}},
	}
	anim := []widgets.KeySection{
		{Title: "animation", Keys: []widgets.KeyBinding{
			{Key: "e", Desc: "on/off"},
			{Key: "[/]", Desc: "division"},
			{Key: ",/.", Desc: "amount"},
			{Key: "w", Desc: "waveform"},
			{Key: "f", Desc: "direction"},
		}},
	}
	other := []widgets.KeySection{
		{Title: "mappings", Keys: []widgets.KeyBinding{
			{Key: "a", Desc: "add by learn"},
			{Key: "d", Desc: "delete"},
			{Key: "t", Desc: "test values"},
		}},
		{Title: "scenes", Keys: []widgets.KeyBinding{
			{Key: "enter", Desc: "load"},
			{Key: "s", Desc: "save"},
			{Key: "n/r/d", Desc: "new/rename/delete"},
		}},
	}
	return widgets.RenderKeyColumns(global, params, anim, other)
}
