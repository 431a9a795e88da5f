package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"go-modulate/clock"
	"go-modulate/config"
	"go-modulate/engine"
	"go-modulate/midi"
	"go-modulate/theme"
	"go-modulate/widgets"
)

type view int

const (
	viewParams view = iota
	viewMappings
	viewClock
	viewScenes
	viewSettings
)

func (v view) String() string {
	switch v {
	case viewParams:
		return "params"
	case viewMappings:
		return "maps"
	case viewClock:
		return "clock"
	case viewScenes:
		return "scenes"
	case viewSettings:
		return "setup"
	}
	return "?"
}

type inputMode int

const (
	inputNone inputMode = iota
	inputLearnTarget
	inputSaveLabel
	inputSceneName
	inputRenameScene
	inputRenameSave
)

type Model struct {
	eng     *engine.Engine
	watcher *midi.Watcher // may be nil when no MIDI backend is up
	th      *theme.Theme
	cfg     config.Config

	keys  keyMap
	help  help.Model
	input textinput.Model
	meter *widgets.Meter

	view      view
	inputMode inputMode
	quitting  bool

	status    string
	statusErr bool

	// params view
	paramCursor int
	learnFor    string
	lastAnim    map[string]engine.AnimConfig

	// mappings view
	mapCursor int

	// scenes view
	savesCol      bool
	sceneCursor   int
	saveCursor    int
	scenes        []string
	saves         []engine.SaveInfo
	renameFrom    string
	pendingDelete string

	// settings view
	thruPort string
	inPorts  []string
	outPorts []string
}

// UpdateMsg redraws after an engine state change
type UpdateMsg struct{}

// DeviceMsg reports a MIDI port appearing or vanishing
type DeviceMsg midi.DeviceEvent

func NewModel(eng *engine.Engine, watcher *midi.Watcher, th *theme.Theme, cfg config.Config) Model {
	input := textinput.New()
	input.CharLimit = 48
	input.Width = 32
	input.Prompt = "> "

	m := Model{
		eng:      eng,
		watcher:  watcher,
		th:       th,
		cfg:      cfg,
		keys:     newKeyMap(),
		help:     help.New(),
		input:    input,
		meter:    widgets.NewMeter(th, 18),
		lastAnim: map[string]engine.AnimConfig{},
		thruPort: cfg.MIDI.ThruPort,
	}
	m.refreshScenes()
	return m
}

func listenForUpdates(eng *engine.Engine) tea.Cmd {
	return func() tea.Msg {
		<-eng.Updates()
		return UpdateMsg{}
	}
}

func listenForDevices(w *midi.Watcher) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-w.Devices()
		if !ok {
			return nil
		}
		return DeviceMsg(ev)
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{listenForUpdates(m.eng)}
	if m.watcher != nil {
		cmds = append(cmds, listenForDevices(m.watcher))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.inputActive() {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)

	case UpdateMsg:
		if m.learnFor != "" && !m.eng.LearnPending() {
			m.setStatus("mapped -> %s", m.learnFor)
			m.learnFor = ""
		}
		return m, listenForUpdates(m.eng)

	case DeviceMsg:
		ev := midi.DeviceEvent(msg)
		if ev.Type == midi.DeviceConnected {
			m.setStatus("midi: %s connected", ev.Port)
		} else {
			m.setStatus("midi: %s disconnected", ev.Port)
		}
		m.refreshPorts()
		return m, listenForDevices(m.watcher)
	}

	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// transport and view switching work everywhere
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.eng.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Play):
		m.eng.TogglePlay()
		return m, nil

	case key.Matches(msg, m.keys.Rewind):
		m.eng.ResetTransport()
		return m, nil

	case key.Matches(msg, m.keys.BPMUp):
		m.eng.NudgeBPM(1)
		return m, nil

	case key.Matches(msg, m.keys.BPMDown):
		m.eng.NudgeBPM(-1)
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	switch msg.String() {
	case "1":
		m.view = viewParams
		return m, nil
	case "2":
		m.view = viewMappings
		return m, nil
	case "3":
		m.view = viewClock
		return m, nil
	case "4":
		m.view = viewScenes
		m.refreshScenes()
		return m, nil
	case "5":
		m.view = viewSettings
		m.refreshPorts()
		return m, nil
	}

	switch m.view {
	case viewParams:
		return m.updateParams(msg)
	case viewMappings:
		return m.updateMappings(msg)
	case viewScenes:
		return m.updateScenes(msg)
	case viewSettings:
		return m.updateSettings(msg)
	}
	return m, nil
}

// ---- params view ----

func (m Model) updateParams(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	params := m.eng.Params()
	if len(params) == 0 {
		return m, nil
	}
	if m.paramCursor >= len(params) {
		m.paramCursor = len(params) - 1
	}
	p := params[m.paramCursor]

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.paramCursor > 0 {
			m.paramCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.paramCursor < len(params)-1 {
			m.paramCursor++
		}
	case key.Matches(msg, m.keys.Left):
		m.adjustParam(p, -1)
	case key.Matches(msg, m.keys.Right):
		m.adjustParam(p, 1)
	case key.Matches(msg, m.keys.BigLeft):
		m.adjustParam(p, -10)
	case key.Matches(msg, m.keys.BigRight):
		m.adjustParam(p, 10)
	case key.Matches(msg, m.keys.Confirm):
		if p.Bool {
			m.eng.Toggle(p.Name)
		}
	case key.Matches(msg, m.keys.Default):
		m.resetParam(p.Name)
	case key.Matches(msg, m.keys.Learn):
		m.eng.LearnTarget(p.Name)
		m.learnFor = p.Name
		m.setStatus("learn: move a control for %s (esc cancels)", p.Name)
	case key.Matches(msg, m.keys.Cancel):
		m.cancelLearn()
	case key.Matches(msg, m.keys.AnimOn):
		m.toggleAnim(p.Name)
	case key.Matches(msg, m.keys.DivDown):
		m.cycleDivision(p.Name, -1)
	case key.Matches(msg, m.keys.DivUp):
		m.cycleDivision(p.Name, 1)
	case key.Matches(msg, m.keys.AmpDown):
		m.adjustAmplitude(p.Name, -0.05)
	case key.Matches(msg, m.keys.AmpUp):
		m.adjustAmplitude(p.Name, 0.05)
	case key.Matches(msg, m.keys.Wave):
		m.cycleEasing(p.Name)
	case key.Matches(msg, m.keys.Flip):
		m.flipDirection(p.Name)
	}
	return m, nil
}

func (m Model) adjustParam(p engine.ParamValue, steps int) {
	if p.Bool {
		m.eng.Toggle(p.Name)
		return
	}
	m.eng.Nudge(p.Name, steps)
}

func (m Model) resetParam(name string) {
	d, ok := m.eng.Descriptor(name)
	if !ok {
		return
	}
	norm := 0.0
	if d.Max > d.Min {
		norm = (d.Default - d.Min) / (d.Max - d.Min)
	}
	m.eng.Apply(name, norm)
}

func (m *Model) cancelLearn() {
	if m.eng.LearnPending() {
		m.eng.CancelLearn()
		m.learnFor = ""
		m.setStatus("learn cancelled")
	}
}

func (m *Model) toggleAnim(target string) {
	if cfg, ok := m.eng.AnimationFor(target); ok {
		m.lastAnim[target] = cfg
		cfg.Enabled = false
		if err := m.eng.Animate(target, cfg); err != nil {
			m.setErr("%v", err)
			return
		}
		m.setStatus("animation off: %s", target)
		return
	}

	cfg, ok := m.lastAnim[target]
	if !ok {
		cfg = engine.AnimConfig{
			Amplitude: 0.25,
			Division:  clock.Div1Bar,
			Easing:    engine.EaseSineInOut,
			Direction: 1,
		}
	}
	cfg.Enabled = true
	if err := m.eng.Animate(target, cfg); err != nil {
		m.setErr("%v", err)
		return
	}
	m.setStatus("animating %s", target)
}

func (m *Model) cycleDivision(target string, dir int) {
	cfg, ok := m.eng.AnimationFor(target)
	if !ok {
		return
	}

	divs := clock.Divisions()
	i := 0
	for n, d := range divs {
		if d == cfg.Division {
			i = n
			break
		}
	}
	i += dir
	if i < 0 {
		i = 0
	}
	if i >= len(divs) {
		i = len(divs) - 1
	}

	cfg.Division = divs[i]
	if err := m.eng.Animate(target, cfg); err != nil {
		m.setErr("%v", err)
	}
}

func (m *Model) adjustAmplitude(target string, delta float64) {
	cfg, ok := m.eng.AnimationFor(target)
	if !ok {
		return
	}
	cfg.Amplitude += delta
	if cfg.Amplitude < 0 {
		cfg.Amplitude = 0
	}
	if cfg.Amplitude > 1 {
		cfg.Amplitude = 1
	}
	if err := m.eng.Animate(target, cfg); err != nil {
		m.setErr("%v", err)
	}
}

func (m *Model) cycleEasing(target string) {
	cfg, ok := m.eng.AnimationFor(target)
	if !ok {
		return
	}

	eases := engine.Easings()
	i := 0
	for n, e := range eases {
		if e == cfg.Easing {
			i = n
			break
		}
	}
	cfg.Easing = eases[(i+1)%len(eases)]
	if err := m.eng.Animate(target, cfg); err != nil {
		m.setErr("%v", err)
	}
}

func (m *Model) flipDirection(target string) {
	cfg, ok := m.eng.AnimationFor(target)
	if !ok {
		return
	}
	cfg.Direction = -cfg.Direction
	if err := m.eng.Animate(target, cfg); err != nil {
		m.setErr("%v", err)
	}
}

// ---- mappings view ----

type mappingRow struct {
	id    string
	kind  string
	entry engine.MappingEntry
}

func (m Model) mappingRows() []mappingRow {
	var rows []mappingRow
	for id, e := range m.eng.CCMappings() {
		rows = append(rows, mappingRow{id: id, kind: "cc", entry: e})
	}
	for id, e := range m.eng.NoteMappings() {
		rows = append(rows, mappingRow{id: id, kind: "note", entry: e})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].id < rows[j].id })
	return rows
}

func (m Model) updateMappings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.mappingRows()
	if m.mapCursor >= len(rows) && len(rows) > 0 {
		m.mapCursor = len(rows) - 1
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.mapCursor > 0 {
			m.mapCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.mapCursor < len(rows)-1 {
			m.mapCursor++
		}
	case key.Matches(msg, m.keys.Add):
		m.openInput(inputLearnTarget, "target name", "")
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Delete):
		if m.mapCursor < len(rows) {
			id := rows[m.mapCursor].id
			m.eng.RemoveMapping(id)
			m.setStatus("removed %s", id)
			if m.mapCursor > 0 {
				m.mapCursor--
			}
		}
	case key.Matches(msg, m.keys.Test):
		m.eng.TestCCValues()
		m.setStatus("test values applied to every mapping")
	case key.Matches(msg, m.keys.Cancel):
		m.cancelLearn()
	}
	return m, nil
}

// ---- scenes view ----

func (m Model) updateScenes(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.pendingDelete = ""
		if m.savesCol {
			if m.saveCursor > 0 {
				m.saveCursor--
			}
		} else if m.sceneCursor > 0 {
			m.sceneCursor--
			m.saveCursor = 0
			m.refreshSaves()
		}
	case key.Matches(msg, m.keys.Down):
		m.pendingDelete = ""
		if m.savesCol {
			if m.saveCursor < len(m.saves)-1 {
				m.saveCursor++
			}
		} else if m.sceneCursor < len(m.scenes)-1 {
			m.sceneCursor++
			m.saveCursor = 0
			m.refreshSaves()
		}
	case key.Matches(msg, m.keys.Left):
		m.savesCol = false
		m.pendingDelete = ""
	case key.Matches(msg, m.keys.Right):
		if len(m.saves) > 0 {
			m.savesCol = true
		}
		m.pendingDelete = ""
	case key.Matches(msg, m.keys.Confirm):
		m.loadSelected()
	case key.Matches(msg, m.keys.Save):
		m.openInput(inputSaveLabel, "label (optional)", "")
		return m, textinput.Blink
	case key.Matches(msg, m.keys.New):
		m.openInput(inputSceneName, "scene name", "")
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Rename):
		if m.savesCol {
			if sv, ok := m.selectedSave(); ok {
				m.renameFrom = sv.Filename
				m.openInput(inputRenameSave, "new label", sv.Label)
				return m, textinput.Blink
			}
		} else if scene := m.selectedScene(); scene != "" {
			m.renameFrom = scene
			m.openInput(inputRenameScene, "new name", scene)
			return m, textinput.Blink
		}
	case key.Matches(msg, m.keys.Delete):
		m.deleteSelected()
	case key.Matches(msg, m.keys.Cancel):
		m.pendingDelete = ""
	}
	return m, nil
}

func (m Model) selectedScene() string {
	if m.sceneCursor < len(m.scenes) {
		return m.scenes[m.sceneCursor]
	}
	return ""
}

func (m Model) selectedSave() (engine.SaveInfo, bool) {
	if m.saveCursor < len(m.saves) {
		return m.saves[m.saveCursor], true
	}
	return engine.SaveInfo{}, false
}

func (m *Model) refreshScenes() {
	scenes, err := m.eng.Store().Scenes()
	if err != nil {
		m.setErr("scenes: %v", err)
		return
	}
	m.scenes = scenes
	if m.sceneCursor >= len(scenes) {
		m.sceneCursor = len(scenes) - 1
	}
	if m.sceneCursor < 0 {
		m.sceneCursor = 0
	}
	m.refreshSaves()
}

func (m *Model) refreshSaves() {
	m.saves = nil
	scene := m.selectedScene()
	if scene == "" {
		m.saveCursor = 0
		m.savesCol = false
		return
	}

	saves, err := m.eng.Store().Saves(scene)
	if err != nil {
		m.setErr("saves: %v", err)
		return
	}
	m.saves = saves
	if m.saveCursor >= len(saves) {
		m.saveCursor = len(saves) - 1
	}
	if m.saveCursor < 0 {
		m.saveCursor = 0
	}
	if len(saves) == 0 {
		m.savesCol = false
	}
}

func (m *Model) loadSelected() {
	scene := m.selectedScene()
	if scene == "" {
		return
	}

	filename := ""
	if m.savesCol {
		sv, ok := m.selectedSave()
		if !ok {
			return
		}
		filename = sv.Filename
	}

	if err := m.eng.LoadScene(scene, filename); err != nil {
		m.setErr("load: %v", err)
		return
	}
	m.setStatus("loaded %s", scene)
}

func (m *Model) deleteSelected() {
	var confirmKey, what string
	if m.savesCol {
		sv, ok := m.selectedSave()
		if !ok {
			return
		}
		confirmKey = "save:" + m.selectedScene() + "/" + sv.Filename
		what = sv.Filename
	} else {
		scene := m.selectedScene()
		if scene == "" {
			return
		}
		confirmKey = "scene:" + scene
		what = scene
	}

	if m.pendingDelete != confirmKey {
		m.pendingDelete = confirmKey
		m.setStatus("delete %s? press d again", what)
		return
	}
	m.pendingDelete = ""

	var err error
	if m.savesCol {
		sv, _ := m.selectedSave()
		err = m.eng.Store().DeleteSave(m.selectedScene(), sv.Filename)
	} else {
		err = m.eng.Store().Delete(m.selectedScene())
	}
	if err != nil {
		m.setErr("delete: %v", err)
		return
	}
	m.refreshScenes()
	m.setStatus("deleted %s", what)
}

// ---- settings view ----

func (m Model) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Thru) {
		m.cycleThru()
	}
	return m, nil
}

func (m *Model) cycleThru() {
	outs := midi.OutputNames()
	m.outPorts = outs

	options := append([]string{""}, outs...)
	i := 0
	for n, name := range options {
		if name == m.thruPort {
			i = n
			break
		}
	}
	m.thruPort = options[(i+1)%len(options)]
	m.eng.SetThruPort(m.thruPort)

	if m.thruPort == "" {
		m.setStatus("thru: off")
	} else {
		m.setStatus("thru: %s", m.thruPort)
	}
}

func (m *Model) refreshPorts() {
	if m.watcher != nil {
		m.inPorts = m.watcher.Ports()
	}
	m.outPorts = midi.OutputNames()
}

// ---- text input ----

func (m Model) inputActive() bool {
	return m.inputMode != inputNone
}

func (m *Model) openInput(mode inputMode, placeholder, value string) {
	m.inputMode = mode
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		value := strings.TrimSpace(m.input.Value())
		mode := m.inputMode
		m.inputMode = inputNone
		m.input.Blur()
		m.input.Reset()
		m.commitInput(mode, value)
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		m.inputMode = inputNone
		m.input.Blur()
		m.input.Reset()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) commitInput(mode inputMode, value string) {
	switch mode {
	case inputLearnTarget:
		if value == "" {
			return
		}
		if _, ok := m.eng.Descriptor(value); !ok {
			m.setErr("unknown target %q", value)
			return
		}
		m.eng.LearnTarget(value)
		m.learnFor = value
		m.setStatus("learn: move a control for %s (esc cancels)", value)

	case inputSaveLabel:
		filename, err := m.eng.SaveScene(value)
		if err != nil {
			m.setErr("save: %v", err)
			return
		}
		m.refreshScenes()
		m.setStatus("saved %s", filename)

	case inputSceneName:
		if value == "" {
			return
		}
		if err := m.eng.Store().Create(value); err != nil {
			m.setErr("create: %v", err)
			return
		}
		m.eng.SetSceneName(value)
		m.refreshScenes()
		m.setStatus("scene %s (save with s)", value)

	case inputRenameScene:
		if value == "" || m.renameFrom == "" {
			return
		}
		if err := m.eng.Store().Rename(m.renameFrom, value); err != nil {
			m.setErr("rename: %v", err)
			return
		}
		if m.eng.SceneName() == m.renameFrom {
			m.eng.SetSceneName(value)
		}
		m.refreshScenes()
		m.setStatus("renamed to %s", value)

	case inputRenameSave:
		scene := m.selectedScene()
		if scene == "" || m.renameFrom == "" {
			return
		}
		if err := m.eng.Store().RenameSave(scene, m.renameFrom, value); err != nil {
			m.setErr("rename: %v", err)
			return
		}
		m.refreshSaves()
		m.setStatus("relabeled %s", m.renameFrom)
	}
}

// ---- status line ----

func (m *Model) setStatus(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.statusErr = false
}

func (m *Model) setErr(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.statusErr = true
}
