package engine

import (
	"fmt"
	"sync"
	"time"

	"go-modulate/clock"
	"go-modulate/debug"
	"go-modulate/midi"

	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
)

// Stepper advances a frame-synchronous modulation source (audio bands).
// pos is transport position in seconds; it pauses and rewinds with the
// clock.
type Stepper interface {
	Step(pos, dt float64)
	Close()
}

// Config assembles an engine
type Config struct {
	Clock       clock.Config
	FPS         int          // frame loop rate, default 60
	ScenesDir   string       // default ~/.config/go-modulate/scenes
	ThruPort    string       // optional output to forward matched events to
	Descriptors []Descriptor // default DefaultDescriptors()
}

// Engine owns the clock, the parameter registry, the router and the
// animator, and runs the two loops that connect them: a frame loop that
// advances musical time and modulation, and an intake loop that drains
// decoded MIDI in arrival order.
type Engine struct {
	cfg Config

	clk    *clock.Source
	params *Registry
	router *Router
	anim   *Animator
	scenes *SceneStore

	mu       sync.Mutex
	running  bool
	scene    string
	dirty    bool
	mod      Stepper
	stopChan chan struct{}

	wg       sync.WaitGroup
	notifyUI chan struct{}

	thruMu    sync.Mutex
	thruPort  string
	thruSend  func(gomidi.Message) error
	thruClose func()
	thruRetry time.Time
}

// New assembles an engine from a config. Zero-value fields fall back to
// defaults; the scenes dir falls back to the home config dir.
func New(cfg Config) *Engine {
	if cfg.FPS <= 0 {
		cfg.FPS = 60
	}
	if cfg.Descriptors == nil {
		cfg.Descriptors = DefaultDescriptors()
	}
	if cfg.ScenesDir == "" {
		if dir, err := DefaultScenesDir(); err == nil {
			cfg.ScenesDir = dir
		}
	}

	params := NewRegistry(cfg.Descriptors)
	clk := clock.NewSource(cfg.Clock)

	e := &Engine{
		cfg:      cfg,
		clk:      clk,
		params:   params,
		router:   NewRouter(params),
		anim:     NewAnimator(params, clk.BPM()),
		scenes:   NewSceneStore(cfg.ScenesDir),
		thruPort: cfg.ThruPort,
		notifyUI: make(chan struct{}, 1),
	}
	e.router.SetThru(e.forwardThru)
	return e
}

// Start launches the frame and intake loops. events may be nil when the
// engine runs without MIDI input.
func (e *Engine) Start(events <-chan midi.Event) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopChan = make(chan struct{})
	stop := e.stopChan
	e.mu.Unlock()

	e.wg.Add(1)
	go e.frameLoop(stop)
	if events != nil {
		e.wg.Add(1)
		go e.intakeLoop(stop, events)
	}
	debug.Info("engine", "started at %d fps", e.cfg.FPS)
}

// Stop shuts both loops down and releases the thru port. The engine can
// be started again afterwards.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopChan)
	mod := e.mod
	e.mod = nil
	e.mu.Unlock()

	e.wg.Wait()
	e.anim.StopAll()
	if mod != nil {
		mod.Close()
	}
	e.closeThru()
	debug.Info("engine", "stopped")
}

// Updates signals the UI that state worth redrawing changed. 1-buffered;
// a slow consumer only coalesces redraws.
func (e *Engine) Updates() <-chan struct{} {
	return e.notifyUI
}

func (e *Engine) notify() {
	select {
	case e.notifyUI <- struct{}{}:
	default:
	}
}

// frameLoop drives the clock, the animator and the modulation stepper
// from one ticker. Nothing here blocks: a stalled UI costs redraws, not
// musical time.
func (e *Engine) frameLoop(stop <-chan struct{}) {
	defer e.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(e.cfg.FPS))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case <-e.params.FrameRequests():
			// value changed while paused; redraw once
			e.notify()
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			e.frame(now, dt)
		}
	}
}

// frame advances one tick of musical time. Split out so tests can step
// deterministically.
func (e *Engine) frame(now time.Time, dt float64) {
	e.clk.Tick(now)

	select {
	case <-e.clk.BPMChanged():
		e.anim.Resync(e.clk.BPM())
	default:
	}

	if !e.clk.Playing() {
		return
	}

	e.anim.Advance(dt)
	if mod := e.modulator(); mod != nil {
		mod.Step(e.clk.Elapsed(), dt)
	}
	e.notify()
}

// intakeLoop drains decoded MIDI strictly in arrival order. One
// goroutine, so a CC and the clock pulse behind it can never reorder.
func (e *Engine) intakeLoop(stop <-chan struct{}, events <-chan midi.Event) {
	defer e.wg.Done()

	for {
		select {
		case <-stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.intake(ev)
		}
	}
}

func (e *Engine) intake(ev midi.Event) {
	switch ev.Kind {
	case midi.KindClock:
		e.clk.ExternalPulse(ev.Time)
	case midi.KindStart:
		e.clk.ExternalStart(ev.Time)
		e.anim.Resync(e.clk.BPM())
		e.notify()
	case midi.KindContinue:
		e.clk.ExternalContinue(ev.Time)
		e.notify()
	case midi.KindStop:
		e.clk.ExternalStop(ev.Time)
		e.notify()
	case midi.KindCC:
		e.router.OnControlChange(ev.Channel, ev.Number, ev.Value)
	case midi.KindNoteOn:
		e.router.OnNote(ev.Channel, ev.Number, ev.Value, true)
	case midi.KindNoteOff:
		e.router.OnNote(ev.Channel, ev.Number, ev.Value, false)
	case midi.KindPitchBend:
		e.router.OnPitchBend(ev.Channel, ev.Bend)
	}
}

// ---- transport facade ----

// Play starts the transport. Animation phases restart so cycles stay
// aligned with beat one.
func (e *Engine) Play() {
	if e.clk.Playing() {
		return
	}
	e.clk.Start(time.Now())
	e.anim.Resync(e.clk.BPM())
	e.notify()
}

// Pause stops musical time, keeping the transport position
func (e *Engine) Pause() {
	e.clk.Stop()
	e.notify()
}

// TogglePlay flips between Play and Pause
func (e *Engine) TogglePlay() {
	if e.clk.Playing() {
		e.Pause()
	} else {
		e.Play()
	}
}

// ResetTransport rewinds to pulse zero without changing the run state
func (e *Engine) ResetTransport() {
	e.clk.Reset()
	e.anim.Resync(e.clk.BPM())
	e.notify()
}

// SetBPM adopts a new internal tempo
func (e *Engine) SetBPM(bpm float64) {
	e.clk.SetBPM(bpm)
	e.notify()
}

// NudgeBPM adjusts the tempo by delta
func (e *Engine) NudgeBPM(delta float64) {
	e.SetBPM(e.clk.BPM() + delta)
}

// BPM returns the current tempo
func (e *Engine) BPM() float64 {
	return e.clk.BPM()
}

// Clock returns a read-only transport snapshot
func (e *Engine) Clock() clock.Snapshot {
	return e.clk.Snapshot()
}

// ---- parameter facade ----

// Params returns every parameter in declaration order
func (e *Engine) Params() []ParamValue {
	return e.params.Snapshot()
}

// Registry exposes the live parameter registry. External modulation
// sources write their offsets through it.
func (e *Engine) Registry() *Registry {
	return e.params
}

// Descriptor returns the declaration for a target
func (e *Engine) Descriptor(target string) (Descriptor, bool) {
	return e.params.Descriptor(target)
}

// Apply sets a target's base value from a normalized [0,1] input
func (e *Engine) Apply(target string, norm float64) {
	e.params.Apply(target, norm, "ui")
}

// Nudge moves a target's base value by whole steps (UI arrow keys)
func (e *Engine) Nudge(target string, steps int) {
	d, ok := e.params.Descriptor(target)
	if !ok {
		return
	}
	step := d.Step
	if step <= 0 {
		step = (d.Max - d.Min) / 100
	}
	v := e.params.BaseValue(target) + float64(steps)*step
	norm := 0.0
	if d.Max > d.Min {
		norm = (v - d.Min) / (d.Max - d.Min)
	}
	e.params.Apply(target, norm, "ui")
}

// Toggle flips a boolean target
func (e *Engine) Toggle(target string) {
	e.params.Toggle(target, "ui")
}

// ResetParams returns every parameter to its default
func (e *Engine) ResetParams() {
	e.params.Reset()
	e.notify()
}

// ---- animation facade ----

// Animate configures (or cancels) the animation on a target
func (e *Engine) Animate(target string, cfg AnimConfig) error {
	if err := e.anim.Configure(target, cfg); err != nil {
		return err
	}
	e.markDirty()
	e.notify()
	return nil
}

// AnimationFor returns the live animation config for a target
func (e *Engine) AnimationFor(target string) (AnimConfig, bool) {
	return e.anim.Config(target)
}

// Animations returns a sorted snapshot of active animations
func (e *Engine) Animations() []AnimStatus {
	return e.anim.Active()
}

// ---- mapping facade ----

// controlID names a learned control: cc74-ch0, note36-ch9
func controlID(ev ControlEvent) string {
	switch ev.Kind {
	case KindCC:
		return fmt.Sprintf("cc%d-ch%d", ev.Number, ev.Channel)
	case KindNote:
		return fmt.Sprintf("note%d-ch%d", ev.Number, ev.Channel)
	}
	return fmt.Sprintf("bend-ch%d", ev.Channel)
}

// LearnTarget arms learn mode: the next CC or note-on becomes a mapping
// to target, replacing any previous row for the same control
func (e *Engine) LearnTarget(target string) {
	e.router.Learn(func(ev ControlEvent) error {
		id := controlID(ev)
		entry := MappingEntry{Channel: ev.Channel, Value: ev.Number, Target: target}

		var err error
		switch ev.Kind {
		case KindCC:
			err = e.router.SetCCMapping(id, entry)
		case KindNote:
			err = e.router.SetNoteMapping(id, entry)
		default:
			return errors.Errorf("cannot learn from %s", ev.Kind)
		}
		if err != nil {
			return err
		}

		debug.Info("engine", "learned %s -> %s", id, target)
		e.markDirty()
		e.notify()
		return nil
	})
	e.notify()
}

// CancelLearn disarms learn mode
func (e *Engine) CancelLearn() {
	e.router.CancelLearn()
	e.notify()
}

// LearnPending reports whether learn mode is armed
func (e *Engine) LearnPending() bool {
	return e.router.LearnPending()
}

// CCMappings returns a copy of the CC mapping table
func (e *Engine) CCMappings() map[string]MappingEntry {
	return e.router.CCMappings()
}

// NoteMappings returns a copy of the note mapping table
func (e *Engine) NoteMappings() map[string]MappingEntry {
	return e.router.NoteMappings()
}

// SetCCMapping adds or replaces a CC table row by hand
func (e *Engine) SetCCMapping(id string, entry MappingEntry) error {
	if err := e.router.SetCCMapping(id, entry); err != nil {
		return err
	}
	e.markDirty()
	e.notify()
	return nil
}

// SetNoteMapping adds or replaces a note table row by hand
func (e *Engine) SetNoteMapping(id string, entry MappingEntry) error {
	if err := e.router.SetNoteMapping(id, entry); err != nil {
		return err
	}
	e.markDirty()
	e.notify()
	return nil
}

// RemoveMapping deletes a row from whichever table holds it
func (e *Engine) RemoveMapping(id string) {
	e.router.RemoveCCMapping(id)
	e.router.RemoveNoteMapping(id)
	e.markDirty()
	e.notify()
}

// TestCCValues replays every mapping with a mid-range value
func (e *Engine) TestCCValues() {
	e.router.TestCCValues()
	e.notify()
}

// ---- scene facade ----

// Store exposes the scene store for browsing and management
func (e *Engine) Store() *SceneStore {
	return e.scenes
}

// SceneName returns the scene saves currently write into
func (e *Engine) SceneName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scene
}

// SetSceneName retargets saves without loading anything
func (e *Engine) SetSceneName(name string) {
	e.mu.Lock()
	e.scene = name
	e.mu.Unlock()
	e.notify()
}

// Dirty reports unsaved mapping or animation changes
func (e *Engine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

func (e *Engine) markDirty() {
	e.mu.Lock()
	e.dirty = true
	e.mu.Unlock()
}

// SaveScene writes the current mappings and animations as a new
// timestamped save in the current scene, and returns the filename
func (e *Engine) SaveScene(label string) (string, error) {
	sf := SceneFile{
		CCMappings:   e.router.CCMappings(),
		NoteMappings: e.router.NoteMappings(),
		Animations:   e.anim.Configs(),
	}

	e.mu.Lock()
	scene := e.scene
	e.mu.Unlock()

	filename, err := e.scenes.Write(scene, label, sf)
	if err != nil {
		return "", errors.Wrap(err, "save scene")
	}

	e.mu.Lock()
	if e.scene == "" {
		e.scene = "untitled"
	}
	e.dirty = false
	e.mu.Unlock()

	debug.Info("engine", "saved scene %s/%s", scene, filename)
	e.notify()
	return filename, nil
}

// LoadScene replaces the mapping tables and animations from a save
// (newest save when filename is empty). A malformed file changes
// nothing.
func (e *Engine) LoadScene(name, filename string) error {
	sf, err := e.scenes.Read(name, filename)
	if err != nil {
		return err
	}

	e.router.ReplaceMappings(sf.CCMappings, sf.NoteMappings)
	e.anim.ApplyConfigs(sf.Animations)

	e.mu.Lock()
	e.scene = name
	e.dirty = false
	e.mu.Unlock()

	debug.Info("engine", "loaded scene %s (%d cc, %d note, %d anim)",
		name, len(sf.CCMappings), len(sf.NoteMappings), len(sf.Animations))
	e.notify()
	return nil
}

// ---- modulation ----

// SetModulator installs (or replaces) the frame-synchronous modulation
// source; nil just removes the old one
func (e *Engine) SetModulator(mod Stepper) {
	e.mu.Lock()
	old := e.mod
	e.mod = mod
	e.mu.Unlock()

	if old != nil {
		old.Close()
	}
	e.notify()
}

func (e *Engine) modulator() Stepper {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mod
}

// ---- thru ----

// SetThruPort retargets event forwarding; empty disables it
func (e *Engine) SetThruPort(name string) {
	e.thruMu.Lock()
	if e.thruClose != nil {
		e.thruClose()
		e.thruClose = nil
	}
	e.thruSend = nil
	e.thruPort = name
	e.thruRetry = time.Time{}
	e.thruMu.Unlock()

	if name != "" {
		debug.Info("engine", "thru port set to %s", name)
	}
}

// forwardThru re-emits a matched event on the thru port. The sender is
// opened lazily so the port may appear after startup; open failures
// back off for a few seconds instead of rescanning per event.
func (e *Engine) forwardThru(ev ControlEvent) {
	send := e.thruSender()
	if send == nil {
		return
	}

	var msg gomidi.Message
	switch ev.Kind {
	case KindCC:
		msg = gomidi.ControlChange(ev.Channel, ev.Number, uint8(ev.Value))
	case KindNote:
		msg = gomidi.NoteOn(ev.Channel, ev.Number, uint8(ev.Value))
	case KindPitchBend:
		msg = gomidi.Pitchbend(ev.Channel, int16(ev.Value-midi.BendCenter))
	default:
		return
	}

	if err := send(msg); err != nil {
		debug.Warn("engine", "thru send: %v", err)
	}
}

func (e *Engine) thruSender() func(gomidi.Message) error {
	e.thruMu.Lock()
	defer e.thruMu.Unlock()

	if e.thruPort == "" {
		return nil
	}
	if e.thruSend != nil {
		return e.thruSend
	}
	if time.Now().Before(e.thruRetry) {
		return nil
	}

	send, closer, err := midi.OpenSender(e.thruPort)
	if err != nil {
		debug.Warn("engine", "thru %s: %v", e.thruPort, err)
		e.thruRetry = time.Now().Add(5 * time.Second)
		return nil
	}
	e.thruSend = send
	e.thruClose = closer
	return send
}

func (e *Engine) closeThru() {
	e.thruMu.Lock()
	defer e.thruMu.Unlock()
	if e.thruClose != nil {
		e.thruClose()
		e.thruClose = nil
	}
	e.thruSend = nil
}
