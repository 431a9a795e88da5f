package engine

import (
	"math"
	"sync"
	"testing"
	"time"

	"go-modulate/clock"
	"go-modulate/midi"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return New(Config{
		Clock:     clock.Config{BPM: 120},
		FPS:       60,
		ScenesDir: t.TempDir(),
		Descriptors: []Descriptor{
			{Name: "blur", Min: 0, Max: 1, Step: 0.01, Default: 0.2},
			{Name: "gain", Min: 0, Max: 2, Step: 0.1, Default: 1},
			{Name: "invert", Min: 0, Max: 1, Step: 1, Bool: true},
		},
	})
}

func TestEngineIntakeAppliesMappedCC(t *testing.T) {
	e := testEngine(t)
	if err := e.SetCCMapping("cc74-ch0", MappingEntry{Channel: 0, Value: 74, Target: "blur"}); err != nil {
		t.Fatal(err)
	}

	e.intake(midi.Event{Kind: midi.KindCC, Channel: 0, Number: 74, Value: 127})

	if v := e.params.Value("blur"); v != 1 {
		t.Errorf("blur = %v after full-range CC, want 1", v)
	}

	// different channel, same controller: no match
	e.intake(midi.Event{Kind: midi.KindCC, Channel: 1, Number: 74, Value: 0})
	if v := e.params.Value("blur"); v != 1 {
		t.Errorf("blur = %v after wrong-channel CC, want 1", v)
	}
}

func TestEngineIntakeTransport(t *testing.T) {
	e := testEngine(t)
	base := time.Now()

	// clock bytes while stopped do not start playback
	e.intake(midi.Event{Kind: midi.KindClock, Time: base})
	if e.Clock().Playing {
		t.Fatal("clock byte started playback")
	}

	e.intake(midi.Event{Kind: midi.KindStart, Time: base})
	if !e.Clock().Playing {
		t.Fatal("start byte did not start playback")
	}

	// one beat of pulses
	interval := 500 * time.Millisecond / clock.PulsesPerQuarter
	for i := 1; i <= clock.PulsesPerQuarter; i++ {
		e.intake(midi.Event{Kind: midi.KindClock, Time: base.Add(time.Duration(i) * interval)})
	}
	if got := e.Clock().PulseCount; got != clock.PulsesPerQuarter {
		t.Errorf("pulse count = %d, want %d", got, clock.PulsesPerQuarter)
	}

	e.intake(midi.Event{Kind: midi.KindStop, Time: base.Add(time.Second)})
	if e.Clock().Playing {
		t.Error("stop byte did not stop playback")
	}
	if got := e.Clock().PulseCount; got != clock.PulsesPerQuarter {
		t.Errorf("stop rewound the transport: pulse count = %d", got)
	}
}

func TestEngineLearn(t *testing.T) {
	e := testEngine(t)

	e.LearnTarget("gain")
	if !e.LearnPending() {
		t.Fatal("learn not armed")
	}

	e.intake(midi.Event{Kind: midi.KindCC, Channel: 2, Number: 21, Value: 90})

	if e.LearnPending() {
		t.Error("learn still armed after a CC")
	}
	mappings := e.CCMappings()
	entry, ok := mappings["cc21-ch2"]
	if !ok {
		t.Fatalf("no mapping learned, table: %v", mappings)
	}
	if entry.Channel != 2 || entry.Value != 21 || entry.Target != "gain" {
		t.Errorf("learned entry %+v", entry)
	}
	if !e.Dirty() {
		t.Error("learning did not mark the scene dirty")
	}

	// the next CC on the learned control drives the target
	e.intake(midi.Event{Kind: midi.KindCC, Channel: 2, Number: 21, Value: 127})
	if v := e.params.Value("gain"); v != 2 {
		t.Errorf("gain = %v after learned CC, want 2", v)
	}
}

func TestEngineLearnFromNote(t *testing.T) {
	e := testEngine(t)

	e.LearnTarget("invert")
	e.intake(midi.Event{Kind: midi.KindNoteOn, Channel: 9, Number: 36, Value: 100})

	if _, ok := e.NoteMappings()["note36-ch9"]; !ok {
		t.Fatalf("no note mapping learned: %v", e.NoteMappings())
	}

	// note-on on the learned pad toggles; note-off is ignored
	e.intake(midi.Event{Kind: midi.KindNoteOn, Channel: 9, Number: 36, Value: 100})
	if v := e.params.Value("invert"); v != 1 {
		t.Errorf("invert = %v after note-on, want 1", v)
	}
	e.intake(midi.Event{Kind: midi.KindNoteOff, Channel: 9, Number: 36})
	if v := e.params.Value("invert"); v != 1 {
		t.Errorf("invert = %v after note-off, want 1 (note-offs ignored)", v)
	}
}

func TestEngineCancelLearn(t *testing.T) {
	e := testEngine(t)
	e.LearnTarget("blur")
	e.CancelLearn()

	e.intake(midi.Event{Kind: midi.KindCC, Channel: 0, Number: 74, Value: 64})
	if len(e.CCMappings()) != 0 {
		t.Errorf("cancelled learn still mapped: %v", e.CCMappings())
	}
}

func TestEngineFrameAdvancesAnimation(t *testing.T) {
	e := testEngine(t)
	err := e.Animate("blur", AnimConfig{
		Enabled:   true,
		Amplitude: 0.5,
		Division:  clock.DivQuarter, // 0.5s at 120 bpm
		Easing:    EaseLinear,
		Direction: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	base := time.Now()
	e.Play()

	e.frame(base.Add(100*time.Millisecond), 0.1)

	// phase 0.1/0.5 = 0.2, offset = 0.5*0.2 = 0.1 over base 0.2
	if v := e.params.Value("blur"); math.Abs(v-0.3) > 1e-9 {
		t.Errorf("blur = %v after 100ms, want 0.3", v)
	}

	// paused frames leave the offset where it was
	e.Pause()
	before := e.params.Value("blur")
	e.frame(base.Add(300*time.Millisecond), 0.2)
	if v := e.params.Value("blur"); v != before {
		t.Errorf("blur moved while paused: %v -> %v", before, v)
	}
}

func TestEnginePlayRestartsPhases(t *testing.T) {
	e := testEngine(t)
	if err := e.Animate("blur", AnimConfig{Enabled: true, Amplitude: 0.5, Division: clock.DivQuarter, Easing: EaseLinear}); err != nil {
		t.Fatal(err)
	}

	base := time.Now()
	e.Play()
	e.frame(base.Add(100*time.Millisecond), 0.1)
	e.Pause()

	e.Play()
	anims := e.Animations()
	if len(anims) != 1 {
		t.Fatalf("animations = %v", anims)
	}
	if anims[0].Phase != 0 {
		t.Errorf("phase = %v after restart, want 0", anims[0].Phase)
	}
}

func TestEngineSceneSaveLoad(t *testing.T) {
	e := testEngine(t)

	if err := e.SetCCMapping("cc74-ch0", MappingEntry{Channel: 0, Value: 74, Target: "blur"}); err != nil {
		t.Fatal(err)
	}
	if err := e.Animate("gain", AnimConfig{Enabled: true, Amplitude: 0.2, Division: clock.Div1Bar, Easing: EaseTriangle}); err != nil {
		t.Fatal(err)
	}

	filename, err := e.SaveScene("soundcheck")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if e.Dirty() {
		t.Error("dirty after save")
	}
	if e.SceneName() != "untitled" {
		t.Errorf("scene name = %q, want untitled", e.SceneName())
	}

	// wreck the live state, then restore
	e.RemoveMapping("cc74-ch0")
	if err := e.Animate("gain", AnimConfig{Enabled: false}); err != nil {
		t.Fatal(err)
	}
	if len(e.CCMappings()) != 0 {
		t.Fatal("remove failed")
	}

	if err := e.LoadScene("untitled", filename); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := e.CCMappings()["cc74-ch0"]; !ok {
		t.Errorf("mapping not restored: %v", e.CCMappings())
	}
	if cfg, ok := e.AnimationFor("gain"); !ok || cfg.Division != clock.Div1Bar {
		t.Errorf("animation not restored: %+v ok=%v", cfg, ok)
	}
	if e.Dirty() {
		t.Error("dirty after load")
	}
}

func TestEngineLoadMissingSceneChangesNothing(t *testing.T) {
	e := testEngine(t)
	if err := e.SetCCMapping("cc1-ch0", MappingEntry{Channel: 0, Value: 1, Target: "blur"}); err != nil {
		t.Fatal(err)
	}

	if err := e.LoadScene("nope", ""); err == nil {
		t.Fatal("loading a missing scene succeeded")
	}
	if len(e.CCMappings()) != 1 {
		t.Errorf("failed load mutated mappings: %v", e.CCMappings())
	}
}

func TestEngineNudge(t *testing.T) {
	e := testEngine(t)

	e.Nudge("gain", 3) // default 1, step 0.1
	if v := e.params.BaseValue("gain"); math.Abs(v-1.3) > 1e-9 {
		t.Errorf("gain = %v after +3 steps, want 1.3", v)
	}
	e.Nudge("gain", -30) // clamps at min
	if v := e.params.BaseValue("gain"); v != 0 {
		t.Errorf("gain = %v after big negative nudge, want 0", v)
	}
	e.Nudge("missing", 1) // unknown target is dropped quietly
}

type fakeStepper struct {
	mu     sync.Mutex
	steps  []float64
	closed bool
}

func (f *fakeStepper) Step(pos, dt float64) {
	f.mu.Lock()
	f.steps = append(f.steps, pos)
	f.mu.Unlock()
}

func (f *fakeStepper) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeStepper) snapshot() ([]float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.steps...), f.closed
}

func TestEngineModulatorFollowsTransport(t *testing.T) {
	e := testEngine(t)
	mod := &fakeStepper{}
	e.SetModulator(mod)

	base := time.Now()
	e.Play()
	e.frame(base.Add(250*time.Millisecond), 0.25)
	e.frame(base.Add(500*time.Millisecond), 0.25)

	steps, _ := mod.snapshot()
	if len(steps) != 2 {
		t.Fatalf("steps = %v, want 2 entries", steps)
	}
	if steps[1] <= steps[0] {
		t.Errorf("position did not advance: %v", steps)
	}

	e.Pause()
	e.frame(base.Add(time.Second), 0.5)
	steps, _ = mod.snapshot()
	if len(steps) != 2 {
		t.Errorf("stepper ran while paused: %v", steps)
	}

	// replacing the stepper closes the old one
	e.SetModulator(nil)
	if _, closed := mod.snapshot(); !closed {
		t.Error("old stepper not closed on replace")
	}
}

func TestEngineStartStop(t *testing.T) {
	e := testEngine(t)
	if err := e.SetCCMapping("cc7-ch0", MappingEntry{Channel: 0, Value: 7, Target: "blur"}); err != nil {
		t.Fatal(err)
	}

	events := make(chan midi.Event, 8)
	e.Start(events)
	e.Start(events) // second start is a no-op

	events <- midi.Event{Kind: midi.KindCC, Channel: 0, Number: 7, Value: 127}

	deadline := time.Now().Add(2 * time.Second)
	for e.params.Value("blur") != 1 {
		if time.Now().After(deadline) {
			t.Fatal("event never reached the registry")
		}
		time.Sleep(5 * time.Millisecond)
	}

	e.Stop()
	e.Stop() // idempotent
}

func TestEngineStopClosesModulator(t *testing.T) {
	e := testEngine(t)
	mod := &fakeStepper{}
	e.SetModulator(mod)

	e.Start(nil)
	e.Stop()

	if _, closed := mod.snapshot(); !closed {
		t.Error("modulator not closed on engine stop")
	}
}
