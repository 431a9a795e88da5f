package audio

import (
	"math"
	"testing"
)

type fakeSink struct {
	offsets map[string]float64
	cleared []string
}

func newFakeSink() *fakeSink {
	return &fakeSink{offsets: make(map[string]float64)}
}

func (s *fakeSink) SetOffset(target, sourceID string, offset float64) {
	s.offsets[target+"|"+sourceID] = offset
}

func (s *fakeSink) ClearOffset(target, sourceID string) {
	delete(s.offsets, target+"|"+sourceID)
	s.cleared = append(s.cleared, target+"|"+sourceID)
}

func TestModulatorApproachesBandValue(t *testing.T) {
	an := analyzeSamples(sine(100, 1, testRate), testRate)
	sink := newFakeSink()
	mod := NewModulator(an, []Mod{{Target: "blur", Band: BandBass, Amount: 0.5}}, sink)

	const dt = 1.0 / 60
	for i := 0; i < 30; i++ {
		mod.Step(0.5, dt)
	}

	want := an.At(0.5).Bass * 0.5
	got := sink.offsets["blur|audio:bass:0"]
	if math.Abs(got-want) > 0.01 {
		t.Errorf("offset = %v after settling, want %v", got, want)
	}
}

func TestModulatorDecaysPastEnd(t *testing.T) {
	an := analyzeSamples(sine(100, 1, testRate), testRate)
	sink := newFakeSink()
	mod := NewModulator(an, []Mod{{Target: "blur", Band: BandBass, Amount: 0.5}}, sink)

	const dt = 1.0 / 60
	for i := 0; i < 30; i++ {
		mod.Step(0.5, dt)
	}
	if sink.offsets["blur|audio:bass:0"] <= 0 {
		t.Fatal("no offset built up during the tone")
	}

	// transport runs past the end of the file; offset decays to zero
	for i := 0; i < 200; i++ {
		mod.Step(5.0, dt)
	}
	if off := sink.offsets["blur|audio:bass:0"]; off != 0 {
		t.Errorf("offset = %v after long silence, want 0", off)
	}
}

func TestModulatorClose(t *testing.T) {
	an := analyzeSamples(sine(100, 0.5, testRate), testRate)
	sink := newFakeSink()
	mod := NewModulator(an, []Mod{
		{Target: "blur", Band: BandBass, Amount: 0.5},
		{Target: "gain", Band: BandLevel, Amount: 1},
	}, sink)

	mod.Step(0.25, 1.0/60)
	if len(sink.offsets) != 2 {
		t.Fatalf("offsets = %v", sink.offsets)
	}

	mod.Close()
	if len(sink.offsets) != 0 {
		t.Errorf("offsets still present after close: %v", sink.offsets)
	}
	if len(sink.cleared) != 2 {
		t.Errorf("cleared %d sources, want 2", len(sink.cleared))
	}
}

func TestModulatorDropsInvalidMods(t *testing.T) {
	an := analyzeSamples(sine(100, 0.5, testRate), testRate)
	mod := NewModulator(an, []Mod{
		{Target: "", Band: BandBass, Amount: 1},
		{Target: "x", Band: "subsonic", Amount: 1},
		{Target: "inf", Band: BandMid, Amount: math.Inf(1)},
		{Target: "ok", Band: BandLevel, Amount: 1},
	}, newFakeSink())

	kept := mod.Mods()
	if len(kept) != 1 || kept[0].Target != "ok" {
		t.Errorf("kept = %v, want just the valid mod", kept)
	}
}
