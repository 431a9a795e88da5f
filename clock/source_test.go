package clock

import (
	"math"
	"testing"
	"time"
)

func at(base time.Time, ms int) time.Time {
	return base.Add(time.Duration(ms) * time.Millisecond)
}

func TestStartInternal(t *testing.T) {
	s := NewSource(Config{BPM: 120})
	base := time.Now()

	if s.State() != StateStopped {
		t.Fatalf("new source state: got %v, want stopped", s.State())
	}
	s.Start(base)
	if s.State() != StateInternal {
		t.Errorf("after Start: got %v, want internal", s.State())
	}
	if !s.Playing() {
		t.Error("after Start: not playing")
	}
}

func TestStartAwaitsExternalWhenPreferred(t *testing.T) {
	s := NewSource(Config{BPM: 120, PreferExternal: true})
	base := time.Now()

	s.Start(base)
	if s.State() != StateAwaitingExternal {
		t.Errorf("after Start: got %v, want awaiting-external", s.State())
	}

	// No pulses ever arrive: falls back after the timeout, still playing
	s.Tick(at(base, 500))
	if s.State() != StateAwaitingExternal {
		t.Errorf("at 500ms: got %v, want still awaiting", s.State())
	}
	s.Tick(at(base, 1100))
	if s.State() != StateInternal {
		t.Errorf("after timeout: got %v, want internal", s.State())
	}
	if !s.Playing() {
		t.Error("fallback must not stop playback")
	}
}

func TestInternalPulseSynthesis(t *testing.T) {
	s := NewSource(Config{BPM: 120})
	base := time.Now()

	s.Start(base)
	s.Tick(at(base, 500))

	// 120 bpm = 2 beats/s; 0.5 s is one beat = 24 pulses
	snap := s.Snapshot()
	if snap.PulseCount != 24 {
		t.Errorf("pulse count after 500ms at 120bpm: got %d, want 24", snap.PulseCount)
	}
	if got := s.Elapsed(); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("elapsed: got %f, want 0.5", got)
	}
	if snap.Beat != 1 || snap.Bar != 0 {
		t.Errorf("position: got beat=%d bar=%d, want beat=1 bar=0", snap.Beat, snap.Bar)
	}
}

func TestInternalFractionCarries(t *testing.T) {
	s := NewSource(Config{BPM: 120})
	base := time.Now()

	s.Start(base)
	// 3 ticks of 7ms each = 21ms = 1.008 pulses at 120 bpm (24 pulses per 500ms)
	s.Tick(at(base, 7))
	s.Tick(at(base, 14))
	s.Tick(at(base, 21))

	if got := s.Snapshot().PulseCount; got != 1 {
		t.Errorf("pulse count after 21ms: got %d, want 1", got)
	}
}

func TestExternalPulseTakesPriority(t *testing.T) {
	s := NewSource(Config{BPM: 120})
	base := time.Now()

	s.Start(base)
	if s.State() != StateInternal {
		t.Fatalf("precondition: %v", s.State())
	}
	s.ExternalPulse(at(base, 10))
	if s.State() != StateExternal {
		t.Errorf("after external pulse: got %v, want external", s.State())
	}
}

func TestFallbackToInternalAfterTimeout(t *testing.T) {
	s := NewSource(Config{BPM: 100, Timeout: time.Second})
	base := time.Now()

	s.Start(base)
	// 25ms spacing derives exactly 100 bpm, matching the configured tempo
	for i := 0; i < 10; i++ {
		s.ExternalPulse(at(base, i*25))
	}
	if s.State() != StateExternal {
		t.Fatalf("precondition: %v", s.State())
	}
	countBefore := s.Snapshot().PulseCount

	// Pulses stop at 225ms. Within the timeout nothing changes.
	s.Tick(at(base, 800))
	if s.State() != StateExternal {
		t.Errorf("at 800ms: got %v, want still external", s.State())
	}

	// Past the timeout the source falls back and keeps counting.
	s.Tick(at(base, 1300))
	if s.State() != StateInternal {
		t.Errorf("after silence > timeout: got %v, want internal", s.State())
	}
	if !s.Playing() {
		t.Error("clock loss must not stop playback")
	}

	s.Tick(at(base, 1912)) // 612ms of internal time at 100 bpm = 24.48 pulses
	countAfter := s.Snapshot().PulseCount
	if countAfter != countBefore+24 {
		t.Errorf("pulses after fallback: got %d, want %d", countAfter, countBefore+24)
	}
}

func TestReacquireExternalAfterLoss(t *testing.T) {
	s := NewSource(Config{BPM: 120})
	base := time.Now()

	s.Start(base)
	s.ExternalPulse(at(base, 0))
	s.Tick(at(base, 1500)) // lost
	if s.State() != StateInternal {
		t.Fatalf("precondition: %v", s.State())
	}
	s.ExternalPulse(at(base, 1600))
	if s.State() != StateExternal {
		t.Errorf("re-acquisition: got %v, want external", s.State())
	}
}

func TestStopRetainsCountResetRewinds(t *testing.T) {
	s := NewSource(Config{BPM: 120})
	base := time.Now()

	s.Start(base)
	s.Tick(at(base, 500))
	if got := s.Snapshot().PulseCount; got != 24 {
		t.Fatalf("precondition: %d pulses", got)
	}

	s.Stop()
	if s.Playing() {
		t.Error("after Stop: still playing")
	}
	if got := s.Snapshot().PulseCount; got != 24 {
		t.Errorf("Stop must retain the pulse count: got %d, want 24", got)
	}

	s.Reset()
	if got := s.Snapshot().PulseCount; got != 0 {
		t.Errorf("Reset must rewind: got %d, want 0", got)
	}
}

func TestPulsesWhileStoppedDoNotStartPlayback(t *testing.T) {
	s := NewSource(Config{BPM: 120})
	base := time.Now()

	s.ExternalPulse(base)
	s.ExternalPulse(at(base, 20))
	if s.Playing() {
		t.Error("pulses alone must not start playback")
	}
	if got := s.Snapshot().PulseCount; got != 0 {
		t.Errorf("stopped source counted pulses: got %d, want 0", got)
	}
}

func TestTransportBytes(t *testing.T) {
	s := NewSource(Config{BPM: 120})
	base := time.Now()

	s.ExternalStart(base)
	if s.State() != StateExternal {
		t.Errorf("after 0xFA: got %v, want external", s.State())
	}
	for i := 1; i <= 12; i++ {
		s.ExternalPulse(at(base, i*20))
	}
	count := s.Snapshot().PulseCount

	s.ExternalStop(at(base, 300))
	if s.Playing() {
		t.Error("after 0xFC: still playing")
	}
	if got := s.Snapshot().PulseCount; got != count {
		t.Errorf("0xFC must retain count: got %d, want %d", got, count)
	}

	s.ExternalContinue(at(base, 400))
	if s.State() != StateExternal {
		t.Errorf("after 0xFB: got %v, want external", s.State())
	}
	if got := s.Snapshot().PulseCount; got != count {
		t.Errorf("0xFB must not rewind: got %d, want %d", got, count)
	}

	s.ExternalStart(at(base, 500))
	if got := s.Snapshot().PulseCount; got != 0 {
		t.Errorf("0xFA must rewind: got %d, want 0", got)
	}
}

func TestExternalTempoDerivation(t *testing.T) {
	s := NewSource(Config{BPM: 120})
	base := time.Now()

	s.Start(base)
	// Pulses every 25ms: 60 / (0.025 * 24) = 100 bpm
	for i := 0; i <= 8; i++ {
		s.ExternalPulse(at(base, i*25))
	}

	if got := s.BPM(); math.Abs(got-100) > 0.5 {
		t.Errorf("derived bpm: got %f, want ~100", got)
	}

	select {
	case <-s.BPMChanged():
	default:
		t.Error("tempo adoption should notify BPMChanged")
	}
}

func TestSetBPMClampsAndNotifies(t *testing.T) {
	s := NewSource(Config{BPM: 120})

	s.SetBPM(500)
	if got := s.BPM(); got != 300 {
		t.Errorf("SetBPM(500): got %f, want 300", got)
	}
	select {
	case <-s.BPMChanged():
	default:
		t.Error("SetBPM should notify when the value changes")
	}

	// Unchanged value must not notify
	s.SetBPM(300)
	select {
	case <-s.BPMChanged():
		t.Error("SetBPM with the same value must not notify")
	default:
	}
}
