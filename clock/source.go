package clock

import (
	"math"
	"sync"
	"time"

	"go-modulate/debug"
)

// MIDI clock runs at 24 pulses per quarter note
const PulsesPerQuarter = 24

// DefaultTimeout is how long external clock may go silent before the
// source falls back to its internal generator
const DefaultTimeout = time.Second

// State identifies where beat time is coming from
type State int

const (
	StateStopped State = iota
	StateInternal
	StateExternal
	StateAwaitingExternal
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateInternal:
		return "internal"
	case StateExternal:
		return "external"
	case StateAwaitingExternal:
		return "awaiting-external"
	}
	return "unknown"
}

// Config sets up a Source
type Config struct {
	BPM            float64
	PreferExternal bool
	Timeout        time.Duration
}

// Snapshot is a read-only view of the clock for UIs
type Snapshot struct {
	State      State
	BPM        float64
	PulseCount int64
	Beat       int
	Bar        int
	Playing    bool
}

// Source is the beat clock. External MIDI clock takes priority whenever
// pulses arrive; when they stop for longer than the timeout the source
// falls back to an internal pulse generator without stopping playback.
type Source struct {
	mu sync.Mutex

	state      State
	bpm        float64
	pulseCount int64
	pulseFrac  float64 // fractional internal pulses carried between ticks

	preferExternal bool
	timeout        time.Duration

	lastExternal time.Time // last 0xF8 seen
	lastTick     time.Time // last internal synthesis step
	awaitSince   time.Time // when we started waiting for external pulses

	// Tempo derivation from external pulse spacing, averaged over six
	// contiguous inter-pulse intervals (a sixteenth note of clock)
	extSpanSum float64
	extSpanN   int

	bpmChanged chan struct{} // 1-buffered resync notification
}

// NewSource creates a stopped clock source
func NewSource(cfg Config) *Source {
	bpm := cfg.BPM
	if bpm == 0 {
		bpm = DefaultBPM
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Source{
		state:          StateStopped,
		bpm:            ClampBPM(bpm),
		preferExternal: cfg.PreferExternal,
		timeout:        timeout,
		bpmChanged:     make(chan struct{}, 1),
	}
}

// BPMChanged signals that SetBPM (or external derivation) adopted a new
// tempo; consumers resync their division durations
func (s *Source) BPMChanged() <-chan struct{} {
	return s.bpmChanged
}

func (s *Source) notifyBPM() {
	select {
	case s.bpmChanged <- struct{}{}:
	default:
	}
}

// Start begins running. With PreferExternal the source waits for pulses
// before falling back; otherwise it generates pulses immediately.
func (s *Source) Start(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStopped {
		return
	}
	s.lastTick = now
	if s.preferExternal {
		s.state = StateAwaitingExternal
		s.awaitSince = now
		debug.Info("clock", "started, awaiting external clock (timeout %v)", s.timeout)
	} else {
		s.state = StateInternal
		debug.Info("clock", "started, internal clock at %.1f bpm", s.bpm)
	}
}

// Stop pauses the clock. The pulse count is retained so a resume picks
// up where playback left off.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		return
	}
	s.state = StateStopped
	debug.Info("clock", "stopped at pulse %d", s.pulseCount)
}

// Reset rewinds musical time to zero without changing the run state
func (s *Source) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pulseCount = 0
	s.pulseFrac = 0
	s.extSpanSum = 0
	s.extSpanN = 0
	debug.Log("clock", "reset to pulse 0")
}

// SetBPM clamps and adopts a new tempo, notifying subscribers when the
// value actually changed
func (s *Source) SetBPM(bpm float64) {
	s.mu.Lock()
	clamped := ClampBPM(bpm)
	changed := clamped != s.bpm
	s.bpm = clamped
	s.mu.Unlock()

	if changed {
		debug.Info("clock", "bpm changed to %.1f", clamped)
		s.notifyBPM()
	}
}

// BPM returns the current tempo
func (s *Source) BPM() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bpm
}

// State returns the current clock state
func (s *Source) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Playing reports whether musical time is advancing
func (s *Source) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != StateStopped
}

// ExternalPulse registers one 0xF8 clock byte. External pulses take
// priority over the internal generator immediately.
func (s *Source) ExternalPulse(now time.Time) {
	s.mu.Lock()

	if s.state == StateStopped {
		// Remember that a clock is out there, but transport Start is
		// what begins playback
		s.lastExternal = now
		s.mu.Unlock()
		return
	}

	if s.state == StateInternal || s.state == StateAwaitingExternal {
		s.state = StateExternal
		s.pulseFrac = 0
		s.extSpanSum = 0
		s.extSpanN = 0
		debug.Info("clock", "external clock acquired")
	}

	prev := s.lastExternal
	s.pulseCount++
	s.lastExternal = now

	// Average six contiguous intervals, then derive the quarter length
	var adopted float64
	if !prev.IsZero() {
		if gap := now.Sub(prev); gap > 0 && gap < s.timeout {
			s.extSpanSum += gap.Seconds()
			s.extSpanN++
			if s.extSpanN >= 6 {
				interval := s.extSpanSum / float64(s.extSpanN)
				derived := ClampBPM(60.0 / (interval * PulsesPerQuarter))
				if math.Abs(derived-s.bpm) > 0.1 {
					s.bpm = derived
					adopted = derived
				}
				s.extSpanSum = 0
				s.extSpanN = 0
			}
		} else {
			s.extSpanSum = 0
			s.extSpanN = 0
		}
	}
	s.mu.Unlock()

	if adopted != 0 {
		debug.Info("clock", "external tempo %.1f bpm", adopted)
		s.notifyBPM()
	}
	debug.LogEvery(96, "clock", "external pulse count=%d", s.pulseCount)
}

// ExternalStart handles 0xFA: rewind and run from external clock
func (s *Source) ExternalStart(now time.Time) {
	s.mu.Lock()
	s.pulseCount = 0
	s.pulseFrac = 0
	s.state = StateExternal
	s.lastExternal = now
	s.extSpanSum = 0
	s.extSpanN = 0
	s.mu.Unlock()
	debug.Info("clock", "external start")
}

// ExternalContinue handles 0xFB: run from external clock without rewinding
func (s *Source) ExternalContinue(now time.Time) {
	s.mu.Lock()
	s.state = StateExternal
	s.lastExternal = now
	s.extSpanSum = 0
	s.extSpanN = 0
	s.mu.Unlock()
	debug.Info("clock", "external continue at pulse %d", s.pulseCount)
}

// ExternalStop handles 0xFC: pause, retaining the pulse count
func (s *Source) ExternalStop(now time.Time) {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	s.mu.Unlock()
	debug.Info("clock", "external stop at pulse %d", s.pulseCount)
}

// Tick advances the clock from the frame loop. Internal mode synthesizes
// the pulses elapsed since the last tick; external mode watches for clock
// loss and falls back without interrupting playback.
func (s *Source) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateStopped:
		s.lastTick = now

	case StateExternal:
		if now.Sub(s.lastExternal) > s.timeout {
			s.state = StateInternal
			s.lastTick = now
			debug.Info("clock", "external clock lost, falling back to internal at %.1f bpm", s.bpm)
		}

	case StateAwaitingExternal:
		if now.Sub(s.awaitSince) > s.timeout {
			s.state = StateInternal
			s.lastTick = now
			debug.Info("clock", "no external clock, running internal at %.1f bpm", s.bpm)
		}

	case StateInternal:
		dt := now.Sub(s.lastTick).Seconds()
		if dt > 0 {
			pulses := dt*(s.bpm/60.0)*PulsesPerQuarter + s.pulseFrac
			whole := math.Floor(pulses)
			s.pulseCount += int64(whole)
			s.pulseFrac = pulses - whole
		}
		s.lastTick = now
	}
}

// Elapsed returns musical time in seconds at the current tempo
func (s *Source) Elapsed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	beats := (float64(s.pulseCount) + s.pulseFrac) / PulsesPerQuarter
	return beats * 60.0 / s.bpm
}

// Snapshot returns a read-only view for the UI
func (s *Source) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	beats := s.pulseCount / PulsesPerQuarter
	return Snapshot{
		State:      s.state,
		BPM:        s.bpm,
		PulseCount: s.pulseCount,
		Beat:       int(beats % 4),
		Bar:        int(beats / 4),
		Playing:    s.state != StateStopped,
	}
}
