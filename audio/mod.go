package audio

import (
	"fmt"
	"math"

	"go-modulate/debug"

	"github.com/pkg/errors"
)

// Mod routes one analysis band into one parameter target. Amount scales
// the normalized band value into an additive offset.
type Mod struct {
	Target string  `json:"target"`
	Band   Band    `json:"band"`
	Amount float64 `json:"amount"`
}

// Validate checks the shape a configured mod must have
func (m Mod) Validate() error {
	if m.Target == "" {
		return errors.New("empty target")
	}
	if !m.Band.Valid() {
		return errors.Errorf("invalid band %q", string(m.Band))
	}
	if math.IsNaN(m.Amount) || math.IsInf(m.Amount, 0) {
		return errors.New("amount not finite")
	}
	return nil
}

// OffsetSink is where band offsets land: the registry's modulation layer
type OffsetSink interface {
	SetOffset(target, sourceID string, offset float64)
	ClearOffset(target, sourceID string)
}

// Smoothing constants. lerp factor per frame on signal, exponential
// decay toward silence, matched to a 60fps frame loop.
const (
	smoothFactor = 0.4
	decayBase    = 0.92
)

// Modulator writes smoothed band offsets each frame. Past the end of the
// file every offset decays to zero instead of sticking.
type Modulator struct {
	an   *Analysis
	mods []Mod
	sink OffsetSink
	cur  map[int]float64 // smoothed offset per mod index
}

// NewModulator builds a modulator over a finished analysis. Malformed
// mods are dropped with a warning; the rest still run.
func NewModulator(an *Analysis, mods []Mod, sink OffsetSink) *Modulator {
	kept := make([]Mod, 0, len(mods))
	for _, m := range mods {
		if err := m.Validate(); err != nil {
			debug.Warn("audio", "mod dropped: %v", err)
			continue
		}
		kept = append(kept, m)
	}
	return &Modulator{
		an:   an,
		mods: kept,
		sink: sink,
		cur:  make(map[int]float64, len(kept)),
	}
}

// Mods returns the active routings
func (m *Modulator) Mods() []Mod {
	out := make([]Mod, len(m.mods))
	copy(out, m.mods)
	return out
}

// Duration returns the analyzed audio length in seconds
func (m *Modulator) Duration() float64 {
	return m.an.Duration()
}

func (m *Modulator) sourceID(i int) string {
	return fmt.Sprintf("audio:%s:%d", m.mods[i].Band, i)
}

// Step evaluates the analysis at a transport position and moves each
// offset toward band*amount. dt keeps the silence decay frame-rate
// independent.
func (m *Modulator) Step(pos, dt float64) {
	frame := m.an.At(pos)
	silent := frame == (Frame{})
	decay := math.Pow(decayBase, dt*60)

	for i, mod := range m.mods {
		cur := m.cur[i]
		if silent {
			cur *= decay
			if math.Abs(cur) < 1e-6 {
				cur = 0
			}
		} else {
			target := frame.Value(mod.Band) * mod.Amount
			cur = lerp(cur, target, smoothFactor)
		}
		m.cur[i] = cur
		m.sink.SetOffset(mod.Target, m.sourceID(i), cur)
	}
}

// Close removes every offset this modulator wrote
func (m *Modulator) Close() {
	for i, mod := range m.mods {
		m.sink.ClearOffset(mod.Target, m.sourceID(i))
		delete(m.cur, i)
	}
}

func lerp(current, target, factor float64) float64 {
	return current*(1-factor) + target*factor
}
