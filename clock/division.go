package clock

import (
	"fmt"
	"math"
)

// Division is a musical note-length token, assuming 4/4 time
type Division string

const (
	Div64th    Division = "64th"
	Div32nd    Division = "32nd"
	Div16th    Division = "16th"
	Div8th     Division = "8th"
	DivQuarter Division = "quarter"
	DivHalf    Division = "half"
	DivWhole   Division = "whole"
	Div1Bar    Division = "1bar"
	Div2Bars   Division = "2bars"
	Div4Bars   Division = "4bars"
	Div8Bars   Division = "8bars"
	Div16Bars  Division = "16bars"
)

// BPM limits
const (
	MinBPM     = 1.0
	MaxBPM     = 300.0
	DefaultBPM = 120.0
)

// ErrInvalidDivision is returned for tokens outside the fixed set
var ErrInvalidDivision = fmt.Errorf("invalid division")

// divisionBeats maps each token to its length in quarter-note beats
var divisionBeats = map[Division]float64{
	Div64th:    1.0 / 16.0,
	Div32nd:    1.0 / 8.0,
	Div16th:    1.0 / 4.0,
	Div8th:     1.0 / 2.0,
	DivQuarter: 1.0,
	DivHalf:    2.0,
	DivWhole:   4.0,
	Div1Bar:    4.0,
	Div2Bars:   8.0,
	Div4Bars:   16.0,
	Div8Bars:   32.0,
	Div16Bars:  64.0,
}

// divisionOrder is the cycling order used by UIs (shortest first)
var divisionOrder = []Division{
	Div64th, Div32nd, Div16th, Div8th,
	DivQuarter, DivHalf, DivWhole,
	Div1Bar, Div2Bars, Div4Bars, Div8Bars, Div16Bars,
}

// Divisions returns all valid tokens, shortest first
func Divisions() []Division {
	out := make([]Division, len(divisionOrder))
	copy(out, divisionOrder)
	return out
}

// Valid reports whether d is one of the fixed tokens
func (d Division) Valid() bool {
	_, ok := divisionBeats[d]
	return ok
}

// Beats returns the length of the division in quarter-note beats
func Beats(div Division) (float64, error) {
	b, ok := divisionBeats[div]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDivision, string(div))
	}
	return b, nil
}

// ClampBPM forces bpm into [MinBPM, MaxBPM]; NaN/Inf collapse to the default
func ClampBPM(bpm float64) float64 {
	if math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return DefaultBPM
	}
	if bpm < MinBPM {
		return MinBPM
	}
	if bpm > MaxBPM {
		return MaxBPM
	}
	return bpm
}

// Duration returns the length of one division cycle in seconds
func Duration(bpm float64, div Division) (float64, error) {
	beats, err := Beats(div)
	if err != nil {
		return 0, err
	}
	return beats * 60.0 / ClampBPM(bpm), nil
}

// Aligned reports whether elapsed sits within tolSec of a division
// boundary (distance to the nearest multiple, measured from both sides).
// A tolerance <= 0 defaults to 2% of the cycle duration.
func Aligned(elapsedSec, bpm float64, div Division, tolSec float64) (bool, error) {
	d, err := Duration(bpm, div)
	if err != nil {
		return false, err
	}
	if elapsedSec < 0 {
		return false, nil
	}
	if tolSec <= 0 {
		tolSec = d * 0.02
	}

	rem := math.Mod(elapsedSec, d)
	return rem <= tolSec || d-rem <= tolSec, nil
}
