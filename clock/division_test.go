package clock

import (
	"errors"
	"math"
	"testing"
)

func TestDurationKnownValues(t *testing.T) {
	cases := []struct {
		bpm  float64
		div  Division
		want float64
	}{
		{120, DivQuarter, 0.5},
		{60, Div8th, 0.5},
		{120, Div8th, 0.25},
		{120, DivHalf, 1.0},
		{120, DivWhole, 2.0},
		{120, Div1Bar, 2.0},
		{120, Div16th, 0.125},
		{120, Div16Bars, 32.0},
		{60, DivQuarter, 1.0},
	}

	for _, c := range cases {
		got, err := Duration(c.bpm, c.div)
		if err != nil {
			t.Fatalf("Duration(%v, %s): %v", c.bpm, c.div, err)
		}
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("Duration(%v, %s): got %f, want %f", c.bpm, c.div, got, c.want)
		}
	}
}

func TestDurationPositiveAndDecreasingInBPM(t *testing.T) {
	for _, div := range Divisions() {
		prev := math.Inf(1)
		for _, bpm := range []float64{1, 30, 60, 120, 200, 300} {
			d, err := Duration(bpm, div)
			if err != nil {
				t.Fatalf("Duration(%v, %s): %v", bpm, div, err)
			}
			if d <= 0 {
				t.Errorf("Duration(%v, %s) = %f, want > 0", bpm, div, d)
			}
			if d >= prev {
				t.Errorf("Duration(%v, %s) = %f, not decreasing (prev %f)", bpm, div, d, prev)
			}
			prev = d
		}
	}
}

func TestHalfIsTwiceQuarter(t *testing.T) {
	for _, bpm := range []float64{33.3, 60, 120, 174, 300} {
		q, _ := Duration(bpm, DivQuarter)
		h, _ := Duration(bpm, DivHalf)
		if math.Abs(h-2*q) > 1e-12 {
			t.Errorf("at %v bpm: half=%f quarter=%f, want half = 2*quarter", bpm, h, q)
		}
	}
}

func TestDurationInvalidDivision(t *testing.T) {
	for _, tok := range []Division{"", "thirtysecond", "3bars", "Quarter"} {
		if _, err := Duration(120, tok); !errors.Is(err, ErrInvalidDivision) {
			t.Errorf("Duration(120, %q): got err %v, want ErrInvalidDivision", tok, err)
		}
		if _, err := Aligned(0, 120, tok, 0.01); !errors.Is(err, ErrInvalidDivision) {
			t.Errorf("Aligned(.., %q): got err %v, want ErrInvalidDivision", tok, err)
		}
	}
}

func TestClampBPM(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 1},
		{-10, 1},
		{0.5, 1},
		{1, 1},
		{150, 150},
		{300, 300},
		{301, 300},
		{9999, 300},
		{math.NaN(), 120},
		{math.Inf(1), 120},
		{math.Inf(-1), 120},
	}
	for _, c := range cases {
		if got := ClampBPM(c.in); got != c.want {
			t.Errorf("ClampBPM(%v): got %v, want %v", c.in, got, c.want)
		}
	}
}

func TestDurationClampsBPM(t *testing.T) {
	// bpm 0 clamps to 1, so a quarter is a full minute
	d, err := Duration(0, DivQuarter)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(d-60.0) > 1e-9 {
		t.Errorf("Duration(0, quarter): got %f, want 60", d)
	}
}

func TestAligned(t *testing.T) {
	// quarter at 120 bpm = 0.5 s boundaries
	cases := []struct {
		elapsed float64
		tol     float64
		want    bool
	}{
		{0, 0.005, true},
		{0.5, 0.005, true},
		{1.5, 0.005, true},
		{0.504, 0.005, true},  // just past a boundary
		{0.496, 0.005, true},  // just before a boundary
		{0.52, 0.005, false},  // inside the cycle
		{0.25, 0.005, false},  // dead center
		{-0.1, 0.005, false},  // before time zero
		{100.5, 0.005, true},  // far along, still on grid
		{100.25, 0.005, false},
	}

	for _, c := range cases {
		got, err := Aligned(c.elapsed, 120, DivQuarter, c.tol)
		if err != nil {
			t.Fatalf("Aligned(%v): %v", c.elapsed, err)
		}
		if got != c.want {
			t.Errorf("Aligned(%v, tol=%v): got %v, want %v", c.elapsed, c.tol, got, c.want)
		}
	}
}

func TestAlignedDefaultTolerance(t *testing.T) {
	// tol <= 0 defaults to 2% of the cycle: 10ms at 120 bpm quarter
	got, err := Aligned(0.509, 120, DivQuarter, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Error("0.509 should align within the default 2% tolerance")
	}
	got, _ = Aligned(0.52, 120, DivQuarter, 0)
	if got {
		t.Error("0.52 should not align within the default 2% tolerance")
	}
}

func TestBeatsTable(t *testing.T) {
	b, err := Beats(Div64th)
	if err != nil {
		t.Fatal(err)
	}
	if b != 1.0/16.0 {
		t.Errorf("Beats(64th): got %v, want 1/16", b)
	}
	if w, _ := Beats(DivWhole); w != 4 {
		t.Errorf("Beats(whole): got %v, want 4", w)
	}
	if bars, _ := Beats(Div2Bars); bars != 8 {
		t.Errorf("Beats(2bars): got %v, want 8", bars)
	}
}
