// Package audio precomputes a band-energy analysis of an audio file so
// the engine can modulate parameters from it in sync with the transport.
package audio

import (
	"math"
	"math/cmplx"
	"os"

	"go-modulate/debug"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/maddyblue/go-dsp/fft"
	"github.com/pkg/errors"
)

// Band names one analysis channel
type Band string

const (
	BandLevel  Band = "level"
	BandBass   Band = "bass"
	BandMid    Band = "mid"
	BandTreble Band = "treble"
)

// Bands returns the valid band names
func Bands() []Band {
	return []Band{BandLevel, BandBass, BandMid, BandTreble}
}

// Valid reports whether b names a known band
func (b Band) Valid() bool {
	switch b {
	case BandLevel, BandBass, BandMid, BandTreble:
		return true
	}
	return false
}

// Band frequency edges in Hz
const (
	bassLow   = 20.0
	bassHigh  = 250.0
	midHigh   = 4000.0
	trebHigh  = 16000.0
)

// Frame is one analysis window, every field normalized to [0,1] against
// the file's own peaks
type Frame struct {
	Level  float64
	Bass   float64
	Mid    float64
	Treble float64
}

// Value returns the named band of the frame
func (f Frame) Value(b Band) float64 {
	switch b {
	case BandLevel:
		return f.Level
	case BandBass:
		return f.Bass
	case BandMid:
		return f.Mid
	case BandTreble:
		return f.Treble
	}
	return 0
}

// FFT geometry. 2048 samples at 44.1k is ~46ms per window, hopped at
// half overlap so the frame rate lands near the engine frame rate.
const (
	windowSize = 2048
	hopSize    = 1024
)

// Analysis is the precomputed per-window band breakdown of a file
type Analysis struct {
	frames []Frame
	perSec float64 // analysis frames per second of audio
	dur    float64 // seconds
}

// AnalyzeWAV decodes a WAV file, folds it to mono and analyzes it
func AnalyzeWAV(path string) (*Analysis, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open audio file")
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, errors.Errorf("invalid wav file: %s", path)
	}
	if err := decoder.FwdToPCM(); err != nil {
		return nil, errors.Wrap(err, "seek pcm")
	}

	format := decoder.Format()
	bitDepth := int(decoder.SampleBitDepth())
	if bitDepth == 0 {
		bitDepth = 16
	}
	bytesPerSample := (bitDepth-1)/8 + 1
	nsamples := int(decoder.PCMLen()) / bytesPerSample

	buf := &goaudio.IntBuffer{
		Format:         format,
		Data:           make([]int, nsamples),
		SourceBitDepth: bitDepth,
	}
	if _, err := decoder.PCMBuffer(buf); err != nil {
		return nil, errors.Wrap(err, "decode pcm")
	}

	// fold to mono in [-1,1]
	factor := math.Pow(2, float64(bitDepth-1))
	ch := format.NumChannels
	if ch < 1 {
		ch = 1
	}
	mono := make([]float64, 0, len(buf.Data)/ch)
	for i := 0; i+ch <= len(buf.Data); i += ch {
		sum := 0.0
		for c := 0; c < ch; c++ {
			sum += float64(buf.Data[i+c])
		}
		mono = append(mono, sum/float64(ch)/factor)
	}

	an := analyzeSamples(mono, format.SampleRate)
	debug.Info("audio", "analyzed %s: %.1fs, %d frames, %d Hz, %d ch",
		path, an.dur, len(an.frames), format.SampleRate, format.NumChannels)
	return an, nil
}

// analyzeSamples windows the mono signal, FFTs each window and integrates
// the magnitudes into bass/mid/treble plus an RMS level. Each band is
// then normalized against its own peak so quiet mixes still reach 1.
func analyzeSamples(samples []float64, rate int) *Analysis {
	if rate <= 0 || len(samples) == 0 {
		return &Analysis{perSec: 1}
	}

	hann := make([]float64, windowSize)
	for i := range hann {
		hann[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(windowSize-1)))
	}

	binHz := float64(rate) / windowSize
	window := make([]float64, windowSize)

	var frames []Frame
	for start := 0; start < len(samples); start += hopSize {
		var sumSq float64
		n := 0
		for i := 0; i < windowSize; i++ {
			if start+i < len(samples) {
				s := samples[start+i]
				window[i] = s * hann[i]
				sumSq += s * s
				n++
			} else {
				window[i] = 0
			}
		}

		spectrum := fft.FFTReal(window)
		half := len(spectrum)/2 + 1

		var fr Frame
		for b := 1; b < half; b++ {
			mag := cmplx.Abs(spectrum[b]) / float64(windowSize)
			freq := float64(b) * binHz
			switch {
			case freq < bassLow:
			case freq < bassHigh:
				fr.Bass += mag
			case freq < midHigh:
				fr.Mid += mag
			case freq < trebHigh:
				fr.Treble += mag
			}
		}
		if n > 0 {
			fr.Level = math.Sqrt(sumSq / float64(n))
		}
		frames = append(frames, fr)
	}

	normalize(frames)
	return &Analysis{
		frames: frames,
		perSec: float64(rate) / hopSize,
		dur:    float64(len(samples)) / float64(rate),
	}
}

// normalize scales each band by its own file-wide peak
func normalize(frames []Frame) {
	var level, bass, mid, treble float64
	for _, fr := range frames {
		level = math.Max(level, fr.Level)
		bass = math.Max(bass, fr.Bass)
		mid = math.Max(mid, fr.Mid)
		treble = math.Max(treble, fr.Treble)
	}
	for i := range frames {
		if level > 0 {
			frames[i].Level /= level
		}
		if bass > 0 {
			frames[i].Bass /= bass
		}
		if mid > 0 {
			frames[i].Mid /= mid
		}
		if treble > 0 {
			frames[i].Treble /= treble
		}
	}
}

// Frames returns the number of analysis windows
func (a *Analysis) Frames() int {
	return len(a.frames)
}

// Duration returns the analyzed length in seconds
func (a *Analysis) Duration() float64 {
	return a.dur
}

// At returns the frame covering a transport position in seconds. Outside
// the file (before zero or past the end) it returns silence.
func (a *Analysis) At(pos float64) Frame {
	if pos < 0 || len(a.frames) == 0 {
		return Frame{}
	}
	idx := int(pos * a.perSec)
	if idx >= len(a.frames) {
		return Frame{}
	}
	return a.frames[idx]
}
