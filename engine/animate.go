package engine

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"go-modulate/clock"
	"go-modulate/debug"

	"github.com/pkg/errors"
)

// Easing shapes one animation cycle. Each curve maps phase [0,1) onto a
// normalized wave value in [0,1].
type Easing string

const (
	EaseLinear     Easing = "linear"
	EaseSaw        Easing = "saw"
	EaseSineIn     Easing = "sineIn"
	EaseSineOut    Easing = "sineOut"
	EaseSineInOut  Easing = "sineInOut"
	EaseTriangle   Easing = "triangle"
	EaseSquare     Easing = "square"
	EaseRandomHold Easing = "randomHold"
)

var easingOrder = []Easing{
	EaseLinear, EaseSaw, EaseSineIn, EaseSineOut,
	EaseSineInOut, EaseTriangle, EaseSquare, EaseRandomHold,
}

// Easings returns the valid curves in UI cycling order
func Easings() []Easing {
	out := make([]Easing, len(easingOrder))
	copy(out, easingOrder)
	return out
}

// Valid reports whether e names a known curve
func (e Easing) Valid() bool {
	for _, known := range easingOrder {
		if e == known {
			return true
		}
	}
	return false
}

// AnimConfig configures one target's animation
type AnimConfig struct {
	Enabled   bool           `json:"enabled"`
	Amplitude float64        `json:"amplitude"`
	Division  clock.Division `json:"division"`
	Easing    Easing         `json:"easing"`
	Direction int            `json:"direction"` // +1 or -1
}

// Validate checks the shape a stored animation config must have
func (c AnimConfig) Validate() error {
	if !c.Division.Valid() {
		return errors.Errorf("invalid division %q", string(c.Division))
	}
	if c.Easing != "" && !c.Easing.Valid() {
		return errors.Errorf("invalid easing %q", string(c.Easing))
	}
	if c.Direction != 0 && c.Direction != 1 && c.Direction != -1 {
		return errors.Errorf("direction %d not +1/-1", c.Direction)
	}
	if math.IsNaN(c.Amplitude) || math.IsInf(c.Amplitude, 0) {
		return errors.New("amplitude not finite")
	}
	return nil
}

// AnimStatus is one row of the animator snapshot
type AnimStatus struct {
	Target string
	Config AnimConfig
	Phase  float64
}

type animation struct {
	cfg      AnimConfig
	phase    float64
	duration float64
	held     float64 // sample for randomHold, re-rolled each cycle
}

// Animator drives musically-timed parameter offsets, advanced once per
// frame by delta time. One animation per target; offsets go through the
// registry's modulation layer so the manual base value never moves.
type Animator struct {
	mu    sync.Mutex
	reg   *Registry
	bpm   float64
	anims map[string]*animation
	rng   *rand.Rand
}

// NewAnimator creates an idle animator at the given tempo
func NewAnimator(reg *Registry, bpm float64) *Animator {
	return &Animator{
		reg:   reg,
		bpm:   clock.ClampBPM(bpm),
		anims: make(map[string]*animation),
		rng:   rand.New(rand.NewSource(rand.Int63())),
	}
}

func animSource(target string) string {
	return "anim:" + target
}

// Configure starts, restarts or cancels the animation on a target. Any
// change to an active animation cancels it synchronously and starts a
// fresh cycle at phase zero.
func (a *Animator) Configure(target string, cfg AnimConfig) error {
	if !a.reg.Has(target) {
		debug.Warn("anim", "unknown target %q dropped", target)
		return errors.Wrapf(ErrUnknownTarget, "%q", target)
	}

	if !cfg.Enabled {
		a.mu.Lock()
		_, existed := a.anims[target]
		delete(a.anims, target)
		a.mu.Unlock()
		if existed {
			a.reg.ClearOffset(target, animSource(target))
			debug.Log("anim", "%s cancelled, base value stands", target)
		}
		return nil
	}

	if err := cfg.Validate(); err != nil {
		debug.Warn("anim", "%s rejected: %v", target, err)
		return errors.Wrapf(err, "animation %q", target)
	}
	if cfg.Easing == "" {
		cfg.Easing = EaseLinear
	}
	if cfg.Direction == 0 {
		cfg.Direction = 1
	}

	a.mu.Lock()
	dur, err := clock.Duration(a.bpm, cfg.Division)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	// Cancel-then-replace: the old offset is dropped before the new
	// cycle starts so a stale value never survives a reconfigure
	a.anims[target] = &animation{
		cfg:      cfg,
		duration: dur,
		held:     a.rng.Float64(),
	}
	a.mu.Unlock()

	a.reg.ClearOffset(target, animSource(target))
	debug.Log("anim", "%s: amp=%.3f div=%s ease=%s dir=%+d dur=%.3fs",
		target, cfg.Amplitude, cfg.Division, cfg.Easing, cfg.Direction, dur)
	return nil
}

// Advance moves every active animation forward by dt seconds and writes
// the resulting offsets. Called once per frame.
func (a *Animator) Advance(dt float64) {
	if dt <= 0 {
		return
	}

	type write struct {
		target string
		offset float64
	}
	var writes []write

	a.mu.Lock()
	for target, an := range a.anims {
		an.phase += dt / an.duration
		if an.phase >= 1 {
			an.phase -= math.Floor(an.phase)
			an.held = a.rng.Float64()
		}
		w := wave(an.cfg.Easing, an.phase, an.held)
		writes = append(writes, write{
			target: target,
			offset: an.cfg.Amplitude * w * float64(an.cfg.Direction),
		})
	}
	a.mu.Unlock()

	for _, w := range writes {
		a.reg.SetOffset(w.target, animSource(w.target), w.offset)
	}
}

// Resync recomputes every duration for a new tempo and restarts the
// cycles, keeping animations locked to the beat grid
func (a *Animator) Resync(bpm float64) {
	a.mu.Lock()
	a.bpm = clock.ClampBPM(bpm)
	n := 0
	for _, an := range a.anims {
		if dur, err := clock.Duration(a.bpm, an.cfg.Division); err == nil {
			an.duration = dur
		}
		an.phase = 0
		n++
	}
	a.mu.Unlock()

	if n > 0 {
		debug.Log("anim", "resynced %d animation(s) to %.1f bpm", n, a.bpm)
	}
}

// StopAll cancels every animation and clears its offsets (teardown)
func (a *Animator) StopAll() {
	a.mu.Lock()
	targets := make([]string, 0, len(a.anims))
	for target := range a.anims {
		targets = append(targets, target)
	}
	a.anims = make(map[string]*animation)
	a.mu.Unlock()

	for _, target := range targets {
		a.reg.ClearOffset(target, animSource(target))
	}
	if len(targets) > 0 {
		debug.Log("anim", "stopped %d animation(s)", len(targets))
	}
}

// Config returns the live config for a target
func (a *Animator) Config(target string) (AnimConfig, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	an, ok := a.anims[target]
	if !ok {
		return AnimConfig{}, false
	}
	return an.cfg, true
}

// Configs returns every active config keyed by target (scene save)
func (a *Animator) Configs() map[string]AnimConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]AnimConfig, len(a.anims))
	for target, an := range a.anims {
		out[target] = an.cfg
	}
	return out
}

// ApplyConfigs replaces all animations (scene load)
func (a *Animator) ApplyConfigs(cfgs map[string]AnimConfig) {
	a.StopAll()
	for target, cfg := range cfgs {
		if err := a.Configure(target, cfg); err != nil {
			debug.Warn("anim", "scene animation %s skipped: %v", target, err)
		}
	}
}

// Active returns a sorted snapshot for the UI
func (a *Animator) Active() []AnimStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]AnimStatus, 0, len(a.anims))
	for target, an := range a.anims {
		out = append(out, AnimStatus{Target: target, Config: an.cfg, Phase: an.phase})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}

// wave evaluates one easing curve at a phase in [0,1)
func wave(e Easing, phase, held float64) float64 {
	switch e {
	case EaseLinear:
		return phase
	case EaseSaw:
		return 1 - phase
	case EaseSineIn:
		return 1 - math.Cos(phase*math.Pi/2)
	case EaseSineOut:
		return math.Sin(phase * math.Pi / 2)
	case EaseSineInOut:
		return 0.5 - 0.5*math.Cos(phase*math.Pi)
	case EaseTriangle:
		if phase < 0.5 {
			return 2 * phase
		}
		return 2 - 2*phase
	case EaseSquare:
		if phase < 0.5 {
			return 1
		}
		return 0
	case EaseRandomHold:
		return held
	}
	return phase
}
