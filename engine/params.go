package engine

import (
	"fmt"
	"sync"

	"go-modulate/debug"
)

// Plane identifies which visual layer owns a parameter
type Plane int

const (
	PlaneScene Plane = iota
	PlaneSketch
	PlaneShader
)

func (p Plane) String() string {
	switch p {
	case PlaneScene:
		return "scene"
	case PlaneSketch:
		return "sketch"
	case PlaneShader:
		return "shader"
	}
	return "unknown"
}

// NormalizeFunc maps a raw controller value onto [0,1]. Descriptors may
// carry one to override the linear raw/max default.
type NormalizeFunc func(raw, max int) float64

// Descriptor declares one animatable parameter. The table is closed at
// registry construction: values only ever flow into declared targets.
type Descriptor struct {
	Name      string
	Plane     Plane
	Min, Max  float64
	Step      float64
	Default   float64
	Bool      bool
	Bits      int // controller resolution: 7 (default) or 14
	Normalize NormalizeFunc
}

// ParamValue is one row of a registry snapshot
type ParamValue struct {
	Name  string
	Plane Plane
	Value float64 // base + offsets, clamped
	Base  float64 // manual value
	Norm  float64 // Value mapped back into [0,1] for meters
	Bool  bool
}

// ErrUnknownTarget is returned when a name is not in the descriptor table
var ErrUnknownTarget = fmt.Errorf("unknown target")

// Registry holds the closed parameter table plus the manual base value
// and additive modulation offsets for every target. Offsets are keyed by
// the source that wrote them so an animation and an audio band can stack
// on the same parameter without fighting.
type Registry struct {
	mu    sync.RWMutex
	order []string
	descs map[string]Descriptor
	base  map[string]float64
	offs  map[string]map[string]float64

	frameReq chan struct{}
}

// NewRegistry builds a registry from a descriptor table. Registration
// closes here; unknown targets are dropped at apply time.
func NewRegistry(descs []Descriptor) *Registry {
	r := &Registry{
		descs:    make(map[string]Descriptor, len(descs)),
		base:     make(map[string]float64, len(descs)),
		offs:     make(map[string]map[string]float64),
		frameReq: make(chan struct{}, 1),
	}
	for _, d := range descs {
		if d.Bits == 0 {
			d.Bits = 7
		}
		if _, dup := r.descs[d.Name]; dup {
			debug.Warn("params", "duplicate descriptor %q ignored", d.Name)
			continue
		}
		r.descs[d.Name] = d
		r.base[d.Name] = clamp(d.Default, d.Min, d.Max)
		r.order = append(r.order, d.Name)
	}
	return r
}

// FrameRequests is a 1-buffered channel poked whenever a value changes,
// so a paused render loop draws one frame with the new value
func (r *Registry) FrameRequests() <-chan struct{} {
	return r.frameReq
}

func (r *Registry) requestFrame() {
	select {
	case r.frameReq <- struct{}{}:
	default:
	}
}

// Has reports whether a target is declared
func (r *Registry) Has(target string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.descs[target]
	return ok
}

// Descriptor returns the declaration for a target
func (r *Registry) Descriptor(target string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descs[target]
	return d, ok
}

// Names returns all targets in declaration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Normalize maps a raw controller value onto [0,1] for a target. A
// descriptor's custom NormalizeFunc wins; otherwise raw/127 (raw/16383
// for 14-bit controls).
func (r *Registry) Normalize(raw int, target string) (float64, error) {
	r.mu.RLock()
	d, ok := r.descs[target]
	r.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}

	max := 127
	if d.Bits == 14 {
		max = 16383
	}
	var norm float64
	if d.Normalize != nil {
		norm = d.Normalize(raw, max)
	} else {
		norm = float64(raw) / float64(max)
	}
	return clamp(norm, 0, 1), nil
}

// Apply sets a target's manual base value from a normalized [0,1] input.
// Unknown targets are dropped with a warning. Applying the value a
// parameter already holds is a no-op.
func (r *Registry) Apply(target string, norm float64, source string) {
	r.mu.Lock()
	d, ok := r.descs[target]
	if !ok {
		r.mu.Unlock()
		debug.Warn("params", "unknown target %q dropped (source=%s)", target, source)
		return
	}

	v := d.Min + clamp(norm, 0, 1)*(d.Max-d.Min)
	v = snap(v, d.Step)
	v = clamp(v, d.Min, d.Max)

	if v == r.base[target] {
		r.mu.Unlock()
		return
	}
	r.base[target] = v
	r.mu.Unlock()

	debug.Log("params", "%s = %.3f (source=%s)", target, v, source)
	r.requestFrame()
}

// Toggle flips a boolean target; continuous targets get mid-range.
// This is the note-on behavior.
func (r *Registry) Toggle(target, source string) {
	r.mu.Lock()
	d, ok := r.descs[target]
	if !ok {
		r.mu.Unlock()
		debug.Warn("params", "unknown target %q dropped (source=%s)", target, source)
		return
	}
	if !d.Bool {
		r.mu.Unlock()
		r.Apply(target, 0.5, source)
		return
	}

	v := 0.0
	if r.base[target] == 0 {
		v = 1.0
	}
	r.base[target] = v
	r.mu.Unlock()

	debug.Log("params", "%s toggled to %v (source=%s)", target, v == 1, source)
	r.requestFrame()
}

// SetOffset writes one additive modulation offset under a source ID
func (r *Registry) SetOffset(target, sourceID string, offset float64) {
	r.mu.Lock()
	if _, ok := r.descs[target]; !ok {
		r.mu.Unlock()
		debug.Warn("params", "unknown offset target %q dropped (source=%s)", target, sourceID)
		return
	}
	m := r.offs[target]
	if m == nil {
		m = make(map[string]float64)
		r.offs[target] = m
	}
	m[sourceID] = offset
	r.mu.Unlock()
	r.requestFrame()
}

// ClearOffset removes one source's offset from a target
func (r *Registry) ClearOffset(target, sourceID string) {
	r.mu.Lock()
	if m, ok := r.offs[target]; ok {
		delete(m, sourceID)
		if len(m) == 0 {
			delete(r.offs, target)
		}
	}
	r.mu.Unlock()
	r.requestFrame()
}

// ClearSource removes a source's offsets from every target (teardown)
func (r *Registry) ClearSource(sourceID string) {
	r.mu.Lock()
	for target, m := range r.offs {
		delete(m, sourceID)
		if len(m) == 0 {
			delete(r.offs, target)
		}
	}
	r.mu.Unlock()
	r.requestFrame()
}

// Value returns base + the sum of active offsets, clamped into range
func (r *Registry) Value(target string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.valueLocked(target)
}

func (r *Registry) valueLocked(target string) float64 {
	d, ok := r.descs[target]
	if !ok {
		return 0
	}
	v := r.base[target]
	for _, off := range r.offs[target] {
		v += off
	}
	return clamp(v, d.Min, d.Max)
}

// BaseValue returns the manual value with no modulation applied
func (r *Registry) BaseValue(target string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.base[target]
}

// Snapshot returns every parameter in declaration order
func (r *Registry) Snapshot() []ParamValue {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ParamValue, 0, len(r.order))
	for _, name := range r.order {
		d := r.descs[name]
		v := r.valueLocked(name)
		norm := 0.0
		if d.Max > d.Min {
			norm = (v - d.Min) / (d.Max - d.Min)
		}
		out = append(out, ParamValue{
			Name:  name,
			Plane: d.Plane,
			Value: v,
			Base:  r.base[name],
			Norm:  norm,
			Bool:  d.Bool && r.base[name] != 0,
		})
	}
	return out
}

// Reset returns every base to its default and drops all offsets
func (r *Registry) Reset() {
	r.mu.Lock()
	for name, d := range r.descs {
		r.base[name] = clamp(d.Default, d.Min, d.Max)
	}
	r.offs = make(map[string]map[string]float64)
	r.mu.Unlock()
	r.requestFrame()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// snap rounds v to the nearest multiple of step (no-op for step <= 0)
func snap(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	n := v / step
	whole := float64(int64(n))
	frac := n - whole
	if frac >= 0.5 {
		whole++
	} else if frac <= -0.5 {
		whole--
	}
	return whole * step
}
