package engine

import (
	"sort"
	"sync"

	"go-modulate/debug"

	"github.com/pkg/errors"
)

// EventKind classifies a decoded control event
type EventKind int

const (
	KindCC EventKind = iota
	KindNote
	KindPitchBend
)

func (k EventKind) String() string {
	switch k {
	case KindCC:
		return "cc"
	case KindNote:
		return "note"
	case KindPitchBend:
		return "bend"
	}
	return "unknown"
}

// ControlEvent is the decoded event handed to handlers and learn listeners
type ControlEvent struct {
	Kind    EventKind
	Channel uint8
	Number  uint8 // controller or note number
	Value   int   // CC value / velocity (0-127) or bend (0-16383)
}

// HandlerFunc processes one event. A returned error (or panic) is logged
// and isolated; dispatch always continues.
type HandlerFunc func(ControlEvent) error

// MappingEntry is one row of the declarative mapping table. Value holds
// the controller number for CC maps and the note number for note maps.
// A row may fan out to one target per plane.
type MappingEntry struct {
	ControlID    string `json:"-"`
	Channel      uint8  `json:"channel"`
	Value        uint8  `json:"value"`
	Target       string `json:"target"`
	P5Target     string `json:"p5Target,omitempty"`
	ShaderTarget string `json:"shaderTarget,omitempty"`
}

// Validate checks the ranges a well-formed entry must satisfy
func (e MappingEntry) Validate() error {
	if e.Channel > 15 {
		return errors.Errorf("channel %d out of range 0-15", e.Channel)
	}
	if e.Value > 127 {
		return errors.Errorf("value %d out of range 0-127", e.Value)
	}
	if e.Target == "" {
		return errors.New("empty target")
	}
	return nil
}

func (e MappingEntry) targets() []string {
	out := make([]string, 0, 3)
	if e.Target != "" {
		out = append(out, e.Target)
	}
	if e.P5Target != "" {
		out = append(out, e.P5Target)
	}
	if e.ShaderTarget != "" {
		out = append(out, e.ShaderTarget)
	}
	return out
}

// ParamApplier is the slice of the registry the router needs
type ParamApplier interface {
	Normalize(raw int, target string) (float64, error)
	Apply(target string, norm float64, source string)
	Toggle(target, source string)
}

// Router dispatches decoded MIDI through three layers, in order: one-shot
// learn listeners, direct handlers, then the declarative mapping table.
type Router struct {
	mu     sync.Mutex
	params ParamApplier

	ccMappings   map[string]MappingEntry
	noteMappings map[string]MappingEntry

	ccHandlers   map[uint8][]HandlerFunc
	noteHandlers map[uint8][]HandlerFunc
	bendHandlers []HandlerFunc

	learn []HandlerFunc

	thru func(ControlEvent) // optional forward of matched events
}

// NewRouter creates an empty router over a parameter applier
func NewRouter(params ParamApplier) *Router {
	return &Router{
		params:       params,
		ccMappings:   make(map[string]MappingEntry),
		noteMappings: make(map[string]MappingEntry),
		ccHandlers:   make(map[uint8][]HandlerFunc),
		noteHandlers: make(map[uint8][]HandlerFunc),
	}
}

// SetThru installs a forwarder invoked for events that matched a mapping
func (r *Router) SetThru(fn func(ControlEvent)) {
	r.mu.Lock()
	r.thru = fn
	r.mu.Unlock()
}

// Learn registers a one-shot listener for the next CC or note-on. The
// listener is removed before it runs, so a failing listener cannot
// re-fire or block the layers behind it.
func (r *Router) Learn(fn HandlerFunc) {
	r.mu.Lock()
	r.learn = append(r.learn, fn)
	r.mu.Unlock()
	debug.Log("router", "learn listener armed")
}

// CancelLearn drops all pending learn listeners
func (r *Router) CancelLearn() {
	r.mu.Lock()
	n := len(r.learn)
	r.learn = nil
	r.mu.Unlock()
	if n > 0 {
		debug.Log("router", "cancelled %d learn listener(s)", n)
	}
}

// LearnPending reports whether a learn listener is armed
func (r *Router) LearnPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.learn) > 0
}

// RegisterCC adds a direct handler for one controller number
func (r *Router) RegisterCC(controller uint8, fn HandlerFunc) {
	r.mu.Lock()
	r.ccHandlers[controller] = append(r.ccHandlers[controller], fn)
	r.mu.Unlock()
}

// RegisterNote adds a direct handler for one note number
func (r *Router) RegisterNote(note uint8, fn HandlerFunc) {
	r.mu.Lock()
	r.noteHandlers[note] = append(r.noteHandlers[note], fn)
	r.mu.Unlock()
}

// RegisterPitchBend adds a direct handler for pitch bend (14-bit raw)
func (r *Router) RegisterPitchBend(fn HandlerFunc) {
	r.mu.Lock()
	r.bendHandlers = append(r.bendHandlers, fn)
	r.mu.Unlock()
}

// SetCCMapping adds or replaces a CC table row
func (r *Router) SetCCMapping(id string, e MappingEntry) error {
	if err := e.Validate(); err != nil {
		return errors.Wrapf(err, "cc mapping %q", id)
	}
	e.ControlID = id
	r.mu.Lock()
	r.ccMappings[id] = e
	r.mu.Unlock()
	debug.Log("router", "cc mapping %s: ch=%d cc=%d -> %v", id, e.Channel, e.Value, e.targets())
	return nil
}

// SetNoteMapping adds or replaces a note table row
func (r *Router) SetNoteMapping(id string, e MappingEntry) error {
	if err := e.Validate(); err != nil {
		return errors.Wrapf(err, "note mapping %q", id)
	}
	e.ControlID = id
	r.mu.Lock()
	r.noteMappings[id] = e
	r.mu.Unlock()
	debug.Log("router", "note mapping %s: ch=%d note=%d -> %v", id, e.Channel, e.Value, e.targets())
	return nil
}

// RemoveCCMapping deletes a CC table row
func (r *Router) RemoveCCMapping(id string) {
	r.mu.Lock()
	delete(r.ccMappings, id)
	r.mu.Unlock()
}

// RemoveNoteMapping deletes a note table row
func (r *Router) RemoveNoteMapping(id string) {
	r.mu.Lock()
	delete(r.noteMappings, id)
	r.mu.Unlock()
}

// CCMappings returns a copy of the CC table
func (r *Router) CCMappings() map[string]MappingEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]MappingEntry, len(r.ccMappings))
	for k, v := range r.ccMappings {
		out[k] = v
	}
	return out
}

// NoteMappings returns a copy of the note table
func (r *Router) NoteMappings() map[string]MappingEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]MappingEntry, len(r.noteMappings))
	for k, v := range r.noteMappings {
		out[k] = v
	}
	return out
}

// ReplaceMappings swaps both tables atomically (scene load)
func (r *Router) ReplaceMappings(cc, note map[string]MappingEntry) {
	ccCopy := make(map[string]MappingEntry, len(cc))
	for k, v := range cc {
		v.ControlID = k
		ccCopy[k] = v
	}
	noteCopy := make(map[string]MappingEntry, len(note))
	for k, v := range note {
		v.ControlID = k
		noteCopy[k] = v
	}

	r.mu.Lock()
	r.ccMappings = ccCopy
	r.noteMappings = noteCopy
	r.mu.Unlock()
	debug.Log("router", "mappings replaced: %d cc, %d note", len(ccCopy), len(noteCopy))
}

// OnControlChange dispatches one CC through all three layers
func (r *Router) OnControlChange(channel, controller, value uint8) {
	ev := ControlEvent{Kind: KindCC, Channel: channel, Number: controller, Value: int(value)}

	learners, handlers, entries, thru := r.snapshotCC(controller)

	for _, fn := range learners {
		r.safeCall("learn", fn, ev)
	}
	for _, fn := range handlers {
		r.safeCall("cc-handler", fn, ev)
	}

	matched := 0
	for _, e := range entries {
		if e.Channel != channel || e.Value != controller {
			continue
		}
		matched++
		for _, target := range e.targets() {
			norm, err := r.params.Normalize(int(value), target)
			if err != nil {
				debug.Warn("router", "mapping %s: %v", e.ControlID, err)
				continue
			}
			r.params.Apply(target, norm, "midi")
		}
	}

	if matched == 0 && len(handlers) == 0 && len(learners) == 0 {
		debug.LogEvery(50, "router", "unmatched cc ch=%d cc=%d", channel, controller)
	}
	if matched > 0 && thru != nil {
		thru(ev)
	}
}

// OnNote dispatches one note event. Note-offs are ignored entirely;
// note-ons toggle their mapped targets.
func (r *Router) OnNote(channel, note, velocity uint8, on bool) {
	if !on {
		return
	}
	ev := ControlEvent{Kind: KindNote, Channel: channel, Number: note, Value: int(velocity)}

	learners, handlers, entries, thru := r.snapshotNote(note)

	for _, fn := range learners {
		r.safeCall("learn", fn, ev)
	}
	for _, fn := range handlers {
		r.safeCall("note-handler", fn, ev)
	}

	matched := 0
	for _, e := range entries {
		if e.Channel != channel || e.Value != note {
			continue
		}
		matched++
		for _, target := range e.targets() {
			r.params.Toggle(target, "midi")
		}
	}

	if matched > 0 && thru != nil {
		thru(ev)
	}
}

// OnPitchBend dispatches a 14-bit bend value to direct handlers
func (r *Router) OnPitchBend(channel uint8, value int) {
	ev := ControlEvent{Kind: KindPitchBend, Channel: channel, Value: value}

	r.mu.Lock()
	handlers := make([]HandlerFunc, len(r.bendHandlers))
	copy(handlers, r.bendHandlers)
	r.mu.Unlock()

	for _, fn := range handlers {
		r.safeCall("bend-handler", fn, ev)
	}
}

// TestCCValues replays every mapping through the full dispatch path with
// a mid-range value, so a rig can be smoke-tested without hardware
func (r *Router) TestCCValues() {
	for _, e := range sortEntries(r.CCMappings()) {
		debug.Log("router", "test replay cc %s ch=%d cc=%d value=64", e.ControlID, e.Channel, e.Value)
		r.OnControlChange(e.Channel, e.Value, 64)
	}
	for _, e := range sortEntries(r.NoteMappings()) {
		debug.Log("router", "test replay note %s ch=%d note=%d", e.ControlID, e.Channel, e.Value)
		r.OnNote(e.Channel, e.Value, 100, true)
	}
}

// snapshotCC captures the learn listeners (consuming them), the direct
// handlers for a controller and the table rows under the lock, so
// handlers may mutate the router re-entrantly
func (r *Router) snapshotCC(controller uint8) ([]HandlerFunc, []HandlerFunc, []MappingEntry, func(ControlEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	learners := r.learn
	r.learn = nil

	handlers := make([]HandlerFunc, len(r.ccHandlers[controller]))
	copy(handlers, r.ccHandlers[controller])

	return learners, handlers, sortEntries(r.ccMappings), r.thru
}

func (r *Router) snapshotNote(note uint8) ([]HandlerFunc, []HandlerFunc, []MappingEntry, func(ControlEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	learners := r.learn
	r.learn = nil

	handlers := make([]HandlerFunc, len(r.noteHandlers[note]))
	copy(handlers, r.noteHandlers[note])

	return learners, handlers, sortEntries(r.noteMappings), r.thru
}

func sortEntries(m map[string]MappingEntry) []MappingEntry {
	out := make([]MappingEntry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ControlID < out[j].ControlID })
	return out
}

// safeCall runs one handler with fault isolation: errors and panics are
// logged and dispatch moves on
func (r *Router) safeCall(layer string, fn HandlerFunc, ev ControlEvent) {
	defer func() {
		if p := recover(); p != nil {
			debug.Error("router", "%s panic: %v (ev=%s ch=%d num=%d)", layer, p, ev.Kind, ev.Channel, ev.Number)
		}
	}()
	if err := fn(ev); err != nil {
		debug.Error("router", "%s failed: %v (ev=%s ch=%d num=%d)", layer, err, ev.Kind, ev.Channel, ev.Number)
	}
}
