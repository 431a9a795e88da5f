package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	"go-modulate/debug"
)

// DeviceEventType says whether a port appeared or vanished
type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// DeviceEvent is emitted on the Devices channel when the set of open
// input ports changes
type DeviceEvent struct {
	Type DeviceEventType
	Port string
}

// Watcher hot-plugs MIDI input ports. It rescans once per second,
// opens a Listener for every matching port, and merges all of them
// into one event channel. Ports that vanish are closed and reopened
// automatically when they come back.
type Watcher struct {
	preferred []string
	excluded  []string
	pollRate  time.Duration

	mu        sync.Mutex
	listeners map[string]*Listener

	events  chan Event
	devices chan DeviceEvent
}

// NewWatcher builds a watcher. preferred and excluded are
// case-insensitive substring patterns against port names; an empty
// preferred list matches every port not excluded.
func NewWatcher(preferred, excluded []string) *Watcher {
	return &Watcher{
		preferred: cleanPatterns(preferred),
		excluded:  cleanPatterns(excluded),
		pollRate:  time.Second,
		listeners: make(map[string]*Listener),
		events:    make(chan Event, 256),
		devices:   make(chan DeviceEvent, 16),
	}
}

// Events is the merged stream of decoded input from every open port
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Devices reports connects and disconnects, mostly for the UI
func (w *Watcher) Devices() <-chan DeviceEvent {
	return w.devices
}

// Ports returns the names of the currently open inputs, sorted by map
// order (callers sort if they care)
func (w *Watcher) Ports() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	names := make([]string, 0, len(w.listeners))
	for name := range w.listeners {
		names = append(names, name)
	}
	return names
}

// Run scans for ports until ctx is cancelled. Blocking; run it in a
// goroutine. On exit every open listener is closed.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollRate)
	defer ticker.Stop()

	w.scan()

	for {
		select {
		case <-ctx.Done():
			w.closeAll()
			return
		case <-ticker.C:
			w.scan()
		}
	}
}

func (w *Watcher) scan() {
	ins, ok := scanInputs()
	if !ok {
		// scan timed out, keep whatever we have and retry next tick
		return
	}

	seen := make(map[string]bool, len(ins))
	var opened, closed []string

	for i := range ins {
		name := ins[i].String()
		if !w.wants(name) {
			continue
		}
		seen[name] = true

		w.mu.Lock()
		_, exists := w.listeners[name]
		w.mu.Unlock()
		if exists {
			continue
		}

		l, err := Listen(ins[i], w.events)
		if err != nil {
			debug.Warn("midi", "open %s: %v", name, err)
			continue
		}

		w.mu.Lock()
		w.listeners[name] = l
		w.mu.Unlock()
		opened = append(opened, name)
	}

	w.mu.Lock()
	for name, l := range w.listeners {
		if !seen[name] {
			l.Close()
			delete(w.listeners, name)
			closed = append(closed, name)
		}
	}
	w.mu.Unlock()

	for _, name := range opened {
		w.notify(DeviceEvent{Type: DeviceConnected, Port: name})
	}
	for _, name := range closed {
		debug.Info("midi", "port vanished: %s", name)
		w.notify(DeviceEvent{Type: DeviceDisconnected, Port: name})
	}
}

// notify never blocks; the UI polls often enough that a dropped
// notification only delays the device list refresh by one tick
func (w *Watcher) notify(ev DeviceEvent) {
	select {
	case w.devices <- ev:
	default:
	}
}

// cleanPatterns drops empty strings so a config like ["", ""] behaves
// like no patterns at all
func cleanPatterns(pats []string) []string {
	out := make([]string, 0, len(pats))
	for _, p := range pats {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// wants applies the name patterns. Exclusion wins over preference.
func (w *Watcher) wants(name string) bool {
	lower := strings.ToLower(name)
	for _, pat := range w.excluded {
		if strings.Contains(lower, strings.ToLower(pat)) {
			return false
		}
	}
	if len(w.preferred) == 0 {
		return true
	}
	for _, pat := range w.preferred {
		if strings.Contains(lower, strings.ToLower(pat)) {
			return true
		}
	}
	return false
}

func (w *Watcher) closeAll() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for name, l := range w.listeners {
		l.Close()
		delete(w.listeners, name)
	}
}
