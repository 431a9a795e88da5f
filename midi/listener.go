package midi

import (
	"fmt"
	"time"

	"go-modulate/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Listener decodes one input port into a shared event sink
type Listener struct {
	port drivers.In
	name string
	stop func()
}

// Listen opens an input port and decodes everything it produces into
// sink. Realtime clock bytes are included in the stream. The sink write
// never blocks: if the consumer falls behind, events are dropped.
func Listen(port drivers.In, sink chan<- Event) (*Listener, error) {
	l := &Listener{port: port, name: port.String()}

	stop, err := gomidi.ListenTo(port, func(msg gomidi.Message, _ int32) {
		ev, ok := Decode(msg)
		if !ok {
			return
		}
		ev.Port = l.name
		ev.Time = time.Now()
		select {
		case sink <- ev:
		default:
			debug.LogEvery(100, "midi", "sink full, dropping %s from %s", ev.Kind, l.name)
		}
	}, gomidi.UseTimeCode(), gomidi.HandleError(func(err error) {
		debug.Warn("midi", "listener %s: %v", l.name, err)
	}))
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", l.name, err)
	}

	l.stop = stop
	debug.Info("midi", "listening on %s", l.name)
	return l, nil
}

// Name returns the port name
func (l *Listener) Name() string {
	return l.name
}

// Close stops listening. Safe to call more than once.
func (l *Listener) Close() {
	if l.stop != nil {
		l.stop()
		l.stop = nil
		debug.Info("midi", "closed %s", l.name)
	}
}
