package midi

import (
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// MIDI status bytes and value ranges
const (
	StatusNoteOn   uint8 = 0x90
	StatusNoteOff  uint8 = 0x80
	StatusCC       uint8 = 0xB0
	StatusClock    uint8 = 0xF8
	StatusStart    uint8 = 0xFA
	StatusContinue uint8 = 0xFB
	StatusStop     uint8 = 0xFC

	MaxChannel uint8 = 15
	MaxValue   uint8 = 127 // controller numbers, notes, velocities, CC values
	MaxBend    int   = 16383
	BendCenter int   = 8192
)

// Kind classifies a decoded input event
type Kind int

const (
	KindCC Kind = iota
	KindNoteOn
	KindNoteOff
	KindPitchBend
	KindClock
	KindStart
	KindContinue
	KindStop
)

func (k Kind) String() string {
	switch k {
	case KindCC:
		return "cc"
	case KindNoteOn:
		return "note-on"
	case KindNoteOff:
		return "note-off"
	case KindPitchBend:
		return "bend"
	case KindClock:
		return "clock"
	case KindStart:
		return "start"
	case KindContinue:
		return "continue"
	case KindStop:
		return "stop"
	}
	return "unknown"
}

// Event is one decoded MIDI input event
type Event struct {
	Kind    Kind
	Channel uint8
	Number  uint8 // controller (CC) or note number
	Value   uint8 // CC value or velocity
	Bend    int   // absolute 14-bit bend, 0-16383
	Port    string
	Time    time.Time
}

// Decode turns a raw gomidi message into an Event. Messages the engine
// does not consume (aftertouch, program change, sysex, active sense)
// return ok=false.
func Decode(msg gomidi.Message) (Event, bool) {
	var (
		channel, number, value uint8
		rel                    int16
		abs                    uint16
	)

	switch {
	case msg.GetControlChange(&channel, &number, &value):
		return Event{Kind: KindCC, Channel: channel, Number: number, Value: value}, true
	case msg.GetNoteStart(&channel, &number, &value):
		return Event{Kind: KindNoteOn, Channel: channel, Number: number, Value: value}, true
	case msg.GetNoteEnd(&channel, &number):
		return Event{Kind: KindNoteOff, Channel: channel, Number: number}, true
	case msg.GetPitchBend(&channel, &rel, &abs):
		return Event{Kind: KindPitchBend, Channel: channel, Bend: int(abs)}, true
	case msg.Is(gomidi.TimingClockMsg):
		return Event{Kind: KindClock}, true
	case msg.Is(gomidi.StartMsg):
		return Event{Kind: KindStart}, true
	case msg.Is(gomidi.ContinueMsg):
		return Event{Kind: KindContinue}, true
	case msg.Is(gomidi.StopMsg):
		return Event{Kind: KindStop}, true
	}
	return Event{}, false
}
