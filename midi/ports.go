package midi

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go-modulate/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters the driver
)

// scanTimeout bounds port scans. CoreMIDI can hang indefinitely when
// the midiserver is wedged, and a hung scan must not stall the engine.
const scanTimeout = 3 * time.Second

func scanInputs() ([]drivers.In, bool) {
	result := make(chan []drivers.In, 1)
	go func() {
		result <- gomidi.GetInPorts()
	}()
	select {
	case ins := <-result:
		return ins, true
	case <-time.After(scanTimeout):
		debug.Warn("midi", "input port scan timed out after %v", scanTimeout)
		return nil, false
	}
}

func scanOutputs() ([]drivers.Out, bool) {
	result := make(chan []drivers.Out, 1)
	go func() {
		result <- gomidi.GetOutPorts()
	}()
	select {
	case outs := <-result:
		return outs, true
	case <-time.After(scanTimeout):
		debug.Warn("midi", "output port scan timed out after %v", scanTimeout)
		return nil, false
	}
}

// InputNames lists the names of every input port, sorted
func InputNames() []string {
	ins, ok := scanInputs()
	if !ok {
		return nil
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	sort.Strings(names)
	return names
}

// OutputNames lists the names of every output port, sorted
func OutputNames() []string {
	outs, ok := scanOutputs()
	if !ok {
		return nil
	}
	names := make([]string, 0, len(outs))
	for _, out := range outs {
		names = append(names, out.String())
	}
	sort.Strings(names)
	return names
}

// FindInput returns the first input port whose name contains pattern
// (case-insensitive). An exact match wins over a substring match.
func FindInput(pattern string) (drivers.In, error) {
	ins, ok := scanInputs()
	if !ok {
		return nil, fmt.Errorf("port scan timed out")
	}
	lower := strings.ToLower(pattern)
	for _, in := range ins {
		if strings.ToLower(in.String()) == lower {
			return in, nil
		}
	}
	for _, in := range ins {
		if strings.Contains(strings.ToLower(in.String()), lower) {
			return in, nil
		}
	}
	return nil, fmt.Errorf("no input port matching %q", pattern)
}

// FindOutput is FindInput for output ports
func FindOutput(pattern string) (drivers.Out, error) {
	outs, ok := scanOutputs()
	if !ok {
		return nil, fmt.Errorf("port scan timed out")
	}
	lower := strings.ToLower(pattern)
	for _, out := range outs {
		if strings.ToLower(out.String()) == lower {
			return out, nil
		}
	}
	for _, out := range outs {
		if strings.Contains(strings.ToLower(out.String()), lower) {
			return out, nil
		}
	}
	return nil, fmt.Errorf("no output port matching %q", pattern)
}

// OpenSender opens an output port for forwarding and returns a send
// function plus a closer. The port is matched by name the same way
// FindOutput matches.
func OpenSender(portName string) (func(gomidi.Message) error, func(), error) {
	out, err := FindOutput(portName)
	if err != nil {
		return nil, nil, err
	}

	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, nil, fmt.Errorf("open output %s: %w", out.String(), err)
	}

	debug.Info("midi", "sending to %s", out.String())
	closer := func() {
		out.Close()
		debug.Info("midi", "closed output %s", out.String())
	}
	return func(msg gomidi.Message) error { return send(msg) }, closer, nil
}
