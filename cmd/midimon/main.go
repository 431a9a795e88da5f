package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-modulate/clock"
	"go-modulate/debug"
	"go-modulate/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	if os.Getenv("GO_MODULATE_DEBUG") != "" {
		if err := debug.EnableTo("midimon.log"); err != nil {
			fmt.Printf("debug log: %v\n", err)
		}
		defer debug.Disable()
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "monitor":
		monitor(argOr(2, ""))
	case "clock":
		watchClock(argOr(2, ""))
	case "send":
		sendCC(os.Args[2:])
	case "divisions":
		printDivisions(argOr(2, "120"))
	default:
		usage()
	}
}

func usage() {
	fmt.Println("midimon - MIDI diagnostics for go-modulate")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                       - List all MIDI ports")
	fmt.Println("  monitor [port]             - Print decoded events from a port (default: first)")
	fmt.Println("  clock [port]               - Measure external clock BPM")
	fmt.Println("  send <port> <ch> <cc> <val> - Send one control change")
	fmt.Println("  divisions [bpm]            - Print division durations at a tempo")
}

func argOr(i int, def string) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return def
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	ins := midi.InputNames()
	if ins == nil {
		fmt.Println("port scan timed out (is the MIDI server wedged?)")
		return
	}
	for i, name := range ins {
		fmt.Printf("  %d: %s\n", i, name)
	}

	fmt.Println("\n=== MIDI Output Ports ===")
	for i, name := range midi.OutputNames() {
		fmt.Printf("  %d: %s\n", i, name)
	}
}

func openInput(pattern string) (<-chan midi.Event, *midi.Listener, error) {
	if pattern == "" {
		names := midi.InputNames()
		if len(names) == 0 {
			return nil, nil, fmt.Errorf("no input ports")
		}
		pattern = names[0]
	}

	port, err := midi.FindInput(pattern)
	if err != nil {
		return nil, nil, err
	}

	events := make(chan midi.Event, 256)
	l, err := midi.Listen(port, events)
	if err != nil {
		return nil, nil, err
	}
	return events, l, nil
}

func monitor(pattern string) {
	events, l, err := openInput(pattern)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer l.Close()

	fmt.Printf("Monitoring %s (Ctrl+C to exit, clock ticks summarized)...\n", l.Name())

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	clocks := 0
	for {
		select {
		case ev := <-events:
			switch ev.Kind {
			case midi.KindClock:
				clocks++
				if clocks%clock.PulsesPerQuarter == 0 {
					fmt.Printf("%s  clock     beat (%d pulses)\n",
						ev.Time.Format("15:04:05.000"), clocks)
				}
			case midi.KindCC:
				fmt.Printf("%s  cc        ch=%d controller=%d value=%d\n",
					ev.Time.Format("15:04:05.000"), ev.Channel, ev.Number, ev.Value)
			case midi.KindNoteOn, midi.KindNoteOff:
				fmt.Printf("%s  %-9s ch=%d note=%d velocity=%d\n",
					ev.Time.Format("15:04:05.000"), ev.Kind, ev.Channel, ev.Number, ev.Value)
			case midi.KindPitchBend:
				fmt.Printf("%s  bend      ch=%d value=%d\n",
					ev.Time.Format("15:04:05.000"), ev.Channel, ev.Bend)
			default:
				fmt.Printf("%s  %s\n", ev.Time.Format("15:04:05.000"), ev.Kind)
			}
		case <-interrupt:
			fmt.Println("\nDone!")
			return
		}
	}
}

func watchClock(pattern string) {
	events, l, err := openInput(pattern)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer l.Close()

	fmt.Printf("Waiting for clock on %s (Ctrl+C to exit)...\n", l.Name())

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	var (
		pulses   int
		beatMark time.Time
	)
	for {
		select {
		case ev := <-events:
			switch ev.Kind {
			case midi.KindClock:
				if pulses == 0 {
					beatMark = ev.Time
				}
				pulses++
				if pulses%clock.PulsesPerQuarter == 0 {
					elapsed := ev.Time.Sub(beatMark).Seconds()
					beats := float64(pulses) / clock.PulsesPerQuarter
					fmt.Printf("beat %3.0f  bpm=%.2f\n", beats, 60*beats/elapsed)
				}
			case midi.KindStart:
				fmt.Println("transport: start")
				pulses = 0
			case midi.KindContinue:
				fmt.Println("transport: continue")
			case midi.KindStop:
				fmt.Println("transport: stop")
			}
		case <-interrupt:
			fmt.Println("\nDone!")
			return
		}
	}
}

func sendCC(args []string) {
	if len(args) < 4 {
		fmt.Println("usage: midimon send <port> <channel> <controller> <value>")
		return
	}

	ch, err1 := strconv.Atoi(args[1])
	cc, err2 := strconv.Atoi(args[2])
	val, err3 := strconv.Atoi(args[3])
	if err1 != nil || err2 != nil || err3 != nil ||
		ch < 0 || ch > int(midi.MaxChannel) ||
		cc < 0 || cc > int(midi.MaxValue) ||
		val < 0 || val > int(midi.MaxValue) {
		fmt.Println("channel 0-15, controller and value 0-127")
		return
	}

	send, closer, err := midi.OpenSender(args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer closer()

	if err := send(gomidi.ControlChange(uint8(ch), uint8(cc), uint8(val))); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Sent CC ch=%d controller=%d value=%d\n", ch, cc, val)
}

func printDivisions(bpmArg string) {
	bpm, err := strconv.ParseFloat(bpmArg, 64)
	if err != nil {
		fmt.Printf("bad bpm %q\n", bpmArg)
		return
	}
	bpm = clock.ClampBPM(bpm)

	fmt.Printf("Division durations at %.1f BPM:\n", bpm)
	for _, tok := range clock.Divisions() {
		d, err := clock.Duration(bpm, tok)
		if err != nil {
			continue
		}
		fmt.Printf("  %-6s %8.4fs\n", tok, d)
	}
}
