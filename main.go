package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"go-modulate/audio"
	"go-modulate/config"
	"go-modulate/debug"
	"go-modulate/engine"
	"go-modulate/midi"
	"go-modulate/theme"
	"go-modulate/tui"
)

func main() {
	if os.Getenv("GO_MODULATE_DEBUG") != "" {
		if err := debug.Enable(); err != nil {
			fmt.Printf("debug log: %v\n", err)
		}
		defer debug.Disable()
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("config: %v\n", err)
		os.Exit(1)
	}

	palette, err := theme.Load(cfg.UI.Theme)
	if err != nil {
		fmt.Printf("palette %s: %v (using default)\n", cfg.UI.Theme, err)
		palette = theme.Default()
	}
	th := theme.New(palette)

	// Create the engine: clock, registry, router, animator
	eng := engine.New(engine.Config{
		Clock:    cfg.Clock.Source(),
		FPS:      cfg.UI.FPS,
		ThruPort: cfg.MIDI.ThruPort,
	})

	// Create MIDI watcher (handles hot-plug)
	watcher := midi.NewWatcher(cfg.MIDI.PreferredInputs, cfg.MIDI.ExcludedInputs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	eng.Start(watcher.Events())
	defer eng.Stop()

	if cfg.Autoload.Scene != "" {
		if err := eng.LoadScene(cfg.Autoload.Scene, ""); err != nil {
			fmt.Printf("autoload scene %s: %v\n", cfg.Autoload.Scene, err)
		}
	}

	if cfg.Audio.File != "" {
		analysis, err := audio.AnalyzeWAV(cfg.Audio.File)
		if err != nil {
			fmt.Printf("audio %s: %v (skipping audio mods)\n", cfg.Audio.File, err)
		} else {
			eng.SetModulator(audio.NewModulator(analysis, cfg.Audio.Mods, eng.Registry()))
		}
	}

	fmt.Println("go-modulate")
	fmt.Println("Connect MIDI devices any time - they'll be detected automatically")
	fmt.Println("")

	m := tui.NewModel(eng, watcher, th, *cfg)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
