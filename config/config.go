package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go-modulate/audio"
	"go-modulate/clock"
)

// MIDIConfig selects input ports and the optional thru output.
// Preferred/excluded are case-insensitive substring patterns; an empty
// preferred list takes every port not excluded.
type MIDIConfig struct {
	PreferredInputs []string `json:"preferredInputs,omitempty"`
	ExcludedInputs  []string `json:"excludedInputs,omitempty"`
	ThruPort        string   `json:"thruPort,omitempty"`
}

// ClockConfig seeds the transport
type ClockConfig struct {
	BPM            float64 `json:"bpm"`
	PreferExternal bool    `json:"preferExternal"`
	TimeoutMs      int     `json:"timeoutMs"`
}

// Source converts the stored form into the clock's config
func (c ClockConfig) Source() clock.Config {
	return clock.Config{
		BPM:            c.BPM,
		PreferExternal: c.PreferExternal,
		Timeout:        time.Duration(c.TimeoutMs) * time.Millisecond,
	}
}

// UIConfig stores UI preferences
type UIConfig struct {
	Theme string `json:"theme,omitempty"` // path to a .gpl palette file
	FPS   int    `json:"fps,omitempty"`
}

// AudioConfig names a file to analyze and the band routings to run
type AudioConfig struct {
	File string      `json:"file,omitempty"`
	Mods []audio.Mod `json:"mods,omitempty"`
}

// AutoloadConfig names a scene to load at startup
type AutoloadConfig struct {
	Scene string `json:"scene,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	MIDI     MIDIConfig     `json:"midi"`
	Clock    ClockConfig    `json:"clock"`
	UI       UIConfig       `json:"ui"`
	Audio    AudioConfig    `json:"audio"`
	Autoload AutoloadConfig `json:"autoload"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Clock: ClockConfig{
			BPM:            clock.DefaultBPM,
			PreferExternal: true,
			TimeoutMs:      1000,
		},
		UI: UIConfig{
			FPS: 60,
		},
	}
}

// Normalize fills unset fields and clamps out-of-range values
func (c *Config) Normalize() {
	if c.Clock.BPM == 0 {
		c.Clock.BPM = clock.DefaultBPM
	} else {
		c.Clock.BPM = clock.ClampBPM(c.Clock.BPM)
	}
	if c.Clock.TimeoutMs <= 0 {
		c.Clock.TimeoutMs = 1000
	}
	if c.UI.FPS <= 0 {
		c.UI.FPS = 60
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-modulate"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads a config from a specific path. A missing file is not
// an error; malformed JSON is.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.Normalize()
	return &cfg, nil
}

// Save writes the config to its default location
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to a specific path
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
