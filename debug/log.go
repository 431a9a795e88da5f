package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	mu      sync.Mutex
	file    *os.File
	logger  *log.Logger
	enabled bool
)

// syncWriter flushes after every write so logs survive a crash
type syncWriter struct {
	f *os.File
}

func (w syncWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	w.f.Sync()
	return n, err
}

// Enable starts debug logging to ~/.config/go-modulate/debug.log
func Enable() error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}

	homeDir, _ := os.UserHomeDir()
	dir := filepath.Join(homeDir, ".config", "go-modulate")
	os.MkdirAll(dir, 0755)

	f, err := os.OpenFile(filepath.Join(dir, "debug.log"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	logger = log.NewWithOptions(syncWriter{f}, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Level:           log.DebugLevel,
	})
	enabled = true

	logger.Info("=== debug logging started ===")
	return nil
}

// EnableTo redirects logging to a specific file (used by tests and midimon)
func EnableTo(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	logger = log.NewWithOptions(syncWriter{f}, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Level:           log.DebugLevel,
	})
	enabled = true
	return nil
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	logger = nil
	enabled = false
}

// Log writes a debug-level message under a category column
func Log(category, format string, args ...any) {
	write(log.DebugLevel, category, format, args...)
}

// Warn writes a warn-level message (dropped events, clamped values)
func Warn(category, format string, args ...any) {
	write(log.WarnLevel, category, format, args...)
}

// Info writes an info-level message (state transitions)
func Info(category, format string, args ...any) {
	write(log.InfoLevel, category, format, args...)
}

// Error writes an error-level message (handler faults)
func Error(category, format string, args ...any) {
	write(log.ErrorLevel, category, format, args...)
}

func write(level log.Level, category, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()

	if !enabled || logger == nil {
		return
	}
	logger.Log(level, fmt.Sprintf(format, args...), "cat", category)
}

// LogEvery logs only every N calls (use for high-frequency events)
var counters = make(map[string]int)

func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}

// Timestamp returns the wall-clock string used in log lines (for UI echo)
func Timestamp() string {
	return time.Now().Format("15:04:05.000")
}
