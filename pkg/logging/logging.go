// Package logging configures colored structured logging with tint.
//
// Usage:
//
//	logger := logging.Setup("info")  // sets slog.Default and returns it
//
// Levels: debug, info, warn, error.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// ParseLevel converts a level name into a slog.Level. The empty string is info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be one of debug, info, warn, error", name)
	}
}

// New returns a tint logger writing to w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  level == slog.LevelDebug,
	}))
}

// Setup installs a stderr logger at the named level as slog.Default and
// returns it. Unknown names fall back to info.
func Setup(levelName string) *slog.Logger {
	level, _ := ParseLevel(levelName)
	logger := New(os.Stderr, level)
	slog.SetDefault(logger)
	return logger
}
