package config

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the JSON logger every binary uses and installs it as slog's default.
func (c Config) NewLogger(component string) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	l := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With("service", c.ServiceName, "component", component)
	slog.SetDefault(l)
	return l
}
