package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Name is the name of the application the logger is for.
type Name string

// Config is the configuration for the logger.
type Config struct {
	// appName is the name of the application.
	appName string

	// level is the minimum level that will be logged.
	level slog.Level
}

// NewConfig creates a new logging configuration. The level is read from the LOG_LEVEL environment variable.
func NewConfig(name Name) *Config {
	return &Config{
		appName: string(name),
		level:   parseLevel(os.Getenv(EnvLogLevel)),
	}
}

// CommonLogger creates the logger that is shared across the application.
func CommonLogger(c *Config) (*slog.Logger, error) {
	if c == nil {
		return nil, fmt.Errorf("logging config is nil")
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: c.level == slog.LevelDebug,
		Level:     c.level,
	})

	l := slog.New(h).With(slog.String(KeyApp, c.appName))
	slog.SetDefault(l)
	return l, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
