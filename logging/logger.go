package logging

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// ParseLevel maps debug, info, warn and error to slog levels. Anything else is info.
func ParseLevel(s string) slog.Level {
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

// New builds the application logger: colored text in dev, JSON otherwise
func New(w io.Writer, env, level, version, appName string) *slog.Logger {
	lvl := ParseLevel(level)

	if env == "" || env == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", env,
	)
}
