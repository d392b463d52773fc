package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger at the given level. Handlers and services
// take *slog.Logger by injection; nothing logs through a package global.
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
