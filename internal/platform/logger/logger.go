package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. JSON output so the decision
// audit attrs survive log aggregation intact.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
