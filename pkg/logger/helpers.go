package logger

import (
	"io"
	"log/slog"
)

// Discard returns a logger that drops everything, handy in tests
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
