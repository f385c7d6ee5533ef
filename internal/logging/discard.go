package logging

import (
	"io"
	"log/slog"
)

// Discard returns a logger that drops all records. Useful in tests.
func Discard() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
