package executor

import (
	"context"
	"log/slog"
)

// nopHandler is a slog.Handler that discards all log records.
// Enabled returns false so slog skips formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool {
	return false
}

func (nopHandler) Handle(context.Context, slog.Record) error {
	return nil
}

func (nopHandler) WithAttrs([]slog.Attr) slog.Handler {
	return nopHandler{}
}

func (nopHandler) WithGroup(string) slog.Handler {
	return nopHandler{}
}
