package app

import (
	"io"
	"log/slog"
	"time"
)

// NewLogger builds the process logger. Record timestamps are rendered in
// loc so every log line belonging to a firing carries a timezone-local
// timestamp.
func NewLogger(w io.Writer, level slog.Leveler, loc *time.Location) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.TimeValue(t.In(loc))
				}
			}
			return a
		},
	}))
}
