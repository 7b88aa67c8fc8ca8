package logger

import (
	"context"
	"log/slog"
)

// multiHandler fans records out to the terminal and file handlers without
// the allocation overhead of slog's generic tee helpers.
type multiHandler struct {
	terminal slog.Handler
	file     slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.terminal.Enabled(ctx, level) || h.file.Enabled(ctx, level)
}

func (h *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	if h.terminal.Enabled(ctx, record.Level) {
		if err := h.terminal.Handle(ctx, record.Clone()); err != nil {
			firstErr = err
		}
	}
	if h.file.Enabled(ctx, record.Level) {
		if err := h.file.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &multiHandler{
		terminal: h.terminal.WithAttrs(attrs),
		file:     h.file.WithAttrs(attrs),
	}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	return &multiHandler{
		terminal: h.terminal.WithGroup(name),
		file:     h.file.WithGroup(name),
	}
}
