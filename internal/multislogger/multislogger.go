// Package multislogger fans a single log/slog.Logger out to any number of
// slog.Handlers. Handlers can be added after construction, so a CLI can
// start with a console handler and later attach a file handler once it
// knows where the user wants output written.
package multislogger

import (
	"context"
	"log/slog"
	"sync"
)

// MultiSlogger owns a *slog.Logger backed by a mutable set of handlers.
// Adding a handler takes effect for every subsequent log call; it does not
// rewrite already-issued records.
type MultiSlogger struct {
	Logger *slog.Logger

	mu       sync.Mutex
	handlers []slog.Handler
}

// New constructs a MultiSlogger fanning out to the given handlers (zero
// handlers is valid; log calls are simply discarded until one is added).
func New(handlers ...slog.Handler) *MultiSlogger {
	m := &MultiSlogger{handlers: append([]slog.Handler(nil), handlers...)}
	m.Logger = slog.New(&fanoutHandler{owner: m})
	return m
}

// AddHandler attaches an additional handler; every future log record is
// delivered to it alongside the existing handlers.
func (m *MultiSlogger) AddHandler(handler slog.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

func (m *MultiSlogger) snapshot() []slog.Handler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]slog.Handler(nil), m.handlers...)
}

// fanoutHandler implements slog.Handler by delivering every record to
// MultiSlogger's current handler set, read fresh on every call so handlers
// added after construction take effect immediately.
type fanoutHandler struct {
	owner *MultiSlogger
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.owner.snapshot() {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, handler := range h.owner.snapshot() {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := h.owner.snapshot()
	next := make([]slog.Handler, len(handlers))
	for i, handler := range handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &fanoutHandler{owner: &MultiSlogger{handlers: next}}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	handlers := h.owner.snapshot()
	next := make([]slog.Handler, len(handlers))
	for i, handler := range handlers {
		next[i] = handler.WithGroup(name)
	}
	return &fanoutHandler{owner: &MultiSlogger{handlers: next}}
}
