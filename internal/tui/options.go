package tui

import (
	"context"
	"time"
)

// Option configures a board model.
type Option func(*Model)

// WithContext sets the context used for service calls. It normally carries the
// signed-in caller.
func WithContext(ctx context.Context) Option {
	return func(m *Model) {
		if ctx != nil {
			m.ctx = ctx
		}
	}
}

// WithClipboard replaces the clipboard writer used by the copy binding.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copy = write
		}
	}
}

// WithNow overrides the clock used to flag overdue tasks.
func WithNow(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}
