// Package telemetry is the error-reporting sink the game reports to.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/playperu/cluequiz/internal/cluequiz"
)

// Sink receives errors and diagnostic messages.
type Sink interface {
	CaptureError(ctx context.Context, err error)
	CaptureMessage(ctx context.Context, msg string, level slog.Level)
	// SetContext attaches key to later reports; a nil value removes it.
	SetContext(key string, value any)
}

// LogSink reports through a slog.Logger.
type LogSink struct {
	logger *slog.Logger

	mu  sync.RWMutex
	ctx map[string]any
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger, ctx: make(map[string]any)}
}

func (s *LogSink) CaptureError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	attrs := append(s.attrs(), slog.Any("error", err))
	var e *cluequiz.Error
	if errors.As(err, &e) {
		attrs = append(attrs, slog.String("kind", string(e.Kind)), slog.String("code", string(e.Code)))
	}
	s.logger.LogAttrs(ctx, slog.LevelError, "captured error", attrs...)
}

func (s *LogSink) CaptureMessage(ctx context.Context, msg string, level slog.Level) {
	s.logger.LogAttrs(ctx, level, msg, s.attrs()...)
}

func (s *LogSink) SetContext(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value == nil {
		delete(s.ctx, key)
		return
	}
	s.ctx[key] = value
}

func (s *LogSink) attrs() []slog.Attr {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attrs := make([]slog.Attr, 0, len(s.ctx)+3)
	for _, k := range slices.Sorted(maps.Keys(s.ctx)) {
		attrs = append(attrs, slog.Any(k, s.ctx[k]))
	}
	return attrs
}

// Discard drops everything.
type Discard struct{}

func (Discard) CaptureError(context.Context, error)                {}
func (Discard) CaptureMessage(context.Context, string, slog.Level) {}
func (Discard) SetContext(string, any)                             {}
