package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Event describes one state transition of a session.
type Event struct {
	SessionID string
	From      State
	To        State
	Attempt   int
	Stage     string
	Detail    []slog.Attr
	At        time.Time
}

// EventSink receives transition events. Emit must not block the pipeline for long.
type EventSink interface {
	Emit(ctx context.Context, ev Event)
}

// SlogSink writes each event as one structured log record.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(ctx context.Context, ev Event) {
	level := slog.LevelInfo
	if ev.To == StateFailed || ev.To == StateExhausted {
		level = slog.LevelWarn
	}
	attrs := append([]slog.Attr{
		slog.String("session_id", ev.SessionID),
		slog.String("from", string(ev.From)),
		slog.String("to", string(ev.To)),
		slog.Int("attempt", ev.Attempt),
		slog.String("stage", ev.Stage),
	}, ev.Detail...)
	s.logger.LogAttrs(ctx, level, "pipeline transition", attrs...)
}

// MultiSink fans events out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}
