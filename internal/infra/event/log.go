// Package event holds usecase.EventSink implementations.
package event

import (
	"context"
	"log/slog"

	"github.com/totegamma/greenledger"
)

// LogSink writes every event as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(ctx context.Context, event greenledger.Event) {
	level := slog.LevelInfo
	if event.Type == greenledger.EventNotFound || event.Type == greenledger.EventAlreadyVerified {
		level = slog.LevelDebug
	}

	s.logger.LogAttrs(
		ctx, level, "registry event",
		slog.String("type", string(event.Type)),
		slog.String("registry", event.Registry),
		slog.Uint64("id", event.RecordID),
		slog.String("owner", event.Owner),
		slog.String("module", "event"),
	)
}
