package notify

import (
	"context"
	"log/slog"
)

// Log writes messages to a structured logger instead of a chat platform.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a Log notifier. Pass nil logger to use the default logger.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) SendReport(ctx context.Context, channel string, r Report) error {
	level := slog.LevelInfo
	if !r.AllHealthy {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, r.Title, "channel", channel, "services", len(r.Entries))
	for _, e := range r.Entries {
		l.logger.Log(ctx, level, "service status",
			"channel", channel,
			"service", e.Service,
			"status", e.Status,
			"latency", e.Latency,
			"description", e.Description,
		)
	}
	return nil
}

func (l *Log) SendRecovery(_ context.Context, channel string, r Recovery) error {
	l.logger.Info(r.Title,
		"channel", channel,
		"service", r.Service,
		"status", r.Status,
		"latency", r.Latency,
		"recovery_duration", r.DurationText,
	)
	return nil
}
