package email

import (
	"context"
	"log/slog"
)

// LogSender writes the message to the log instead of a mail server. Used in
// development when no SMTP endpoint is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, address, subject, _ string) error {
	s.logger.InfoContext(ctx, "email suppressed (no SMTP configured)",
		"to", address,
		"subject", subject,
	)
	return nil
}
