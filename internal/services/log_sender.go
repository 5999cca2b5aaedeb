package services

import (
	"context"
	"log/slog"
)

// LogSender writes outgoing messages to the log instead of delivering them.
// Development only; config validation refuses it in production.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendEmail(ctx context.Context, msg EmailMessage) error {
	s.logger.InfoContext(ctx, "email not sent (log mode)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Text))
	return nil
}

func (s *LogSender) SendSMS(ctx context.Context, to, message string) error {
	s.logger.InfoContext(ctx, "sms not sent (log mode)",
		slog.String("to", to),
		slog.String("message", message))
	return nil
}
