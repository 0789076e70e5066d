// Package sender holds Sender implementations for one-time credentials.
package sender

import (
	"context"
	"log/slog"

	"gatekeeper/internal/onetime/models"
	"gatekeeper/pkg/platform/privacy"
)

// LogSender records that a notification would be sent, without the credential itself.
// It stands in for a mail transport when none is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg models.Message) error {
	s.logger.InfoContext(ctx, "one-time credential ready for delivery",
		"purpose", msg.Purpose,
		"to_hash", privacy.HashForLog(msg.To),
	)
	return nil
}
