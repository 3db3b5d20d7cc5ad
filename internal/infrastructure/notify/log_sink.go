package notify

import (
	"context"

	"go.uber.org/zap"

	"tg_wallet/internal/domain/entity"
)

// LogSink writes notifications to the application log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("Notifications")}
}

// Notify implements port.Notifier.
func (s *LogSink) Notify(_ context.Context, n entity.Notification) {
	fields := []zap.Field{zap.String("title", n.Title), zap.String("message", n.Message)}
	if n.TxHash != "" {
		fields = append(fields, zap.String("txHash", n.TxHash))
	}
	if n.Level == entity.NotificationError {
		s.logger.Warn("Notification", fields...)
		return
	}
	s.logger.Info("Notification", fields...)
}
