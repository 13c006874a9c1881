package sink

import (
	"context"

	"go.uber.org/zap"
)

// Log writes events to a zap logger at info level.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Publish(_ context.Context, e Event) error {
	fields := []zap.Field{
		zap.String("event", string(e.Type)),
		zap.String("user_id", e.UserID),
		zap.Time("at", e.At),
	}
	if e.Direction != "" {
		fields = append(fields, zap.String("direction", e.Direction))
	}
	if e.Message != nil {
		fields = append(fields,
			zap.String("message_id", e.Message.ID),
			zap.String("status", string(e.Message.Status)),
			zap.String("message_type", string(e.Message.MessageType)),
		)
	}
	if e.Notification != nil {
		fields = append(fields,
			zap.String("sender_id", e.Notification.SenderID),
			zap.Strings("recipients", e.Notification.Recipients),
		)
	}
	if e.State != "" {
		fields = append(fields, zap.String("state", e.State))
	}
	l.Logger.Info("client event", fields...)
	return nil
}
