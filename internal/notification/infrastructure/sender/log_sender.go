package sender

import (
	"context"

	"github.com/wyfcoding/digitalbank/internal/notification/domain"
	"github.com/wyfcoding/digitalbank/pkg/logger"
)

// LogSender 仅写日志的通知发送器，用于开发环境或 Kafka 不可用时
type LogSender struct{}

// NewLogSender 创建日志通知发送器
func NewLogSender() *LogSender {
	return &LogSender{}
}

// Send 将通知内容记录到结构化日志
func (s *LogSender) Send(ctx context.Context, n *domain.Notification) error {
	logger.Info(ctx, "notification delivered",
		"user_id", n.UserID,
		"event", n.Event,
		"payload", n.Payload,
	)
	return nil
}
