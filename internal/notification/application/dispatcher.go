// 包 application 通知分发的应用服务
package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/wyfcoding/digitalbank/internal/notification/domain"
	"github.com/wyfcoding/digitalbank/pkg/metrics"
)

// sendTimeout 单条通知投递的最长等待时间
const sendTimeout = 5 * time.Second

// Dispatcher 通知分发器。投递失败只记录日志和指标，绝不影响触发它的业务流程。
type Dispatcher struct {
	sender  domain.Sender
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewDispatcher 创建通知分发器
func NewDispatcher(sender domain.Sender, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, metrics: m, logger: logger}
}

// Notify 异步投递一条通知。调用方不等待投递结果。
func (d *Dispatcher) Notify(ctx context.Context, userID, event string, payload map[string]any) {
	n := &domain.Notification{
		UserID:    userID,
		Event:     event,
		Payload:   payload,
		CreatedAt: time.Now(),
	}

	go func() {
		// 与请求上下文解耦，请求结束不应取消投递
		sendCtx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := d.sender.Send(sendCtx, n); err != nil {
			if d.metrics != nil {
				d.metrics.NotificationFailures.Inc()
			}
			d.logger.Warn("notification delivery failed",
				"user_id", userID,
				"event", event,
				"error", err,
			)
		}
	}()
}
