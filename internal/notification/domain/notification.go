// 包 domain 通知模块的领域模型
package domain

import (
	"context"
	"time"
)

// Notification 一条待投递的通知
type Notification struct {
	// 接收用户
	UserID string `json:"user_id"`
	// 事件名，如 otp.issued、transfer.COMPLETED
	Event string `json:"event"`
	// 事件载荷
	Payload map[string]any `json:"payload"`
	// 产生时间
	CreatedAt time.Time `json:"created_at"`
}

// Sender 通知投递通道
type Sender interface {
	Send(ctx context.Context, n *Notification) error
}
