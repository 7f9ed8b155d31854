package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/wyfcoding/digitalbank/internal/notification/application"
	"github.com/wyfcoding/digitalbank/internal/notification/domain"
	"github.com/wyfcoding/digitalbank/pkg/metrics"
)

type chanSender struct {
	sent chan *domain.Notification
	err  error
}

func (s *chanSender) Send(ctx context.Context, n *domain.Notification) error {
	s.sent <- n
	return s.err
}

func newDispatcher(s domain.Sender) *application.Dispatcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return application.NewDispatcher(s, metrics.New("test"), logger)
}

func TestDispatcher_Notify(t *testing.T) {
	t.Run("delivers asynchronously", func(t *testing.T) {
		sender := &chanSender{sent: make(chan *domain.Notification, 1)}
		d := newDispatcher(sender)

		d.Notify(context.Background(), "user-1", "transfer.COMPLETED", map[string]any{"amount": "30.00"})

		select {
		case n := <-sender.sent:
			if n.UserID != "user-1" || n.Event != "transfer.COMPLETED" {
				t.Fatalf("delivered %+v", n)
			}
		case <-time.After(time.Second):
			t.Fatal("notification never delivered")
		}
	})

	t.Run("sender failure never reaches the caller", func(t *testing.T) {
		sender := &chanSender{sent: make(chan *domain.Notification, 1), err: errors.New("broker down")}
		d := newDispatcher(sender)

		// Notify 无返回值：投递失败只记录，不中断业务流程
		d.Notify(context.Background(), "user-1", "otp.issued", nil)

		select {
		case <-sender.sent:
		case <-time.After(time.Second):
			t.Fatal("notification never attempted")
		}
	})
}
