package sender

import (
	"context"

	"github.com/wyfcoding/digitalbank/internal/notification/domain"
	"github.com/wyfcoding/digitalbank/pkg/mq"
)

// KafkaSender 将通知发布到 Kafka，由下游渠道服务消费
type KafkaSender struct {
	producer *mq.KafkaProducer
	topic    string
}

// NewKafkaSender 创建 Kafka 通知发送器
func NewKafkaSender(producer *mq.KafkaProducer, topic string) *KafkaSender {
	return &KafkaSender{producer: producer, topic: topic}
}

// Send 以用户为分区键发送通知消息
func (s *KafkaSender) Send(ctx context.Context, n *domain.Notification) error {
	return s.producer.SendMessage(ctx, s.topic, n.UserID, n)
}
