package repository

import (
	"context"
	"time"

	"TwsePulse/internal/domain/repository"
	pkgkafka "TwsePulse/pkg/kafka"
)

// KafkaNotifier implements Notifier by publishing report text to the
// notification topic. Downstream delivery (chat, mail) consumes the topic.
type KafkaNotifier struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaNotifier creates a Kafka-backed notifier.
func NewKafkaNotifier(producer *pkgkafka.Producer, topic string) repository.Notifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (n *KafkaNotifier) Notify(ctx context.Context, subject, body string) error {
	return n.producer.Publish(ctx, n.topic, []byte(subject), map[string]interface{}{
		"subject": subject,
		"body":    body,
		"sentAt":  time.Now().Unix(),
	})
}

func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}
