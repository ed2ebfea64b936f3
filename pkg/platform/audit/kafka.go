package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/platform/kafka"
)

// DefaultTopic is where unlock audit events land.
const DefaultTopic = "unlock.audit.events"

// KafkaPublisher emits audit events to a Kafka topic, keyed by registration so
// per-vehicle history stays ordered within a partition.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
}

// NewKafkaPublisher wraps a producer. An empty topic uses DefaultTopic.
func NewKafkaPublisher(producer *kafka.Producer, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Emit(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	return p.producer.Publish(ctx, p.topic, []byte(event.Registration), value)
}
