package activities

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/tmnlabs/bizsuite/libs/kafkax"
	"github.com/tmnlabs/bizsuite/services/event-bridge/internal/event"
)

// RoutedTopic is where routing decisions land so target applications
// and auditing can consume them.
const RoutedTopic = "interapp.routed.v1"

// KafkaPublisher publishes routing decisions to the suite's Kafka bus.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: kafka.NewWriter(kafka.WriterConfig{
			Brokers:  kafkax.SplitBrokers(brokers),
			Topic:    RoutedTopic,
			Balancer: &kafka.Hash{},
		}),
	}
}

func (p *KafkaPublisher) PublishRouted(ctx context.Context, ev *event.InterApp) error {
	value, err := json.Marshal(map[string]any{
		"eventId":           ev.ID,
		"eventType":         ev.EventType,
		"sourceApplication": ev.SourceApp,
		"targetApplication": ev.TargetApp,
		"tenantId":          ev.TenantID,
		"entityId":          ev.EntityID,
		"payload":           ev.Payload,
		"routedAt":          time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal routed event: %w", err)
	}

	eventID := ev.ID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	key := []byte(ev.TenantID)
	if len(key) == 0 {
		key = []byte(eventID)
	}

	msg := kafka.Message{
		Key:     key,
		Value:   value,
		Headers: kafkax.EventHeaders(eventID, ev.EventType),
	}
	msg.Headers = kafkax.InjectTraceHeaders(ctx, msg.Headers)
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
