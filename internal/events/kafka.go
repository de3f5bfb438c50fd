package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer publishes domain events. A nil *Producer is valid and publishes
// nothing, so the service runs unchanged without a broker configured.
type Producer struct{ w *kafka.Writer }

func NewProducer(brokers []string) *Producer {
	if len(brokers) == 0 {
		return nil
	}
	return &Producer{
		w: kafka.NewWriter(kafka.WriterConfig{
			Brokers:  brokers,
			Balancer: &kafka.Hash{}, // partition by message key
		}),
	}
}

func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.w.Close()
}

// Envelope is the standard event schema. Keep it small and stable.
type Envelope struct {
	EventType    string      `json:"eventType"`
	EventVersion string      `json:"eventVersion"`
	OccurredAt   time.Time   `json:"occurredAt"`
	AggregateID  string      `json:"aggregateId"` // the reference token
	Data         interface{} `json:"data"`
}

// Publish writes a single message. 'key' is the partition key; using the
// reference token keeps per-booking ordering.
func (p *Producer) Publish(ctx context.Context, topic, key string, evt Envelope) error {
	if p == nil {
		return nil
	}
	evt.OccurredAt = time.Now().UTC()
	val, _ := json.Marshal(evt)
	return p.w.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: val,
	})
}
