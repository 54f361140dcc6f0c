package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"storeledger/internal/interfaces"
)

// envelope wraps every published event with a unique id so downstream
// consumers (indexers, storefront front-ends) can deduplicate.
type envelope struct {
	EventID     string    `json:"event_id"`
	Topic       string    `json:"topic"`
	PublishedAt time.Time `json:"published_at"`
	Payload     any       `json:"payload"`
}

type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a publisher writing to the given brokers. The
// topic is chosen per message, so the writer is created without one.
func NewPublisher(brokers []string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *Publisher) Publish(topic string, event any) error {
	data, err := json.Marshal(envelope{
		EventID:     uuid.New().String(),
		Topic:       topic,
		PublishedAt: time.Now().UTC(),
		Payload:     event,
	})
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(
		context.Background(),
		kafka.Message{
			Topic: topic,
			Value: data,
		},
	)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
