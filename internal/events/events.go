// Package events publishes order lifecycle events to Kafka. Publishing is
// strictly best effort and happens after the owning transaction commits;
// a nil Publisher (no brokers configured) swallows everything.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	OrderCreated   = "order.created"
	OrderCancelled = "order.cancelled"
	OrderPaid      = "order.paid"
)

type OrderEvent struct {
	Type        string    `json:"type"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      string    `json:"user_id"`
	Total       string    `json:"total"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher returns nil when brokersCSV is empty: callers treat a nil
// publisher as disabled.
func NewPublisher(brokersCSV, topic string) *Publisher {
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil
	}
	return &Publisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

func (p *Publisher) Publish(ctx context.Context, key string, payload any) error {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now().UTC(),
	})
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
