package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"shop-service/models"
)

// PaymentEventSender publishes standardized payment events. Publishing
// is best-effort for the request path; failures are logged upstream.
type PaymentEventSender interface {
	SendPaymentEvent(ctx context.Context, event models.PaymentEvent) error
}

type PaymentEventProducer struct {
	writer *kafka.Writer
	topic  string
}

func NewPaymentEventProducer(brokers []string, topic string) *PaymentEventProducer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &PaymentEventProducer{writer: w, topic: topic}
}

func (p *PaymentEventProducer) SendPaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: data,
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *PaymentEventProducer) Close() error {
	return p.writer.Close()
}
