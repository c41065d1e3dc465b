package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// eventTypeHeader lets consumers route without decoding the body.
const eventTypeHeader = "event-type"

// Producer wraps the Kafka writer used by the outbox relay.
type Producer struct {
	w *kafka.Writer
}

// NewProducer keys by user so one user's deliveries stay ordered on a
// partition, and waits for all in-sync replicas.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  5,
			WriteTimeout: 5 * time.Second,
			ReadTimeout:  5 * time.Second,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

func (p *Producer) Close() error { return p.w.Close() }

// Publish writes one delivery synchronously.
func (p *Producer) Publish(ctx context.Context, msg DeliveryMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafkaMessage(msg, b))
}

func kafkaMessage(msg DeliveryMessage, body []byte) kafka.Message {
	return kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(msg.UserID), 10)),
		Value: body,
		Headers: []kafka.Header{
			{Key: eventTypeHeader, Value: []byte(msg.Type)},
		},
	}
}
