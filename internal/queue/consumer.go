package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// Deliverer hands a notification to an external channel.
type Deliverer interface {
	Deliver(ctx context.Context, msg DeliveryMessage) error
}

// LogDeliverer records deliveries in the log. Rendering email or push
// payloads happens elsewhere.
type LogDeliverer struct {
	Log *slog.Logger
}

func (d LogDeliverer) Deliver(_ context.Context, msg DeliveryMessage) error {
	d.Log.Info("notification delivered",
		slog.Uint64("notification_id", uint64(msg.NotificationID)),
		slog.Uint64("user_id", uint64(msg.UserID)),
		slog.String("type", msg.Type),
		slog.String("title", msg.Title))
	return nil
}

type Consumer struct {
	r   *kafka.Reader
	out Deliverer
	log *slog.Logger
}

func NewConsumer(brokers []string, topic, groupID string, out Deliverer, log *slog.Logger) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		out: out,
		log: log,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

// Run reads until ctx is cancelled. Bad messages are logged and skipped;
// offsets are committed by the reader's group handling.
func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return
		}
		if err := c.handle(ctx, m); err != nil {
			c.log.Warn("consumer skip message",
				slog.Int("partition", m.Partition),
				slog.Int64("offset", m.Offset),
				slog.Any("err", err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) error {
	msg, err := decodeDelivery(m.Value)
	if err != nil {
		return err
	}
	return c.out.Deliver(ctx, msg)
}

func decodeDelivery(raw []byte) (DeliveryMessage, error) {
	var msg DeliveryMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return DeliveryMessage{}, err
	}
	if err := msg.Validate(); err != nil {
		return DeliveryMessage{}, err
	}
	return msg, nil
}
