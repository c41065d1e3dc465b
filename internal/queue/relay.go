package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"campusmart/pkg/redis"

	rd "github.com/redis/go-redis/v9"
)

// Publisher is the downstream the relay forwards to.
type Publisher interface {
	Publish(ctx context.Context, msg DeliveryMessage) error
}

// Relay forwards the notification outbox stream to Kafka. An entry is
// ACKed only after the publish succeeds; failures stay pending for retry.
type Relay struct {
	rdb *rd.Client
	pub Publisher
	log *slog.Logger

	stream   string
	group    string
	consumer string
}

func NewRelay(rdb *rd.Client, pub Publisher, stream, group, consumer string, log *slog.Logger) *Relay {
	return &Relay{
		rdb:      rdb,
		pub:      pub,
		log:      log,
		stream:   stream,
		group:    group,
		consumer: consumer,
	}
}

func (r *Relay) Run(ctx context.Context) {
	if err := r.ensureGroup(ctx); err != nil {
		r.log.Error("relay ensure group", slog.String("stream", r.stream), slog.Any("err", err))
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		// Drain this consumer's pending entries before taking new ones.
		msgs, err := r.readGroup(ctx, "0", 0)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			r.log.Warn("relay read pending", slog.Any("err", err))
			time.Sleep(300 * time.Millisecond)
			continue
		}
		if len(msgs) == 0 {
			msgs, err = r.readGroup(ctx, ">", 2*time.Second)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return
				}
				r.log.Warn("relay read new", slog.Any("err", err))
				time.Sleep(300 * time.Millisecond)
				continue
			}
		}

		for _, xm := range msgs {
			if err := r.processOne(ctx, xm); err != nil {
				r.log.Warn("relay process", slog.String("id", xm.ID), slog.Any("err", err))
				time.Sleep(200 * time.Millisecond)
				break
			}
		}
	}
}

func (r *Relay) ensureGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

func (r *Relay) readGroup(ctx context.Context, streamID string, block time.Duration) ([]rd.XMessage, error) {
	streams, err := r.rdb.XReadGroup(ctx, &rd.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, streamID},
		Count:    16,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]rd.XMessage, 0, 16)
	for _, s := range streams {
		out = append(out, s.Messages...)
	}
	return out, nil
}

func (r *Relay) processOne(ctx context.Context, xm rd.XMessage) error {
	msg, err := parseOutboxEntry(xm.Values)
	if err != nil {
		r.log.Warn("relay drop malformed entry", slog.String("id", xm.ID), slog.Any("err", err))
		if ackErr := r.ackAndDelete(ctx, xm.ID); ackErr != nil {
			return fmt.Errorf("parse failed: %v, ack failed: %w", err, ackErr)
		}
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.pub.Publish(pubCtx, msg); err != nil {
		return err
	}
	return r.ackAndDelete(ctx, xm.ID)
}

func (r *Relay) ackAndDelete(ctx context.Context, id string) error {
	pipe := r.rdb.TxPipeline()
	pipe.XAck(ctx, r.stream, r.group, id)
	pipe.XDel(ctx, r.stream, id)
	_, err := pipe.Exec(ctx)
	return err
}

func parseOutboxEntry(values map[string]interface{}) (DeliveryMessage, error) {
	idStr, err := getStreamString(values, redis.FieldNotificationID)
	if err != nil {
		return DeliveryMessage{}, err
	}
	userStr, err := getStreamString(values, redis.FieldUserID)
	if err != nil {
		return DeliveryMessage{}, err
	}
	typ, err := getStreamString(values, redis.FieldType)
	if err != nil {
		return DeliveryMessage{}, err
	}
	title, err := getStreamString(values, redis.FieldTitle)
	if err != nil {
		return DeliveryMessage{}, err
	}
	// An empty body is allowed.
	body, _ := getStreamString(values, redis.FieldMessage)

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return DeliveryMessage{}, fmt.Errorf("invalid notification_id %q", idStr)
	}
	userID, err := strconv.ParseUint(userStr, 10, 64)
	if err != nil {
		return DeliveryMessage{}, fmt.Errorf("invalid user_id %q", userStr)
	}

	msg := DeliveryMessage{
		NotificationID: uint(id),
		UserID:         uint(userID),
		Type:           typ,
		Title:          title,
		Message:        body,
	}
	if err := msg.Validate(); err != nil {
		return DeliveryMessage{}, err
	}
	return msg, nil
}

func getStreamString(values map[string]interface{}, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing field %s", key)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		return strconv.FormatInt(int64(x), 10), nil
	default:
		return "", fmt.Errorf("unsupported field type %s: %T", key, v)
	}
}
