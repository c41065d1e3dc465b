package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	rd "github.com/redis/go-redis/v9"
)

// RedisBackplane fans frames out over one Redis pub/sub channel. Every
// instance, including the publisher, receives each frame once.
type RedisBackplane struct {
	rdb     *rd.Client
	channel string
	log     *slog.Logger
}

func NewRedisBackplane(rdb *rd.Client, channel string, log *slog.Logger) *RedisBackplane {
	return &RedisBackplane{rdb: rdb, channel: channel, log: log}
}

func (b *RedisBackplane) Publish(ctx context.Context, f Frame) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", b.channel, err)
	}
	return nil
}

func (b *RedisBackplane) Subscribe(ctx context.Context, ready func(), fn func(Frame)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for the subscription confirmation so early publishes are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	ready()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscribe %s: channel closed", b.channel)
			}
			var f Frame
			if err := json.Unmarshal([]byte(m.Payload), &f); err != nil {
				b.log.Warn("backplane frame dropped", slog.Any("err", err))
				continue
			}
			fn(f)
		}
	}
}
