package redis

import (
	"context"
	"strconv"

	"campusmart/internal/model"

	rd "github.com/redis/go-redis/v9"
)

// Stream entry fields written by Outbox and read by the relay.
const (
	FieldNotificationID = "notification_id"
	FieldUserID         = "user_id"
	FieldType           = "type"
	FieldTitle          = "title"
	FieldMessage        = "message"
)

// Outbox appends committed notifications to a Redis Stream for the
// outbound delivery relay.
type Outbox struct {
	rdb    *rd.Client
	stream string
}

func NewOutbox(rdb *rd.Client, stream string) *Outbox {
	return &Outbox{rdb: rdb, stream: stream}
}

func (o *Outbox) Append(ctx context.Context, n model.Notification) error {
	return o.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: o.stream,
		Values: map[string]any{
			FieldNotificationID: strconv.FormatUint(uint64(n.ID), 10),
			FieldUserID:         strconv.FormatUint(uint64(n.UserID), 10),
			FieldType:           string(n.Type),
			FieldTitle:          n.Title,
			FieldMessage:        n.Message,
		},
	}).Err()
}
