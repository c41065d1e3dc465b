package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type NotificationType string

const (
	NotifyOrder   NotificationType = "order"
	NotifyChat    NotificationType = "chat"
	NotifyReview  NotificationType = "review"
	NotifyAdmin   NotificationType = "admin"
	NotifyGeneral NotificationType = "general"
)

// JSONMap stores an opaque JSON object in a text column.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = JSONMap{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("JSONMap: unsupported source %T", src)
	}
	out := JSONMap{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return err
		}
	}
	*m = out
	return nil
}

// Notification is created by workflows (orders, reviews, chat, admin),
// never by the user it belongs to.
type Notification struct {
	ID        uint             `gorm:"primarykey" json:"id"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
	UserID    uint             `gorm:"not null;index" json:"user_id"`
	Title     string           `gorm:"size:200;not null" json:"title"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	Type      NotificationType `gorm:"column:notification_type;size:50;not null;default:general" json:"type"`
	Data      JSONMap          `gorm:"type:text" json:"data"`
	IsRead    bool             `gorm:"not null;default:false;index" json:"is_read"`
}

func (Notification) TableName() string { return "notifications" }
