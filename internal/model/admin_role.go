package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringList persists a list of strings as a JSON array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("StringList: unsupported source %T", src)
	}
	var out []string
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return err
		}
	}
	*l = out
	return nil
}

// AdminRole holds the capabilities granted to a support admin. The stored
// list is parsed into a closed capability set before any check.
type AdminRole struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	UserID      uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	Permissions StringList `gorm:"type:text" json:"permissions"`
	CreatedBy   uint       `json:"created_by"`
}

func (AdminRole) TableName() string { return "admin_roles" }

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Store{},
		&Product{},
		&Order{},
		&Chat{},
		&Message{},
		&Notification{},
		&Review{},
		&AdminRole{},
	}
}
