package model

import "time"

type MessageType string

const (
	MessageText    MessageType = "text"
	MessageImage   MessageType = "image"
	MessageVideo   MessageType = "video"
	MessageReceipt MessageType = "receipt" // system text tied to an order
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageVideo, MessageReceipt:
		return true
	}
	return false
}

type Message struct {
	ID          uint        `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time   `gorm:"index" json:"created_at"`
	ChatID      uint        `gorm:"not null;index" json:"chat_id"`
	SenderID    uint        `gorm:"not null;index" json:"sender_id"`
	Content     string      `gorm:"type:text" json:"content"`
	MessageType MessageType `gorm:"size:20;not null;default:text" json:"message_type"`
	MediaURL    string      `gorm:"size:500" json:"media_url"`
	OrderID     *uint       `gorm:"index" json:"order_id"`
	IsRead      bool        `gorm:"not null;default:false;index" json:"is_read"`
}

func (Message) TableName() string { return "messages" }
