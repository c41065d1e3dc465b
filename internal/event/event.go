// Package event defines the real-time wire contract shared by the services
// that publish events and the WebSocket layer that delivers them.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"campusmart/internal/model"
)

type Name string

// Outbound.
const (
	NewMessage             Name = "new_message"
	NewMessageNotification Name = "new_message_notification"
	OrderStatusUpdate      Name = "order_status_update"
	Notification           Name = "notification"
	UserTyping             Name = "user_typing"
	MessagesRead           Name = "messages_read"
	UserOnline             Name = "user_online"
	UserOffline            Name = "user_offline"
	JoinedChat             Name = "joined_chat"
	Error                  Name = "error"
)

// Inbound.
const (
	JoinChat    Name = "join_chat"
	LeaveChat   Name = "leave_chat"
	SendMessage Name = "send_message"
	Typing      Name = "typing"
	MarkRead    Name = "mark_read"
)

// Envelope is the frame format in both directions.
type Envelope struct {
	Event Name            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds an outbound frame.
func Encode(name Name, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return json.Marshal(Envelope{Event: name, Data: raw})
}

func UserRoom(userID uint) string { return fmt.Sprintf("user_%d", userID) }
func ChatRoom(chatID uint) string { return fmt.Sprintf("chat_%d", chatID) }

type MessagePayload struct {
	ID        uint              `json:"id"`
	ChatID    uint              `json:"chat_id"`
	SenderID  uint              `json:"sender_id"`
	Content   string            `json:"content"`
	Type      model.MessageType `json:"type"`
	MediaURL  string            `json:"media_url"`
	OrderID   *uint             `json:"order_id"`
	IsRead    bool              `json:"is_read"`
	CreatedAt time.Time         `json:"created_at"`
}

func FromMessage(m model.Message) MessagePayload {
	return MessagePayload{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Type:      m.MessageType,
		MediaURL:  m.MediaURL,
		OrderID:   m.OrderID,
		IsRead:    m.IsRead,
		CreatedAt: m.CreatedAt,
	}
}

type MessageNotificationPayload struct {
	ChatID  uint           `json:"chat_id"`
	Message MessagePayload `json:"message"`
}

// OrderStatusPayload carries the full order so clients need no refetch.
type OrderStatusPayload struct {
	OrderID uint              `json:"order_id"`
	Status  model.OrderStatus `json:"status"`
	Order   *model.Order      `json:"order"`
}

type NotificationPayload struct {
	ID      uint                   `json:"id"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Type    model.NotificationType `json:"type"`
	Data    model.JSONMap          `json:"data"`
}

func FromNotification(n model.Notification) NotificationPayload {
	data := n.Data
	if data == nil {
		data = model.JSONMap{}
	}
	return NotificationPayload{ID: n.ID, Title: n.Title, Message: n.Message, Type: n.Type, Data: data}
}

type TypingPayload struct {
	ChatID   uint `json:"chat_id"`
	UserID   uint `json:"user_id"`
	IsTyping bool `json:"is_typing"`
}

type MessagesReadPayload struct {
	ChatID uint `json:"chat_id"`
	ReadBy uint `json:"read_by"`
}

type PresencePayload struct {
	UserID uint `json:"user_id"`
}

type ChatRef struct {
	ChatID uint `json:"chat_id"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// SendMessageRequest is the inbound send_message body.
type SendMessageRequest struct {
	ChatID   uint              `json:"chat_id"`
	Content  string            `json:"content"`
	Type     model.MessageType `json:"type"`
	MediaURL string            `json:"media_url"`
}

type TypingRequest struct {
	ChatID   uint `json:"chat_id"`
	IsTyping bool `json:"is_typing"`
}
