package queue

import "fmt"

// DeliveryMessage is one notification on its way to an external channel.
type DeliveryMessage struct {
	NotificationID uint   `json:"notification_id"`
	UserID         uint   `json:"user_id"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	Message        string `json:"message"`
}

// Validate rejects entries a consumer cannot act on.
func (m DeliveryMessage) Validate() error {
	if m.NotificationID == 0 {
		return fmt.Errorf("notification_id is required")
	}
	if m.UserID == 0 {
		return fmt.Errorf("user_id is required")
	}
	if m.Type == "" {
		return fmt.Errorf("type is required")
	}
	if m.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}
