package model

import "time"

// Chat is a two-party thread. The pair is unordered: either participant may
// be stored as User1.
type Chat struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	User1ID       uint      `gorm:"not null;index" json:"user1_id"`
	User2ID       uint      `gorm:"not null;index" json:"user2_id"`
	ProductID     *uint     `gorm:"index" json:"product_id"`
	LastMessageAt time.Time `gorm:"index" json:"last_message_at"`

	Messages []Message `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Chat) TableName() string { return "chats" }

func (c Chat) HasParticipant(userID uint) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// Other returns the participant that is not userID.
func (c Chat) Other(userID uint) uint {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}
