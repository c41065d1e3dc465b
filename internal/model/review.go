package model

import "time"

// Review is unique per (user, product, order).
type Review struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	ProductID  uint      `gorm:"not null;uniqueIndex:idx_review_once,priority:2" json:"product_id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_review_once,priority:1" json:"user_id"`
	OrderID    uint      `gorm:"not null;uniqueIndex:idx_review_once,priority:3" json:"order_id"`
	Rating     int       `gorm:"not null" json:"rating"`
	Comment    string    `gorm:"type:text" json:"comment"`
	IsApproved bool      `gorm:"not null;default:true" json:"is_approved"`
	IsHidden   bool      `gorm:"not null;default:false" json:"is_hidden"`
}

func (Review) TableName() string { return "reviews" }
