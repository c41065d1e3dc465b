package model

import (
	"time"

	"gorm.io/gorm"
)

// Store belongs to exactly one seller (OwnerID).
type Store struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	OwnerID  uint   `gorm:"not null;uniqueIndex" json:"owner_id"`
	Name     string `gorm:"size:200;not null" json:"name"`
	IsActive bool   `gorm:"not null" json:"is_active"`

	// Bank details are returned to the buyer when an order is placed.
	BankName      string `gorm:"size:100" json:"-"`
	AccountNumber string `gorm:"size:50" json:"-"`
	AccountName   string `gorm:"size:200" json:"-"`

	Rating       float64 `gorm:"not null;default:0" json:"rating"`
	TotalReviews int     `gorm:"not null;default:0" json:"total_reviews"`
	TotalOrders  int     `gorm:"not null;default:0" json:"total_orders"`
}

func (Store) TableName() string { return "stores" }

// BankDetails is the payment destination shown after checkout.
type BankDetails struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

func (s Store) Bank() BankDetails {
	return BankDetails{
		BankName:      s.BankName,
		AccountNumber: s.AccountNumber,
		AccountName:   s.AccountName,
	}
}
