package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a store listing. Stock and the aggregate counters are only
// changed as side effects of order and review transitions.
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	StoreID       uint            `gorm:"not null;index" json:"store_id"`
	Title         string          `gorm:"size:300;not null" json:"title"`
	Description   string          `gorm:"type:text" json:"description,omitempty"`
	Price         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	StockQuantity int             `gorm:"not null" json:"stock_quantity"`
	IsInStock     bool            `gorm:"not null" json:"is_in_stock"`
	IsActive      bool            `gorm:"not null" json:"is_active"`

	Rating       float64 `gorm:"not null;default:0" json:"rating"`
	TotalReviews int     `gorm:"not null;default:0" json:"total_reviews"`
	TotalOrders  int     `gorm:"not null;default:0" json:"total_orders"`

	Store *Store `gorm:"foreignKey:StoreID" json:"store,omitempty"`
}

func (Product) TableName() string { return "products" }
