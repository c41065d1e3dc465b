package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the manual-payment order state machine.
type OrderStatus string

const (
	OrderPendingPayment   OrderStatus = "pending_payment"   // placed, buyer has not paid yet
	OrderAwaitingApproval OrderStatus = "awaiting_approval" // buyer says they paid
	OrderApproved         OrderStatus = "approved"          // seller verified payment, stock taken
	OrderCompleted        OrderStatus = "completed"         // buyer received the item
	OrderRejected         OrderStatus = "rejected"
	OrderCancelled        OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderCompleted, OrderRejected, OrderCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPendingPayment, OrderAwaitingApproval, OrderApproved,
		OrderCompleted, OrderRejected, OrderCancelled:
		return true
	}
	return false
}

// Order is one purchase of one product. Prices are snapshotted when the
// order is placed; TotalPrice never changes afterwards.
type Order struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrderNumber string          `gorm:"size:50;uniqueIndex;not null" json:"order_number"`
	BuyerID     uint            `gorm:"not null;index" json:"buyer_id"`
	StoreID     uint            `gorm:"not null;index" json:"store_id"`
	ProductID   uint            `gorm:"not null;index" json:"product_id"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_price"`
	Status      OrderStatus     `gorm:"size:30;not null;index;default:pending_payment" json:"status"`
	BuyerNote   string          `gorm:"type:text" json:"buyer_note"`
	SellerNote  string          `gorm:"type:text" json:"seller_note"`

	PaymentConfirmedAt *time.Time `json:"payment_confirmed_at"`
	ApprovedAt         *time.Time `json:"approved_at"`
	CompletedAt        *time.Time `json:"completed_at"`
	CancelledAt        *time.Time `json:"cancelled_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Store   *Store   `gorm:"foreignKey:StoreID" json:"store,omitempty"`
	Buyer   *User    `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
}

func (Order) TableName() string { return "orders" }
