package models

import (
	"time"

	"gorm.io/gorm"
)

// Order statuses. Transitions are validated by service.CanTransition; nothing
// else may write Status.
const (
	OrderPending   = "pending"
	OrderPaid      = "paid"
	OrderShipped   = "shipped"
	OrderDelivered = "delivered"
	OrderCancelled = "cancelled"
	OrderRefunded  = "refunded"
)

// Order is owned by checkout. OrderNo doubles as the merchant trade id on the
// payment side.
type Order struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	OrderNo     string         `gorm:"size:64;uniqueIndex;not null" json:"order_no"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	Amount      int64          `gorm:"not null" json:"amount"` // minor currency units
	Description string         `gorm:"size:255" json:"description"`
	Status      string         `gorm:"size:20;not null;index" json:"status"`
	PaidAt      *time.Time     `json:"paid_at"`
	ShippedAt   *time.Time     `json:"shipped_at"`
	DeliveredAt *time.Time     `json:"delivered_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Order) TableName() string {
	return "orders"
}
