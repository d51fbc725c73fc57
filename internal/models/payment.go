package models

import (
	"time"
)

// Payment statuses. A record only ever moves forward: PENDING is the sole
// non-terminal state.
const (
	PaymentPending   = "PENDING"
	PaymentSuccess   = "SUCCESS"
	PaymentFailed    = "FAILED"
	PaymentCancelled = "CANCELLED"
)

// Refund statuses on a SUCCESS payment. The gateway confirms refunds
// asynchronously, so PROCESSING is cleared by reconciliation, not by the
// refund request itself.
const (
	RefundNone       = ""
	RefundProcessing = "PROCESSING"
	RefundDone       = "REFUNDED"
)

// PaymentRecord is one row per merchant transaction. MerchantTradeID is the
// idempotency key for the whole payment flow and is never reused. Rows are
// never deleted; failed and cancelled records stay for audit.
type PaymentRecord struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	MerchantTradeID string     `gorm:"size:64;uniqueIndex;not null" json:"merchant_trade_id"`
	GatewayTradeID  string     `gorm:"size:64;index" json:"gateway_trade_id"` // set at most once, on success
	PrepayID        string     `gorm:"size:128" json:"-"`
	OpenID          string     `gorm:"size:128;index" json:"-"`
	Amount          int64      `gorm:"not null" json:"amount"` // minor currency units, never float
	Description     string     `gorm:"size:255" json:"description"`
	Status          string     `gorm:"size:20;not null;index" json:"status"`
	RefundStatus    string     `gorm:"size:20;default:''" json:"refund_status"`
	RefundTradeID   string     `gorm:"size:64" json:"refund_trade_id"`
	RefundAmount    int64      `json:"refund_amount"`
	PaidAt          *time.Time `json:"paid_at"`
	RawCallback     string     `gorm:"type:text" json:"-"` // verbatim gateway payload for audit/replay
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (PaymentRecord) TableName() string {
	return "payment_records"
}
