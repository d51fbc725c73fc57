package models

import (
	"time"
)

// Notification statuses. Only FAILED records are eligible for retry.
const (
	NotificationPending = "PENDING"
	NotificationSent    = "SENT"
	NotificationFailed  = "FAILED"
	NotificationRead    = "READ"
)

const DefaultMaxRetries = 3

// NotificationRecord is one row per dispatch attempt to one recipient.
type NotificationRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OpenID     string    `gorm:"size:128;not null;index" json:"openid"`
	TemplateID string    `gorm:"size:128;not null" json:"template_id"`
	Payload    string    `gorm:"type:text" json:"payload"` // JSON template data
	Status     string    `gorm:"size:20;not null;index" json:"status"`
	RetryCount int       `gorm:"default:0" json:"retry_count"`
	MaxRetries int       `gorm:"default:3" json:"max_retries"`
	LastError  string    `gorm:"size:512" json:"last_error"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (NotificationRecord) TableName() string {
	return "notification_records"
}
