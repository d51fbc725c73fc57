package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	OpenID       *string        `gorm:"uniqueIndex;size:128" json:"-"` // nil for admin accounts
	SessionKey   string         `gorm:"size:64" json:"-"`              // latest code2session key, needed for payload decryption
	Phone        string         `gorm:"size:32" json:"phone"`
	Nickname     string         `gorm:"size:64" json:"nickname"`
	Username     string         `gorm:"uniqueIndex;size:64;not null;default:''" json:"username"`
	PasswordHash string         `gorm:"size:255" json:"-"` // admin dashboard login only
	Role         string         `gorm:"size:20;not null;index" json:"role"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
