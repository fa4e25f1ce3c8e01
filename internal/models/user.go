package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdviser UserRole = "adviser"
	RoleAdmin   UserRole = "admin"
)

// Identity is the authenticated caller as supplied by the auth layer.
type Identity struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
}

func (i Identity) CanVerify() bool {
	return i.Role == RoleAdviser || i.Role == RoleAdmin
}

// Account is the school account table. The gradebook only reads student rows.
type Account struct {
	ID            uint     `json:"id" gorm:"primaryKey"`
	AccountNumber string   `json:"account_number" gorm:"uniqueIndex;not null;size:50"`
	Role          UserRole `json:"role" gorm:"not null;size:20;index"`
	FullName      string   `json:"full_name" gorm:"not null;size:150"`

	IsActive bool `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Account) TableName() string {
	return "accounts"
}
