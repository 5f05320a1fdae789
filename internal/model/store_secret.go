package model

import "time"

// StoreSecret holds the admin credentials of one store: a bcrypt password
// hash and an optional TOTP secret. TwoFactorEnabled only flips to true once
// a code generated from TOTPSecret has been verified.
type StoreSecret struct {
	StoreID          string `gorm:"primaryKey;size:64"`
	PasswordHash     string `gorm:"not null"`
	TOTPSecret       *string
	TwoFactorEnabled bool `gorm:"not null;default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (StoreSecret) TableName() string { return "store_secrets" }
