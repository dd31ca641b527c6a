package models

import (
	"time"
)

// User is the credential record. Refresh-token state lives on the user row.
type User struct {
	BaseModel

	Username string `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;size:256;not null" json:"email"`
	FullName string `gorm:"size:256" json:"full_name"`

	PasswordHash  string `gorm:"not null" json:"-"`
	SecurityStamp string `gorm:"size:64" json:"-"`

	RefreshToken       string     `gorm:"size:128;index" json:"-"`
	RefreshTokenExpiry *time.Time `json:"-"`

	EmailConfirmed bool `gorm:"default:false" json:"email_confirmed"`
	IsActive       bool `gorm:"default:true" json:"is_active"`

	Sessions []UserSession `gorm:"foreignKey:UserID" json:"-"`
}

// DisplayName prefers the full name and falls back to the username.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
