package models

import (
	"time"

	"gorm.io/gorm"
)

type Role struct {
	BaseModel

	Name        string `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Description string `json:"description"`
	IsSystem    bool   `gorm:"default:false" json:"is_system"`

	Claims []RoleClaim `gorm:"foreignKey:RoleID" json:"claims,omitempty"`
}

// UserRole links users to roles. Identity linkage rows are not audited.
type UserRole struct {
	UserID    string    `gorm:"primaryKey;size:36" json:"user_id"`
	RoleID    string    `gorm:"primaryKey;size:36" json:"role_id"`
	Role      *Role     `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (UserRole) Audited() bool { return false }

// UserClaim is a single type/value pair attached to a user.
type UserClaim struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	UserID string `gorm:"size:36;not null;index" json:"user_id"`
	Type   string `gorm:"size:128;not null" json:"type"`
	Value  string `gorm:"size:512" json:"value"`
}

func (c *UserClaim) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = NewID()
	}
	return nil
}

func (UserClaim) Audited() bool { return false }

// RoleClaim is a single type/value pair granted to every member of a role.
type RoleClaim struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	RoleID string `gorm:"size:36;not null;index" json:"role_id"`
	Type   string `gorm:"size:128;not null" json:"type"`
	Value  string `gorm:"size:512" json:"value"`
}

func (c *RoleClaim) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = NewID()
	}
	return nil
}

func (RoleClaim) Audited() bool { return false }
