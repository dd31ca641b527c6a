package models

import (
	"time"

	"gorm.io/gorm"
)

// UserSession records one authenticated login. Rows are deactivated, never deleted.
type UserSession struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	UserID string `gorm:"size:36;not null;index:idx_user_sessions_user_active,priority:1" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID" json:"-"`

	IPAddress  *string `gorm:"size:64" json:"ip_address"`
	UserAgent  string  `gorm:"size:512" json:"user_agent"`
	DeviceType *string `gorm:"size:32" json:"device_type"`

	Country      *string  `gorm:"size:128" json:"country"`
	City         *string  `gorm:"size:128" json:"city"`
	Region       *string  `gorm:"size:128" json:"region"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Timezone     *string  `gorm:"size:64" json:"timezone"`
	Organization *string  `gorm:"size:256" json:"organization"`
	FullLocation *string  `gorm:"size:512" json:"full_location"`

	LoginAt        time.Time  `gorm:"not null;index" json:"login_at"`
	LastActivityAt time.Time  `gorm:"not null" json:"last_activity_at"`
	LogoutAt       *time.Time `json:"logout_at"`
	IsActive       bool       `gorm:"not null;index:idx_user_sessions_user_active,priority:2" json:"is_active"`

	SessionToken *string `gorm:"size:128;index" json:"-"`

	ModifiedBy *string    `gorm:"size:256" json:"-"`
	ModifiedAt *time.Time `json:"-"`
}

func (s *UserSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = NewID()
	}
	return nil
}

// Audited is false: sessions record their own lifecycle.
func (UserSession) Audited() bool { return false }
