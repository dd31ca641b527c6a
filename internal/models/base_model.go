package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Auditable reports whether changes to an entity produce audit trail rows.
// Entities that do not implement it are never audited.
type Auditable interface {
	Audited() bool
}

// Stamped is implemented by entities carrying creator and modifier metadata.
type Stamped interface {
	StampCreated(actor string, at time.Time)
	StampModified(actor string, at time.Time)
}

// BaseModel provides shared fields for all audited persistent models.
type BaseModel struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	CreatedBy  string     `gorm:"size:256" json:"created_by"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
	ModifiedBy *string    `gorm:"size:256" json:"modified_by,omitempty"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
}

// BeforeCreate ensures time-ordered UUID identifiers are generated automatically.
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = NewID()
	}
	return nil
}

func (m *BaseModel) Audited() bool { return true }

func (m *BaseModel) StampCreated(actor string, at time.Time) {
	m.CreatedBy = actor
	m.CreatedAt = at
}

func (m *BaseModel) StampModified(actor string, at time.Time) {
	m.ModifiedBy = &actor
	m.ModifiedAt = &at
}

// NewID returns a UUIDv7 string so that identifiers sort in creation order.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// StampFields lists the bookkeeping columns maintained by Stamped entities. Audit entries
// never record them; the audit row itself carries the actor and timestamp.
var StampFields = []string{"CreatedBy", "CreatedAt", "ModifiedBy", "ModifiedAt"}
