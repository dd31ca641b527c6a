package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AuditAction string

const (
	AuditActionCreate AuditAction = "Create"
	AuditActionUpdate AuditAction = "Update"
	AuditActionDelete AuditAction = "Delete"
)

// AuditTrail is an append-only record of one entity mutation. It carries no foreign keys.
type AuditTrail struct {
	ID             string                      `gorm:"primaryKey;size:36" json:"id"`
	Username       string                      `gorm:"size:256;not null;index" json:"username"`
	FullName       string                      `gorm:"size:256" json:"full_name"`
	IPAddress      *string                     `gorm:"size:64" json:"ip_address"`
	EntityName     string                      `gorm:"size:128;not null;index" json:"entity_name"`
	Action         AuditAction                 `gorm:"size:16;not null;index" json:"action"`
	Timestamp      time.Time                   `gorm:"not null;index" json:"timestamp"`
	KeyValues      datatypes.JSONMap           `json:"key_values"`
	OldValues      datatypes.JSONMap           `json:"old_values"`
	NewValues      datatypes.JSONMap           `json:"new_values"`
	ChangedColumns datatypes.JSONSlice[string] `json:"changed_columns"`
	Summary        string                      `gorm:"size:1024" json:"summary"`
}

func (a *AuditTrail) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = NewID()
	}
	return nil
}

func (AuditTrail) Audited() bool { return false }
