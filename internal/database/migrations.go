package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/fundraiser/internal/models"
)

const seedActor = "system"

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.UserRole{},
		&models.UserClaim{},
		&models.RoleClaim{},
		&models.UserSession{},
		&models.AuditTrail{},
		&models.Campaign{},
	)
}

// SeedData populates the default roles and their claims.
func SeedData(db *gorm.DB) error {
	roles := []models.Role{
		{
			BaseModel:   models.BaseModel{ID: "admin", CreatedBy: seedActor},
			Name:        "Administrator",
			Description: "Full system access",
			IsSystem:    true,
		},
		{
			BaseModel:   models.BaseModel{ID: "user", CreatedBy: seedActor},
			Name:        "User",
			Description: "Standard user access",
			IsSystem:    true,
		},
	}

	for _, role := range roles {
		if err := db.Where(models.Role{BaseModel: models.BaseModel{ID: role.ID}}).Attrs(role).FirstOrCreate(&models.Role{}).Error; err != nil {
			return err
		}
	}

	claims := []models.RoleClaim{
		{RoleID: "admin", Type: "permission", Value: "audit.read"},
		{RoleID: "admin", Type: "permission", Value: "campaign.manage"},
		{RoleID: "user", Type: "permission", Value: "campaign.create"},
	}
	for _, claim := range claims {
		query := models.RoleClaim{RoleID: claim.RoleID, Type: claim.Type, Value: claim.Value}
		if err := db.Where(query).Attrs(claim).FirstOrCreate(&models.RoleClaim{}).Error; err != nil {
			return err
		}
	}

	return nil
}
