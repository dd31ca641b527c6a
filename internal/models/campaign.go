package models

// Campaign is a fundraising campaign. GoalAmount is expressed in minor currency units.
type Campaign struct {
	BaseModel

	OwnerID     string `gorm:"size:36;not null;index" json:"owner_id"`
	Owner       *User  `gorm:"foreignKey:OwnerID" json:"-"`
	Title       string `gorm:"uniqueIndex;size:200;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	GoalAmount  int64  `gorm:"not null" json:"goal_amount"`
	Currency    string `gorm:"size:3;not null" json:"currency"`
	IsPublished bool   `gorm:"default:false" json:"is_published"`
}
