package models

import (
	"time"

	"github.com/google/uuid"
)

// Photographer is credited on every Photo. A photographer that still owns
// photos cannot be deleted.
type Photographer struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Website   *string   `gorm:"" json:"website,omitempty"`
	Bio       *string   `gorm:"" json:"bio,omitempty"`
	Notes     *string   `gorm:"" json:"notes,omitempty"`
	IsDefault bool      `gorm:"not null;default:false" json:"is_default"`
	IsUnknown bool      `gorm:"not null;default:false" json:"is_unknown"` // placeholder for unattributed photos
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Photographer) TableName() string {
	return "photographers"
}

type Event struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string     `gorm:"not null" json:"name"`
	Description *string    `gorm:"" json:"description,omitempty"`
	Date        *time.Time `gorm:"" json:"date,omitempty"`
	Location    *string    `gorm:"" json:"location,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
}

func (Event) TableName() string {
	return "events"
}
