package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/camden-git/photocatalog/logging"
	"github.com/camden-git/photocatalog/models"
)

const settingsRowID = 1

// SettingsRepository reads and writes the single system settings row
type SettingsRepository struct {
	DB *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{DB: db}
}

func (r *SettingsRepository) Get() (*models.SystemSettings, error) {
	var s models.SystemSettings
	if err := r.DB.First(&s, settingsRowID).Error; err != nil {
		return nil, fmt.Errorf("failed to load system settings: %w", err)
	}
	return &s, nil
}

func (r *SettingsRepository) Update(s *models.SystemSettings) error {
	s.ID = settingsRowID
	if err := r.DB.Save(s).Error; err != nil {
		return fmt.Errorf("failed to save system settings: %w", err)
	}
	return nil
}

// Snapshot returns the current settings, or the defaults when the row
// cannot be read.
func (r *SettingsRepository) Snapshot() models.SettingsSnapshot {
	s, err := r.Get()
	if err != nil {
		log := logging.Component("settings")
		log.Warn().Err(err).Msg("settings: using defaults")
		return models.DefaultSettingsSnapshot()
	}
	return s.Snapshot()
}
