package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/camden-git/photocatalog/models"
)

// EventRepository handles database operations for Event entities
type EventRepository struct {
	DB *gorm.DB
}

// NewEventRepository creates a new instance of EventRepository
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{DB: db}
}

func (r *EventRepository) Create(e *models.Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if err := r.DB.Create(e).Error; err != nil {
		return fmt.Errorf("failed to create event %s: %w", e.Name, err)
	}
	return nil
}

func (r *EventRepository) GetByID(id uuid.UUID) (*models.Event, error) {
	var e models.Event
	err := r.DB.First(&e, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}
	return &e, nil
}

// ListAll returns events newest first; undated events sort last.
func (r *EventRepository) ListAll() ([]models.Event, error) {
	var out []models.Event
	err := r.DB.Order("date IS NULL, date DESC").Order("name ASC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return out, nil
}

// Delete removes the event. Photos and sessions referencing it keep their
// rows with the reference cleared.
func (r *EventRepository) Delete(id uuid.UUID) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Model(&models.Photo{}).Where("event_id = ?", id).
			Update("event_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach photos from event %s: %w", id, err)
		}
		if err := tx.Model(&models.InputSession{}).Where("default_event_id = ?", id).
			Update("default_event_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach sessions from event %s: %w", id, err)
		}
		result := tx.Delete(&models.Event{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete event %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
