package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/camden-git/photocatalog/database"
	"github.com/camden-git/photocatalog/models"
)

// SessionRepository handles database operations for InputSession entities
// and the error and duplicate rows they own.
type SessionRepository struct {
	DB *gorm.DB
}

// NewSessionRepository creates a new instance of SessionRepository
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

func (r *SessionRepository) Create(s *models.InputSession) error {
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	if s.Status == "" {
		s.Status = models.SessionStatusPending
	}
	if err := r.DB.Create(s).Error; err != nil {
		return fmt.Errorf("failed to create input session for %s: %w", s.SourcePath, err)
	}
	return nil
}

func (r *SessionRepository) GetByID(id uuid.UUID) (*models.InputSession, error) {
	var s models.InputSession
	err := r.DB.First(&s, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get input session %s: %w", id, err)
	}
	return &s, nil
}

// ListAll returns sessions newest first
func (r *SessionRepository) ListAll() ([]models.InputSession, error) {
	var out []models.InputSession
	if err := r.DB.Order("started_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list input sessions: %w", err)
	}
	return out, nil
}

// Delete removes the session with its errors and duplicate records. Photos
// registered by it stay and lose their session reference.
func (r *SessionRepository) Delete(id uuid.UUID) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Photo{}).Unscoped().Where("input_session_id = ?", id).
			Update("input_session_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach photos from session %s: %w", id, err)
		}
		if err := tx.Where("session_id = ?", id).Delete(&models.SessionError{}).Error; err != nil {
			return fmt.Errorf("failed to delete errors of session %s: %w", id, err)
		}
		if err := tx.Where("session_id = ?", id).Delete(&models.DuplicateFile{}).Error; err != nil {
			return fmt.Errorf("failed to delete duplicates of session %s: %w", id, err)
		}
		result := tx.Delete(&models.InputSession{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete input session %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// AdvanceStatus applies a forward-only status transition.
func (r *SessionRepository) AdvanceStatus(id uuid.UUID, to string) (bool, error) {
	return database.AdvanceSessionStatus(r.DB, id, to, models.SessionStatusesBefore(to))
}

func (r *SessionRepository) ListErrors(id uuid.UUID) ([]models.SessionError, error) {
	var out []models.SessionError
	err := r.DB.Where("session_id = ?", id).Order("occurred_at ASC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list errors for session %s: %w", id, err)
	}
	return out, nil
}

func (r *SessionRepository) ListDuplicates(id uuid.UUID) ([]models.DuplicateFile, error) {
	var out []models.DuplicateFile
	err := r.DB.Where("session_id = ?", id).Order("file_path ASC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list duplicates for session %s: %w", id, err)
	}
	return out, nil
}
