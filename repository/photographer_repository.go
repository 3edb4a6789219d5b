package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/camden-git/photocatalog/models"
)

// PhotographerRepository handles database operations for Photographer entities
type PhotographerRepository struct {
	DB *gorm.DB
}

// NewPhotographerRepository creates a new instance of PhotographerRepository
func NewPhotographerRepository(db *gorm.DB) *PhotographerRepository {
	return &PhotographerRepository{DB: db}
}

func (r *PhotographerRepository) Create(p *models.Photographer) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := r.DB.Create(p).Error; err != nil {
		return fmt.Errorf("failed to create photographer %s: %w", p.Name, err)
	}
	return nil
}

func (r *PhotographerRepository) GetByID(id uuid.UUID) (*models.Photographer, error) {
	var p models.Photographer
	err := r.DB.First(&p, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get photographer %s: %w", id, err)
	}
	return &p, nil
}

// GetUnknown returns the placeholder photographer seeded at startup.
func (r *PhotographerRepository) GetUnknown() (*models.Photographer, error) {
	var p models.Photographer
	err := r.DB.Where("is_unknown = ?", true).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get unknown photographer: %w", err)
	}
	return &p, nil
}

// ListAll retrieves all photographers, ordered by name
func (r *PhotographerRepository) ListAll() ([]models.Photographer, error) {
	var out []models.Photographer
	if err := r.DB.Order("name ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list photographers: %w", err)
	}
	return out, nil
}

// CountPhotos counts photos credited to the photographer, trashed ones included.
func (r *PhotographerRepository) CountPhotos(id uuid.UUID) (int64, error) {
	var n int64
	err := r.DB.Unscoped().Model(&models.Photo{}).Where("photographer_id = ?", id).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count photos for photographer %s: %w", id, err)
	}
	return n, nil
}

func (r *PhotographerRepository) Delete(id uuid.UUID) error {
	result := r.DB.Delete(&models.Photographer{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete photographer %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
