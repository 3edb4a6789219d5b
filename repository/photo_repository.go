package repository

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/camden-git/photocatalog/models"
)

// PhotoRepository handles database operations for Photo entities
type PhotoRepository struct {
	DB *gorm.DB
}

// NewPhotoRepository creates a new instance of PhotoRepository
func NewPhotoRepository(db *gorm.DB) *PhotoRepository {
	return &PhotoRepository{DB: db}
}

// GetByID retrieves a live photo with its files
func (r *PhotoRepository) GetByID(id uuid.UUID) (*models.Photo, error) {
	var photo models.Photo
	err := r.DB.Preload("ImageFiles").First(&photo, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get photo %s: %w", id, err)
	}
	return &photo, nil
}

// GetByHothash looks up a photo by content identity, including photos in
// the trash.
func (r *PhotoRepository) GetByHothash(hothash string) (*models.Photo, error) {
	var photo models.Photo
	err := r.DB.Unscoped().Omit("hot_preview").Where("hothash = ?", hothash).First(&photo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get photo by hothash %s: %w", hothash, err)
	}
	return &photo, nil
}

func (r *PhotoRepository) ListBySession(sessionID uuid.UUID) ([]models.Photo, error) {
	var photos []models.Photo
	err := r.DB.Omit("hot_preview").
		Where("input_session_id = ?", sessionID).
		Order("taken_at IS NULL, taken_at ASC").
		Order("registered_at ASC").
		Find(&photos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list photos for session %s: %w", sessionID, err)
	}
	return photos, nil
}

// ListWithHashes returns live photos that carry both perceptual hashes.
func (r *PhotoRepository) ListWithHashes() ([]models.Photo, error) {
	var photos []models.Photo
	err := r.DB.Omit("hot_preview").
		Where("dct_perceptual_hash IS NOT NULL AND difference_hash IS NOT NULL").
		Find(&photos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list hashed photos: %w", err)
	}
	return photos, nil
}

// ListMissingHashes returns photos, trashed included, whose perceptual
// hashes were never computed. HotPreview is loaded for the backfill.
func (r *PhotoRepository) ListMissingHashes() ([]models.Photo, error) {
	var photos []models.Photo
	err := r.DB.Unscoped().
		Where("dct_perceptual_hash IS NULL OR difference_hash IS NULL").
		Find(&photos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list photos missing hashes: %w", err)
	}
	return photos, nil
}

func (r *PhotoRepository) UpdateHashes(id uuid.UUID, dct, diff int64) error {
	result := r.DB.Unscoped().Model(&models.Photo{}).Where("id = ?", id).Updates(map[string]interface{}{
		"dct_perceptual_hash": dct,
		"difference_hash":     diff,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update hashes for photo %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SoftDelete moves a live photo to the trash
func (r *PhotoRepository) SoftDelete(id uuid.UUID) error {
	result := r.DB.Delete(&models.Photo{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to soft delete photo %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Restore brings a trashed photo back
func (r *PhotoRepository) Restore(id uuid.UUID) error {
	result := r.DB.Unscoped().Model(&models.Photo{}).
		Where("id = ? AND deleted_at IS NOT NULL", id).
		Update("deleted_at", nil)
	if result.Error != nil {
		return fmt.Errorf("failed to restore photo %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *PhotoRepository) ListTrashed() ([]models.Photo, error) {
	var photos []models.Photo
	err := r.DB.Unscoped().Omit("hot_preview").Where("deleted_at IS NOT NULL").Find(&photos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list trashed photos: %w", err)
	}
	return photos, nil
}

// HardDelete permanently removes photos together with their image and
// duplicate file rows.
func (r *PhotoRepository) HardDelete(ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int64
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("photo_id IN ?", ids).Delete(&models.ImageFile{}).Error; err != nil {
			return err
		}
		if err := tx.Where("photo_id IN ?", ids).Delete(&models.DuplicateFile{}).Error; err != nil {
			return err
		}
		res := tx.Unscoped().Where("id IN ?", ids).Delete(&models.Photo{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to hard delete %d photos: %w", len(ids), err)
	}
	return deleted, nil
}

func (r *PhotoRepository) SetTags(id uuid.UUID, tags []string) error {
	result := r.DB.Model(&models.Photo{}).Where("id = ?", id).Update("tags", datatypes.JSONSlice[string](tags))
	if result.Error != nil {
		return fmt.Errorf("failed to set tags for photo %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *PhotoRepository) SetRating(id uuid.UUID, rating *int) error {
	result := r.DB.Model(&models.Photo{}).Where("id = ?", id).Update("rating", rating)
	if result.Error != nil {
		return fmt.Errorf("failed to set rating for photo %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
