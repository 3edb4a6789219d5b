package repository

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/camden-git/photocatalog/database"
	"github.com/camden-git/photocatalog/models"
)

// ImageFileRepository handles database operations for ImageFile entities
type ImageFileRepository struct {
	DB *gorm.DB
}

func NewImageFileRepository(db *gorm.DB) *ImageFileRepository {
	return &ImageFileRepository{DB: db}
}

// GetByPath retrieves the image file registered at path
func (r *ImageFileRepository) GetByPath(path string) (*models.ImageFile, error) {
	var f models.ImageFile
	err := r.DB.Where("file_path = ?", path).First(&f).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get image file by path %s: %w", path, err)
	}
	return &f, nil
}

// ListByPhoto returns the master first, then companions by path.
func (r *ImageFileRepository) ListByPhoto(photoID uuid.UUID) ([]models.ImageFile, error) {
	var files []models.ImageFile
	err := r.DB.Where("photo_id = ?", photoID).Order("is_master DESC").Order("file_path ASC").Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list image files for photo %s: %w", photoID, err)
	}
	return files, nil
}

func (r *ImageFileRepository) FindRegisteredPaths(paths []string) (map[string]bool, error) {
	return database.FindRegisteredPaths(r.DB, paths)
}
