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

// FileCopyRepository handles FileCopyOperation and FileCopySkip rows
type FileCopyRepository struct {
	DB *gorm.DB
}

func NewFileCopyRepository(db *gorm.DB) *FileCopyRepository {
	return &FileCopyRepository{DB: db}
}

func (r *FileCopyRepository) Create(op *models.FileCopyOperation) error {
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}
	if op.Status == "" {
		op.Status = models.CopyStatusPending
	}
	if err := r.DB.Create(op).Error; err != nil {
		return fmt.Errorf("failed to create copy operation %s -> %s: %w", op.SourcePath, op.DestinationPath, err)
	}
	return nil
}

func (r *FileCopyRepository) GetByID(id uuid.UUID) (*models.FileCopyOperation, error) {
	var op models.FileCopyOperation
	err := r.DB.First(&op, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get copy operation %s: %w", id, err)
	}
	return &op, nil
}

func (r *FileCopyRepository) ListAll() ([]models.FileCopyOperation, error) {
	var out []models.FileCopyOperation
	if err := r.DB.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list copy operations: %w", err)
	}
	return out, nil
}

func (r *FileCopyRepository) ListSkips(id uuid.UUID) ([]models.FileCopySkip, error) {
	var out []models.FileCopySkip
	err := r.DB.Where("operation_id = ?", id).Order("created_at ASC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list skips for copy operation %s: %w", id, err)
	}
	return out, nil
}

// SetStatus moves the operation to `to` when its status is one of `from`.
func (r *FileCopyRepository) SetStatus(id uuid.UUID, to string, from []string) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if to == models.CopyStatusCompleted || to == models.CopyStatusFailed || to == models.CopyStatusCancelled {
		updates["completed_at"] = time.Now().UTC()
	}
	result := r.DB.Model(&models.FileCopyOperation{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to set copy operation %s to %s: %w", id, to, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// MarkRunning claims a pending operation and records the planned totals.
func (r *FileCopyRepository) MarkRunning(id uuid.UUID, filesTotal int, bytesTotal int64) (bool, error) {
	result := r.DB.Model(&models.FileCopyOperation{}).
		Where("id = ? AND status = ?", id, models.CopyStatusPending).
		Updates(map[string]interface{}{
			"status":      models.CopyStatusRunning,
			"started_at":  time.Now().UTC(),
			"files_total": filesTotal,
			"bytes_total": bytesTotal,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to start copy operation %s: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Finish sets the final status of a running operation. A concurrent cancel
// wins over completion.
func (r *FileCopyRepository) Finish(id uuid.UUID, status string, errMsg *string) error {
	result := r.DB.Model(&models.FileCopyOperation{}).
		Where("id = ? AND status = ?", id, models.CopyStatusRunning).
		Updates(map[string]interface{}{
			"status":       status,
			"error":        errMsg,
			"completed_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to finish copy operation %s: %w", id, result.Error)
	}
	return nil
}

func (r *FileCopyRepository) RecordCopied(id uuid.UUID, bytes int64) error {
	return database.IncrementCopyProgress(r.DB, id, database.CopyProgress{FilesCopied: 1, BytesCopied: bytes})
}

// RecordSkip stores the skip row and bumps files_skipped in one transaction.
func (r *FileCopyRepository) RecordSkip(skip *models.FileCopySkip) error {
	if skip.CreatedAt.IsZero() {
		skip.CreatedAt = time.Now().UTC()
	}
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(skip).Error; err != nil {
			return fmt.Errorf("failed to record skip for %s: %w", skip.SourcePath, err)
		}
		return database.IncrementCopyProgress(tx, skip.OperationID, database.CopyProgress{FilesSkipped: 1})
	})
}

func (r *FileCopyRepository) LinkSession(id, sessionID uuid.UUID) error {
	result := r.DB.Model(&models.FileCopyOperation{}).Where("id = ?", id).Update("input_session_id", sessionID)
	if result.Error != nil {
		return fmt.Errorf("failed to link copy operation %s to session %s: %w", id, sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
