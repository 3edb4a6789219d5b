package repository

import (
	"github.com/google/uuid"

	"github.com/camden-git/photocatalog/models"
)

// PhotographerRepositoryInterface defines the methods for photographer data operations
type PhotographerRepositoryInterface interface {
	Create(p *models.Photographer) error
	GetByID(id uuid.UUID) (*models.Photographer, error)
	GetUnknown() (*models.Photographer, error)
	ListAll() ([]models.Photographer, error)
	CountPhotos(id uuid.UUID) (int64, error)
	Delete(id uuid.UUID) error
}

// EventRepositoryInterface defines the methods for event data operations
type EventRepositoryInterface interface {
	Create(e *models.Event) error
	GetByID(id uuid.UUID) (*models.Event, error)
	ListAll() ([]models.Event, error)
	Delete(id uuid.UUID) error
}

// PhotoRepositoryInterface defines the methods for photo data operations
type PhotoRepositoryInterface interface {
	GetByID(id uuid.UUID) (*models.Photo, error)
	GetByHothash(hothash string) (*models.Photo, error)
	ListBySession(sessionID uuid.UUID) ([]models.Photo, error)
	ListWithHashes() ([]models.Photo, error)
	ListMissingHashes() ([]models.Photo, error)
	UpdateHashes(id uuid.UUID, dct, diff int64) error
	SoftDelete(id uuid.UUID) error
	Restore(id uuid.UUID) error
	ListTrashed() ([]models.Photo, error)
	HardDelete(ids []uuid.UUID) (int64, error)
	SetTags(id uuid.UUID, tags []string) error
	SetRating(id uuid.UUID, rating *int) error
}

// ImageFileRepositoryInterface defines the methods for image file data operations
type ImageFileRepositoryInterface interface {
	GetByPath(path string) (*models.ImageFile, error)
	ListByPhoto(photoID uuid.UUID) ([]models.ImageFile, error)
	FindRegisteredPaths(paths []string) (map[string]bool, error)
}

// SessionRepositoryInterface defines the methods for input session data operations
type SessionRepositoryInterface interface {
	Create(s *models.InputSession) error
	GetByID(id uuid.UUID) (*models.InputSession, error)
	ListAll() ([]models.InputSession, error)
	Delete(id uuid.UUID) error
	AdvanceStatus(id uuid.UUID, to string) (bool, error)
	ListErrors(id uuid.UUID) ([]models.SessionError, error)
	ListDuplicates(id uuid.UUID) ([]models.DuplicateFile, error)
}

// SettingsRepositoryInterface defines the methods for system settings
type SettingsRepositoryInterface interface {
	Get() (*models.SystemSettings, error)
	Update(s *models.SystemSettings) error
	Snapshot() models.SettingsSnapshot
}

// FileCopyRepositoryInterface defines the methods for file copy bookkeeping
type FileCopyRepositoryInterface interface {
	Create(op *models.FileCopyOperation) error
	GetByID(id uuid.UUID) (*models.FileCopyOperation, error)
	ListAll() ([]models.FileCopyOperation, error)
	ListSkips(id uuid.UUID) ([]models.FileCopySkip, error)
	SetStatus(id uuid.UUID, to string, from []string) (bool, error)
	MarkRunning(id uuid.UUID, filesTotal int, bytesTotal int64) (bool, error)
	Finish(id uuid.UUID, status string, errMsg *string) error
	RecordCopied(id uuid.UUID, bytes int64) error
	RecordSkip(skip *models.FileCopySkip) error
	LinkSession(id, sessionID uuid.UUID) error
}

var (
	_ PhotographerRepositoryInterface = (*PhotographerRepository)(nil)
	_ EventRepositoryInterface        = (*EventRepository)(nil)
	_ PhotoRepositoryInterface        = (*PhotoRepository)(nil)
	_ ImageFileRepositoryInterface    = (*ImageFileRepository)(nil)
	_ SessionRepositoryInterface      = (*SessionRepository)(nil)
	_ SettingsRepositoryInterface     = (*SettingsRepository)(nil)
	_ FileCopyRepositoryInterface     = (*FileCopyRepository)(nil)
)
