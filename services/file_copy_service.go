package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/camden-git/photocatalog/media"
	"github.com/camden-git/photocatalog/models"
	"github.com/camden-git/photocatalog/repository"
	"github.com/camden-git/photocatalog/scanner"
)

// CopyRunner executes queued copy operations in the background.
type CopyRunner interface {
	Enqueue(operationID uuid.UUID) bool
	Cancel(operationID uuid.UUID)
}

type CreateCopyRequest struct {
	SourcePath      string `json:"source_path"`
	DestinationPath string `json:"destination_path"`
}

// NameSuggestion proposes a destination directory name for an offload.
type NameSuggestion struct {
	SuggestedName *string `json:"suggested_name"`
	FilesFound    int     `json:"files_found"`
	BytesTotal    int64   `json:"bytes_total"`
}

type FileCopyService struct {
	ops       repository.FileCopyRepositoryInterface
	sessions  repository.SessionRepositoryInterface
	settings  repository.SettingsRepositoryInterface
	runner    CopyRunner
	extractor *media.Extractor
}

func NewFileCopyService(db *gorm.DB, runner CopyRunner, extractor *media.Extractor) *FileCopyService {
	return &FileCopyService{
		ops:       repository.NewFileCopyRepository(db),
		sessions:  repository.NewSessionRepository(db),
		settings:  repository.NewSettingsRepository(db),
		runner:    runner,
		extractor: extractor,
	}
}

// SuggestName names the offload after the earliest capture date found in
// the source, formatted YYYY-MM-DD.
func (s *FileCopyService) SuggestName(sourcePath string, includeVideos bool) (NameSuggestion, error) {
	files, err := scanner.CollectCopySources(sourcePath, includeVideos)
	if err != nil {
		return NameSuggestion{}, notFound(err, "copy source")
	}
	res := NameSuggestion{FilesFound: len(files)}
	for _, f := range files {
		res.BytesTotal += f.Size
	}
	if t := scanner.EarliestCaptureDate(files, s.extractor); t != nil {
		name := t.Format("2006-01-02")
		res.SuggestedName = &name
	}
	return res, nil
}

// Create stores a pending operation with flags from the current settings
// and hands it to the runner.
func (s *FileCopyService) Create(req CreateCopyRequest) (*models.FileCopyOperation, error) {
	if strings.TrimSpace(req.SourcePath) == "" || strings.TrimSpace(req.DestinationPath) == "" {
		return nil, fmt.Errorf("%w: source_path and destination_path are required", ErrInvalidInput)
	}
	snap := s.settings.Snapshot()
	op := &models.FileCopyOperation{
		SourcePath:      req.SourcePath,
		DestinationPath: req.DestinationPath,
		Status:          models.CopyStatusPending,
		VerifyAfterCopy: snap.CopyVerifyAfterCopy,
		IncludeVideos:   snap.CopyIncludeVideos,
	}
	if err := s.ops.Create(op); err != nil {
		return nil, err
	}
	if s.runner != nil && !s.runner.Enqueue(op.ID) {
		if _, err := s.ops.SetStatus(op.ID, models.CopyStatusFailed, []string{models.CopyStatusPending}); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: copy queue is full", ErrConflict)
	}
	return op, nil
}

func (s *FileCopyService) Get(id uuid.UUID) (*models.FileCopyOperation, error) {
	op, err := s.ops.GetByID(id)
	if err != nil {
		return nil, notFound(err, "copy operation %s", id)
	}
	return op, nil
}

func (s *FileCopyService) List() ([]models.FileCopyOperation, error) {
	return s.ops.ListAll()
}

func (s *FileCopyService) ListSkips(id uuid.UUID) ([]models.FileCopySkip, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	return s.ops.ListSkips(id)
}

// Cancel stops a pending or running operation. Files already copied stay.
func (s *FileCopyService) Cancel(id uuid.UUID) error {
	op, err := s.Get(id)
	if err != nil {
		return err
	}
	switch op.Status {
	case models.CopyStatusPending:
		moved, err := s.ops.SetStatus(id, models.CopyStatusCancelled, []string{models.CopyStatusPending})
		if err != nil {
			return err
		}
		if moved {
			return nil
		}
		// the runner claimed it meanwhile
		if s.runner != nil {
			s.runner.Cancel(id)
		}
		return nil
	case models.CopyStatusRunning:
		if s.runner != nil {
			s.runner.Cancel(id)
		}
		return nil
	}
	return fmt.Errorf("%w: cannot cancel operation with status %s", ErrConflict, op.Status)
}

func (s *FileCopyService) LinkSession(id, sessionID uuid.UUID) (*models.FileCopyOperation, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	if _, err := s.sessions.GetByID(sessionID); err != nil {
		return nil, notFound(err, "input session %s", sessionID)
	}
	if err := s.ops.LinkSession(id, sessionID); err != nil {
		return nil, notFound(err, "copy operation %s", id)
	}
	return s.Get(id)
}
