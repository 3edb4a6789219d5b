package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/camden-git/photocatalog/logging"
	"github.com/camden-git/photocatalog/media"
	"github.com/camden-git/photocatalog/models"
	"github.com/camden-git/photocatalog/repository"
	"github.com/camden-git/photocatalog/scanner"
)

const defaultImportWorkers = 4

type CreateSessionRequest struct {
	Name                  *string    `json:"name,omitempty"`
	SourcePath            string     `json:"source_path"`
	Recursive             *bool      `json:"recursive,omitempty"`
	DefaultPhotographerID *uuid.UUID `json:"default_photographer_id,omitempty"`
	DefaultEventID        *uuid.UUID `json:"default_event_id,omitempty"`
	Notes                 *string    `json:"notes,omitempty"`
}

type ScanResult struct {
	Groups       []scanner.FileGroup `json:"groups"`
	UnknownCount int                 `json:"unknown_count"`
}

type CheckResult struct {
	Known   []string `json:"known"`
	Unknown []string `json:"unknown"`
}

// ProcessResult is the final tally of a session.
type ProcessResult struct {
	Registered int `json:"registered"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

// InputSessionService drives an import run from creation to completion.
type InputSessionService struct {
	sessions      repository.SessionRepositoryInterface
	photographers repository.PhotographerRepositoryInterface
	events        repository.EventRepositoryInterface
	photos        repository.PhotoRepositoryInterface
	files         repository.ImageFileRepositoryInterface
	settings      repository.SettingsRepositoryInterface
	registration  *RegistrationService
	workers       int
	log           *zerolog.Logger
}

func NewInputSessionService(db *gorm.DB, registration *RegistrationService, workers int) *InputSessionService {
	if workers <= 0 {
		workers = defaultImportWorkers
	}
	return &InputSessionService{
		sessions:      repository.NewSessionRepository(db),
		photographers: repository.NewPhotographerRepository(db),
		events:        repository.NewEventRepository(db),
		photos:        repository.NewPhotoRepository(db),
		files:         repository.NewImageFileRepository(db),
		settings:      repository.NewSettingsRepository(db),
		registration:  registration,
		workers:       workers,
		log:           logging.Component("input_session"),
	}
}

// Create validates the defaults and stores a pending session. Without a
// default photographer the unknown placeholder is credited.
func (s *InputSessionService) Create(req CreateSessionRequest) (*models.InputSession, error) {
	if strings.TrimSpace(req.SourcePath) == "" {
		return nil, fmt.Errorf("%w: source_path is required", ErrInvalidInput)
	}

	var photographer *models.Photographer
	var err error
	if req.DefaultPhotographerID != nil {
		photographer, err = s.photographers.GetByID(*req.DefaultPhotographerID)
	} else {
		photographer, err = s.photographers.GetUnknown()
	}
	if err != nil {
		return nil, notFound(err, "photographer")
	}

	if req.DefaultEventID != nil {
		if _, err := s.events.GetByID(*req.DefaultEventID); err != nil {
			return nil, notFound(err, "event %s", *req.DefaultEventID)
		}
	}

	recursive := true
	if req.Recursive != nil {
		recursive = *req.Recursive
	}

	session := &models.InputSession{
		Name:                  req.Name,
		SourcePath:            req.SourcePath,
		Recursive:             recursive,
		DefaultPhotographerID: photographer.ID,
		DefaultEventID:        req.DefaultEventID,
		Status:                models.SessionStatusPending,
		Notes:                 req.Notes,
	}
	if err := s.sessions.Create(session); err != nil {
		return nil, err
	}
	s.log.Info().Str("session", session.ID.String()).Str("source", session.SourcePath).Msg("input session created")
	return session, nil
}

func (s *InputSessionService) Get(id uuid.UUID) (*models.InputSession, error) {
	session, err := s.sessions.GetByID(id)
	if err != nil {
		return nil, notFound(err, "input session %s", id)
	}
	return session, nil
}

func (s *InputSessionService) List() ([]models.InputSession, error) {
	return s.sessions.ListAll()
}

func (s *InputSessionService) ListPhotos(id uuid.UUID) ([]models.Photo, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	return s.photos.ListBySession(id)
}

func (s *InputSessionService) ListErrors(id uuid.UUID) ([]models.SessionError, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	return s.sessions.ListErrors(id)
}

func (s *InputSessionService) ListDuplicates(id uuid.UUID) ([]models.DuplicateFile, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	return s.sessions.ListDuplicates(id)
}

func (s *InputSessionService) Delete(id uuid.UUID) error {
	if err := s.sessions.Delete(id); err != nil {
		return notFound(err, "input session %s", id)
	}
	return nil
}

// Scan walks the session's source and leaves the session awaiting
// confirmation. A source that cannot be walked fails the session.
func (s *InputSessionService) Scan(id uuid.UUID) (ScanResult, error) {
	session, err := s.openSession(id)
	if err != nil {
		return ScanResult{}, err
	}
	if _, err := s.sessions.AdvanceStatus(id, models.SessionStatusScanning); err != nil {
		return ScanResult{}, err
	}

	res, err := scanner.ScanDirectory(session.SourcePath, session.Recursive)
	if err != nil {
		err = notFound(err, "scanning %s", session.SourcePath)
		if ferr := s.Fail(id, err.Error()); ferr != nil {
			s.log.Error().Err(ferr).Str("session", id.String()).Msg("failed to mark unscannable session failed")
		}
		return ScanResult{}, err
	}

	if _, err := s.sessions.AdvanceStatus(id, models.SessionStatusAwaitingConfirmation); err != nil {
		return ScanResult{}, err
	}
	s.log.Info().Str("session", id.String()).Int("groups", len(res.Groups)).Int("unknown", res.UnknownCount).Msg("input session scanned")
	return ScanResult{Groups: res.Groups, UnknownCount: res.UnknownCount}, nil
}

// Check splits master paths into those already registered and the rest,
// keeping the input order.
func (s *InputSessionService) Check(id uuid.UUID, masterPaths []string) (CheckResult, error) {
	if _, err := s.Get(id); err != nil {
		return CheckResult{}, err
	}
	known, err := s.files.FindRegisteredPaths(masterPaths)
	if err != nil {
		return CheckResult{}, err
	}
	res := CheckResult{Known: []string{}, Unknown: []string{}}
	for _, p := range masterPaths {
		if known[p] {
			res.Known = append(res.Known, p)
		} else {
			res.Unknown = append(res.Unknown, p)
		}
	}
	return res, nil
}

// RequestFromGroup converts a scanned group into a registration request
// that uses the session defaults.
func RequestFromGroup(g scanner.FileGroup) GroupRequest {
	req := GroupRequest{
		MasterPath: g.Master,
		MasterType: string(media.ClassifyPath(g.Master)),
	}
	for _, c := range g.Companions {
		req.Companions = append(req.Companions, Companion{Path: c, Type: string(media.ClassifyPath(c))})
	}
	return req
}

// RegisterGroups registers groups concurrently with a bounded pool. Group
// failures are absorbed by the orchestrator; only session-level and request
// errors stop the run.
func (s *InputSessionService) RegisterGroups(ctx context.Context, id uuid.UUID, groups []scanner.FileGroup) error {
	snap := s.settings.Snapshot()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, group := range groups {
		req := RequestFromGroup(group)
		g.Go(func() error {
			_, err := s.registration.RegisterGroup(gctx, id, req, snap)
			return err
		})
	}
	return g.Wait()
}

// Import scans the source, registers every group and completes the session.
func (s *InputSessionService) Import(ctx context.Context, id uuid.UUID) (ProcessResult, error) {
	scan, err := s.Scan(id)
	if err != nil {
		return ProcessResult{}, err
	}
	if err := s.StartProcessing(id); err != nil {
		return ProcessResult{}, err
	}
	if err := s.RegisterGroups(ctx, id, scan.Groups); err != nil {
		return ProcessResult{}, err
	}
	return s.Complete(id)
}

// StartProcessing moves an open session to processing. Sessions that are
// already further along are left as they are.
func (s *InputSessionService) StartProcessing(id uuid.UUID) error {
	if _, err := s.openSession(id); err != nil {
		return err
	}
	_, err := s.sessions.AdvanceStatus(id, models.SessionStatusProcessing)
	return err
}

// Complete marks the session completed and returns its counters. Calling it
// again returns the same counters.
func (s *InputSessionService) Complete(id uuid.UUID) (ProcessResult, error) {
	session, err := s.Get(id)
	if err != nil {
		return ProcessResult{}, err
	}
	switch session.Status {
	case models.SessionStatusCompleted:
		return resultOf(session), nil
	case models.SessionStatusFailed, models.SessionStatusCancelled:
		return ProcessResult{}, fmt.Errorf("%w: session %s is %s", ErrSessionClosed, id, session.Status)
	}

	if _, err := s.sessions.AdvanceStatus(id, models.SessionStatusCompleted); err != nil {
		return ProcessResult{}, err
	}
	session, err = s.Get(id)
	if err != nil {
		return ProcessResult{}, err
	}
	if session.Status != models.SessionStatusCompleted {
		return ProcessResult{}, fmt.Errorf("%w: session %s is %s", ErrSessionClosed, id, session.Status)
	}
	s.log.Info().Str("session", id.String()).
		Int("registered", session.PhotoCount).
		Int("duplicates", session.DuplicateCount).
		Int("errors", session.ErrorCount).
		Msg("input session completed")
	return resultOf(session), nil
}

func (s *InputSessionService) Fail(id uuid.UUID, reason string) error {
	if err := s.terminate(id, models.SessionStatusFailed); err != nil {
		return err
	}
	s.log.Warn().Str("session", id.String()).Str("reason", reason).Msg("input session failed")
	return nil
}

func (s *InputSessionService) Cancel(id uuid.UUID) error {
	return s.terminate(id, models.SessionStatusCancelled)
}

func (s *InputSessionService) terminate(id uuid.UUID, status string) error {
	moved, err := s.sessions.AdvanceStatus(id, status)
	if err != nil {
		return err
	}
	if moved {
		return nil
	}
	session, err := s.Get(id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: session %s is already %s", ErrConflict, id, session.Status)
}

func (s *InputSessionService) openSession(id uuid.UUID) (*models.InputSession, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if models.IsTerminalSessionStatus(session.Status) {
		return nil, fmt.Errorf("%w: session %s is %s", ErrSessionClosed, id, session.Status)
	}
	return session, nil
}

func resultOf(s *models.InputSession) ProcessResult {
	return ProcessResult{Registered: s.PhotoCount, Duplicates: s.DuplicateCount, Errors: s.ErrorCount}
}
