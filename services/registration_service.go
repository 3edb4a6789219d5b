package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/camden-git/photocatalog/database"
	"github.com/camden-git/photocatalog/logging"
	"github.com/camden-git/photocatalog/media"
	"github.com/camden-git/photocatalog/metrics"
	"github.com/camden-git/photocatalog/models"
	"github.com/camden-git/photocatalog/repository"
	"github.com/camden-git/photocatalog/utils"
)

// Group registration outcomes.
const (
	StatusRegistered        = "registered"
	StatusDuplicate         = "duplicate"
	StatusAlreadyRegistered = "already_registered"
	StatusError             = "error"
)

const locationAccuracyExact = "exact"

// OptionalID distinguishes a missing JSON field (Set false: use the session
// default) from an explicit null (Set true, Value nil: no value).
type OptionalID struct {
	Set   bool
	Value *uuid.UUID
}

// Some returns an OptionalID holding id.
func Some(id uuid.UUID) OptionalID { return OptionalID{Set: true, Value: &id} }

// Null returns an explicitly empty OptionalID.
func Null() OptionalID { return OptionalID{Set: true} }

func (o *OptionalID) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Value = nil
		return nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(b, &id); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	o.Value = &id
	return nil
}

func (o OptionalID) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// Resolve returns the explicit value when set, else def.
func (o OptionalID) Resolve(def *uuid.UUID) *uuid.UUID {
	if o.Set {
		return o.Value
	}
	return def
}

type Companion struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// GroupRequest describes one file group to register. MasterPath is the
// path recorded on the master ImageFile; for uploads it is the client's
// original path.
type GroupRequest struct {
	MasterPath     string      `json:"master_path"`
	MasterType     string      `json:"master_type"`
	Companions     []Companion `json:"companions"`
	PhotographerID *uuid.UUID  `json:"photographer_id,omitempty"`
	EventID        OptionalID  `json:"event_id"`
}

type GroupResult struct {
	Status  string     `json:"status"`
	Hothash string     `json:"hothash,omitempty"`
	PhotoID *uuid.UUID `json:"photo_id,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// RegistrationService turns file groups into Photos. Failures while reading
// or storing a group are recorded on the session and never returned as
// errors. A malformed request or an unknown override is returned instead.
type RegistrationService struct {
	db            *gorm.DB
	sessions      repository.SessionRepositoryInterface
	photographers repository.PhotographerRepositoryInterface
	events        repository.EventRepositoryInterface
	photos        repository.PhotoRepositoryInterface
	files         repository.ImageFileRepositoryInterface
	processor *media.Processor
	extractor *media.Extractor
	store     media.Store
	log       *zerolog.Logger
}

func NewRegistrationService(db *gorm.DB, processor *media.Processor, extractor *media.Extractor, store media.Store) *RegistrationService {
	return &RegistrationService{
		db:            db,
		sessions:      repository.NewSessionRepository(db),
		photographers: repository.NewPhotographerRepository(db),
		events:        repository.NewEventRepository(db),
		photos:        repository.NewPhotoRepository(db),
		files:         repository.NewImageFileRepository(db),
		processor:     processor,
		extractor:     extractor,
		store:         store,
		log:           logging.Component("registration"),
	}
}

// RegisterGroup registers a group whose master is readable at
// req.MasterPath.
func (s *RegistrationService) RegisterGroup(ctx context.Context, sessionID uuid.UUID, req GroupRequest, snap models.SettingsSnapshot) (GroupResult, error) {
	return s.register(ctx, sessionID, req, nil, snap)
}

// RegisterUpload registers a group whose master bytes arrive in body. The
// bytes are staged in the upload area for the duration of the call.
func (s *RegistrationService) RegisterUpload(ctx context.Context, sessionID uuid.UUID, req GroupRequest, body io.Reader, snap models.SettingsSnapshot) (GroupResult, error) {
	if body == nil {
		return GroupResult{}, fmt.Errorf("%w: upload body is required", ErrInvalidInput)
	}
	return s.register(ctx, sessionID, req, body, snap)
}

func (s *RegistrationService) register(ctx context.Context, sessionID uuid.UUID, req GroupRequest, body io.Reader, snap models.SettingsSnapshot) (GroupResult, error) {
	if err := ctx.Err(); err != nil {
		return GroupResult{}, err
	}
	session, err := s.openSession(sessionID)
	if err != nil {
		return GroupResult{}, err
	}
	role, err := s.validateRequest(req)
	if err != nil {
		return GroupResult{}, err
	}

	start := time.Now()
	res, regErr := s.process(session, req, role, body, snap.Sanitized())
	if regErr != nil {
		s.log.Warn().Err(regErr).Str("session", sessionID.String()).Str("path", req.MasterPath).Msg("registration: group failed")
		res = s.recordFailure(sessionID, req.MasterPath, regErr)
	}

	metrics.GroupRegistrations.WithLabelValues(res.Status).Inc()
	metrics.RegistrationDuration.Observe(time.Since(start).Seconds())
	return res, nil
}

func (s *RegistrationService) openSession(id uuid.UUID) (*models.InputSession, error) {
	session, err := s.sessions.GetByID(id)
	if err != nil {
		return nil, notFound(err, "input session %s", id)
	}
	if session.Status == models.SessionStatusFailed || session.Status == models.SessionStatusCancelled {
		return nil, fmt.Errorf("%w: session %s is %s", ErrSessionClosed, id, session.Status)
	}
	return session, nil
}

// validateRequest rejects requests that no amount of retrying fixes: a
// missing master, a non-image master or an override naming an unknown
// photographer or event.
func (s *RegistrationService) validateRequest(req GroupRequest) (media.FileRole, error) {
	if req.MasterPath == "" {
		return "", fmt.Errorf("%w: master path is required", ErrInvalidInput)
	}
	role := masterRole(req)
	if !role.IsImage() {
		return "", fmt.Errorf("%w: unsupported master type %q", ErrInvalidInput, req.MasterType)
	}
	if req.PhotographerID != nil {
		if _, err := s.photographers.GetByID(*req.PhotographerID); err != nil {
			return "", notFound(err, "photographer %s", *req.PhotographerID)
		}
	}
	if req.EventID.Set && req.EventID.Value != nil {
		if _, err := s.events.GetByID(*req.EventID.Value); err != nil {
			return "", notFound(err, "event %s", *req.EventID.Value)
		}
	}
	return role, nil
}

func (s *RegistrationService) process(session *models.InputSession, req GroupRequest, role media.FileRole, body io.Reader, snap models.SettingsSnapshot) (GroupResult, error) {
	if res, ok, err := s.lookupRegistered(req.MasterPath); err != nil || ok {
		return res, err
	}

	readPath := req.MasterPath
	if body != nil {
		staged, cleanup, err := s.stageUpload(req.MasterPath, body)
		if err != nil {
			return GroupResult{}, err
		}
		defer cleanup()
		readPath = staged
	}

	src := media.NewSource(readPath)
	hot, err := s.processor.HotPreviewFor(src)
	if err != nil {
		return GroupResult{}, fmt.Errorf("hot preview: %w", err)
	}

	existing, err := s.photos.GetByHothash(hot.Hothash)
	switch {
	case err == nil:
		return s.recordDuplicate(session.ID, req.MasterPath, existing.ID, hot.Hothash)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return GroupResult{}, err
	}

	photo, files, err := s.buildPhoto(session, req, role, src, hot)
	if err != nil {
		return GroupResult{}, err
	}

	if _, err := s.processor.ColdPreviewFor(src, hot.Hothash, snap.ColdPreviewMaxPx, snap.ColdPreviewQuality); err != nil {
		return GroupResult{}, fmt.Errorf("cold preview: %w", err)
	}

	activeStatus := models.SessionStatusProcessing
	if body != nil {
		activeStatus = models.SessionStatusUploading
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(photo).Error; err != nil {
			return err
		}
		for i := range files {
			files[i].PhotoID = photo.ID
		}
		if err := tx.Create(&files).Error; err != nil {
			return err
		}
		if err := database.IncrementSessionCounter(tx, session.ID, database.CounterPhotos, 1); err != nil {
			return err
		}
		_, err := database.AdvanceSessionStatus(tx, session.ID, activeStatus, []string{
			models.SessionStatusPending, models.SessionStatusScanning, models.SessionStatusAwaitingConfirmation,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.resolveConflict(session.ID, req.MasterPath, hot.Hothash)
		}
		s.releaseColdPreview(hot.Hothash)
		return GroupResult{}, fmt.Errorf("persisting photo: %w", err)
	}

	s.log.Debug().Str("path", req.MasterPath).Str("hothash", hot.Hothash).Msg("registration: photo registered")
	id := photo.ID
	return GroupResult{Status: StatusRegistered, Hothash: hot.Hothash, PhotoID: &id}, nil
}

// masterRole trusts the path's extension and only falls back to the
// declared type for paths without a known one.
func masterRole(req GroupRequest) media.FileRole {
	if role := media.ClassifyPath(req.MasterPath); role.IsKnown() {
		return role
	}
	return media.FileRole(strings.ToUpper(req.MasterType))
}

func (s *RegistrationService) lookupRegistered(path string) (GroupResult, bool, error) {
	f, err := s.files.GetByPath(path)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return GroupResult{}, false, nil
	}
	if err != nil {
		return GroupResult{}, false, err
	}

	res := GroupResult{Status: StatusAlreadyRegistered, PhotoID: &f.PhotoID}
	var photo models.Photo
	if err := s.db.Unscoped().Select("hothash").First(&photo, "id = ?", f.PhotoID).Error; err == nil {
		res.Hothash = photo.Hothash
	}
	return res, true, nil
}

func (s *RegistrationService) stageUpload(originalPath string, body io.Reader) (string, func(), error) {
	name := uuid.NewString() + filepath.Ext(originalPath)
	rel, err := s.store.Save(media.AssetTypeUpload, "", name, body)
	if err != nil {
		return "", nil, fmt.Errorf("%w: staging upload: %v", media.ErrIOFailure, err)
	}
	cleanup := func() {
		if err := s.store.Delete(media.AssetTypeUpload, rel); err != nil {
			s.log.Warn().Err(err).Str("upload", rel).Msg("registration: failed to remove staged upload")
		}
	}
	full, err := s.store.GetFullPath(media.AssetTypeUpload, rel)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	return full, cleanup, nil
}

func (s *RegistrationService) buildPhoto(session *models.InputSession, req GroupRequest, role media.FileRole, src *media.Source, hot media.HotPreview) (*models.Photo, []models.ImageFile, error) {
	meta := s.extractor.ExtractSource(src)
	cam := s.extractor.CameraFieldsSource(src)

	masterHash, masterSize, err := utils.HashFile(src.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", media.ErrIOFailure, err)
	}

	photographerID := session.DefaultPhotographerID
	if req.PhotographerID != nil {
		photographerID = *req.PhotographerID
	}
	sessionID := session.ID

	photo := &models.Photo{
		Hothash:         hot.Hothash,
		HotPreview:      hot.JPEG,
		TakenAt:         media.DeriveTakenAt(meta),
		TakenAtSource:   models.TakenAtSourceExif,
		TakenAtAccuracy: "second",
		CameraMake:      cam.CameraMake,
		CameraModel:     cam.CameraModel,
		LensModel:       cam.LensModel,
		ISO:             cam.ISO,
		ShutterSpeed:    cam.ShutterSpeed,
		Aperture:        cam.Aperture,
		FocalLength:     cam.FocalLength,
		Tags:            []string{},
		PhotographerID:  photographerID,
		EventID:         req.EventID.Resolve(session.DefaultEventID),
		InputSessionID:  &sessionID,
		Width:           &hot.Width,
		Height:          &hot.Height,
		RegisteredAt:    time.Now().UTC(),
	}
	if lat, lng := media.DeriveGPS(meta); lat != nil && lng != nil {
		src, acc := models.LocationSourceExif, locationAccuracyExact
		photo.LocationLat, photo.LocationLng = lat, lng
		photo.LocationSource, photo.LocationAccuracy = &src, &acc
	}
	if hashes, err := media.ComputePerceptualHashes(hot.JPEG); err == nil {
		dct, diff := media.ToStored(hashes.DCT), media.ToStored(hashes.Difference)
		photo.DCTPerceptualHash, photo.DifferenceHash = &dct, &diff
	} else {
		s.log.Debug().Err(err).Str("path", req.MasterPath).Msg("registration: perceptual hashes skipped")
	}

	files := []models.ImageFile{{
		FilePath:        req.MasterPath,
		FileType:        string(role),
		IsMaster:        true,
		FileSizeBytes:   &masterSize,
		FileContentHash: &masterHash,
		Width:           &hot.Width,
		Height:          &hot.Height,
		Metadata:        datatypes.NewJSONType(meta),
	}}
	for _, c := range req.Companions {
		files = append(files, s.companionFile(c))
	}
	return photo, files, nil
}

// companionFile reads what it can from a companion. A companion that
// cannot be read is still recorded.
func (s *RegistrationService) companionFile(c Companion) models.ImageFile {
	fileType := c.Type
	if fileType == "" {
		fileType = string(media.ClassifyPath(c.Path))
	}
	f := models.ImageFile{FilePath: c.Path, FileType: fileType}

	if media.FileRole(fileType) != media.RoleXMP {
		meta := s.extractor.Extract(c.Path)
		f.Metadata = datatypes.NewJSONType(meta)
		f.Width, f.Height = meta.Width, meta.Height
	}

	if hash, size, err := utils.HashFile(c.Path); err == nil {
		f.FileContentHash, f.FileSizeBytes = &hash, &size
	} else {
		s.log.Debug().Err(err).Str("path", c.Path).Msg("registration: companion not readable")
	}
	return f
}

func (s *RegistrationService) recordDuplicate(sessionID uuid.UUID, path string, photoID uuid.UUID, hothash string) (GroupResult, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		dup := models.DuplicateFile{
			FilePath:   path,
			PhotoID:    photoID,
			SessionID:  sessionID,
			DetectedAt: time.Now().UTC(),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "file_path"}},
			DoNothing: true,
		}).Create(&dup).Error; err != nil {
			return err
		}
		return database.IncrementSessionCounter(tx, sessionID, database.CounterDuplicates, 1)
	})
	if err != nil {
		return GroupResult{}, fmt.Errorf("recording duplicate: %w", err)
	}
	return GroupResult{Status: StatusDuplicate, Hothash: hothash, PhotoID: &photoID}, nil
}

// resolveConflict handles a unique violation at insert time: another
// registration stored the same path or the same content first.
func (s *RegistrationService) resolveConflict(sessionID uuid.UUID, path, hothash string) (GroupResult, error) {
	if res, ok, err := s.lookupRegistered(path); err != nil || ok {
		return res, err
	}
	existing, err := s.photos.GetByHothash(hothash)
	if err == nil {
		return s.recordDuplicate(sessionID, path, existing.ID, hothash)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.releaseColdPreview(hothash)
		return GroupResult{}, fmt.Errorf("%w: a companion file is already registered", ErrConflict)
	}
	return GroupResult{}, err
}

// releaseColdPreview removes the cold preview written for a registration
// that did not commit. Previews are keyed by hothash, so one that a
// committed photo owns is left alone.
func (s *RegistrationService) releaseColdPreview(hothash string) {
	if _, err := s.photos.GetByHothash(hothash); !errors.Is(err, gorm.ErrRecordNotFound) {
		if err != nil {
			s.log.Debug().Err(err).Str("hothash", hothash).Msg("registration: keeping cold preview, owner lookup failed")
		}
		return
	}
	if err := s.processor.DeleteColdPreview(hothash); err != nil {
		s.log.Debug().Err(err).Str("hothash", hothash).Msg("registration: orphaned cold preview")
	}
}

func (s *RegistrationService) recordFailure(sessionID uuid.UUID, path string, cause error) GroupResult {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.SessionError{
			SessionID:  sessionID,
			FilePath:   path,
			Error:      cause.Error(),
			OccurredAt: time.Now().UTC(),
		}).Error; err != nil {
			return err
		}
		return database.IncrementSessionCounter(tx, sessionID, database.CounterErrors, 1)
	})
	if err != nil {
		s.log.Error().Err(err).Str("session", sessionID.String()).Str("path", path).Msg("registration: failed to record session error")
	}
	return GroupResult{Status: StatusError, Error: cause.Error()}
}
