package services

import (
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/camden-git/photocatalog/config"
	"github.com/camden-git/photocatalog/database"
	"github.com/camden-git/photocatalog/media"
	"github.com/camden-git/photocatalog/models"
)

type testEnv struct {
	db            *gorm.DB
	store         *media.LocalStorage
	processor     *media.Processor
	registration  *RegistrationService
	sessions      *InputSessionService
	photos        *PhotoService
	photographers *PhotographerService
	events        *EventService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Type: config.DatabaseTypeSQLite, Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store, err := media.NewLocalStorage(t.TempDir(), map[media.AssetType]string{
		media.AssetTypeColdPreview: "coldpreviews",
		media.AssetTypeUpload:      "uploads",
	})
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	processor := media.NewProcessor(store)
	registration := NewRegistrationService(db, processor, media.NewExtractor(), store)

	return &testEnv{
		db:            db,
		store:         store,
		processor:     processor,
		registration:  registration,
		sessions:      NewInputSessionService(db, registration, 4),
		photos:        NewPhotoService(db, processor),
		photographers: NewPhotographerService(db),
		events:        NewEventService(db),
	}
}

func (e *testEnv) newSession(t *testing.T, source string) *models.InputSession {
	t.Helper()
	s, err := e.sessions.Create(CreateSessionRequest{SourcePath: source})
	if err != nil {
		t.Fatalf("Create session: %v", err)
	}
	return s
}

func (e *testEnv) reloadSession(t *testing.T, s *models.InputSession) *models.InputSession {
	t.Helper()
	got, err := e.sessions.Get(s.ID)
	if err != nil {
		t.Fatalf("Get session: %v", err)
	}
	return got
}

func (e *testEnv) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := e.db.Unscoped().Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

var defaultSnapshot = models.SettingsSnapshot{}.Sanitized()
