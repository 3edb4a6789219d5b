package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/camden-git/photocatalog/config"
	"github.com/camden-git/photocatalog/database"
	"github.com/camden-git/photocatalog/logging"
	"github.com/camden-git/photocatalog/media"
	"github.com/camden-git/photocatalog/repository"
	"github.com/camden-git/photocatalog/services"
)

// app holds the storage and services shared by every command.
type app struct {
	db        *gorm.DB
	store     *media.LocalStorage
	processor *media.Processor
	extractor *media.Extractor

	registration  *services.RegistrationService
	sessions      *services.InputSessionService
	photos        *services.PhotoService
	photographers *services.PhotographerService
	events        *services.EventService
	settings      repository.SettingsRepositoryInterface
}

func newApp(cfg config.Config) (*app, error) {
	log := logging.Component("startup")

	dirs := []string{cfg.ColdPreviewsPath, cfg.UploadsPath}
	if cfg.Database.Type == config.DatabaseTypeSQLite {
		dirs = append(dirs, filepath.Dir(cfg.Database.Path))
	}
	for _, p := range dirs {
		log.Debug().Str("path", p).Msg("ensuring storage directory exists")
		if err := os.MkdirAll(p, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory %s: %w", p, err)
		}
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	store, err := media.NewLocalStorage(cfg.MediaStoragePath, map[media.AssetType]string{
		media.AssetTypeColdPreview: cfg.ColdPreviewsSubDir,
		media.AssetTypeUpload:      cfg.UploadsSubDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize media store: %w", err)
	}
	processor := media.NewProcessor(store)
	extractor := media.NewExtractor()
	registration := services.NewRegistrationService(db, processor, extractor, store)

	log.Info().
		Str("database", cfg.Database.Type).
		Str("media_storage", cfg.MediaStoragePath).
		Str("root", cfg.RootDirectory).
		Msg("storage ready")

	return &app{
		db:            db,
		store:         store,
		processor:     processor,
		extractor:     extractor,
		registration:  registration,
		sessions:      services.NewInputSessionService(db, registration, cfg.RegistrationWorkers),
		photos:        services.NewPhotoService(db, processor),
		photographers: services.NewPhotographerService(db),
		events:        services.NewEventService(db),
		settings:      repository.NewSettingsRepository(db),
	}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}
