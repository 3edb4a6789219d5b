package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/camden-git/photocatalog/config"
	"github.com/camden-git/photocatalog/logging"
	"github.com/camden-git/photocatalog/models"
)

// sqlite needs a busy timeout and immediate transactions so concurrent
// registrations queue for the write lock instead of failing.
const sqliteParams = "_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate"

var dialectors = map[string]func(config.DatabaseConfig) gorm.Dialector{
	config.DatabaseTypeSQLite: func(c config.DatabaseConfig) gorm.Dialector {
		return sqlite.Open(SQLiteDSN(c.Path))
	},
	config.DatabaseTypePostgres: func(c config.DatabaseConfig) gorm.Dialector {
		return postgres.Open(c.DSN)
	},
}

// SQLiteDSN appends the connection parameters used for every sqlite file.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?%s", path, sqliteParams)
}

// InitGormDB initializes and returns a GORM database instance
func InitGormDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	open, ok := dialectors[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported database type '%s'", cfg.Type)
	}

	gormLogger := logger.New(
		logging.Component("gorm"),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(open(cfg), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database using GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logging.Component("database").Info().Str("type", cfg.Type).Msg("database: GORM initialized")
	return db, nil
}

// AutoMigrateModels creates or updates every table in dependency order.
func AutoMigrateModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Photographer{},
		&models.Event{},
		&models.InputSession{},
		&models.Photo{},
		&models.ImageFile{},
		&models.DuplicateFile{},
		&models.SessionError{},
		&models.SystemSettings{},
		&models.FileCopyOperation{},
		&models.FileCopySkip{},
	)
	if err != nil {
		return fmt.Errorf("GORM AutoMigrate failed: %w", err)
	}
	logging.Component("database").Info().Msg("database: AutoMigrate completed")
	return nil
}

// SeedDefaults inserts the settings row and the unknown photographer when
// they are missing.
func SeedDefaults(db *gorm.DB) error {
	settings := models.SystemSettings{
		ID:                  1,
		ColdPreviewMaxPx:    models.DefaultColdPreviewMaxPx,
		ColdPreviewQuality:  models.DefaultColdPreviewQuality,
		CopyVerifyAfterCopy: true,
	}
	if err := db.Where(models.SystemSettings{ID: 1}).FirstOrCreate(&settings).Error; err != nil {
		return fmt.Errorf("failed to seed system settings: %w", err)
	}

	var unknown models.Photographer
	err := db.Where("is_unknown = ?", true).First(&unknown).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		unknown = models.Photographer{Name: "Unknown", IsUnknown: true}
		if err := db.Create(&unknown).Error; err != nil {
			return fmt.Errorf("failed to seed unknown photographer: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up unknown photographer: %w", err)
	}
	return nil
}

// Open runs the full startup sequence: connect, migrate and seed.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := InitGormDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrateModels(db); err != nil {
		return nil, err
	}
	if err := SeedDefaults(db); err != nil {
		return nil, err
	}
	return db, nil
}
