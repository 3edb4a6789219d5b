package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	DefaultColdPreviewsSubDir = "coldpreviews"
	DefaultUploadsSubDir      = "uploads"
)

const (
	DatabaseTypeSQLite   = "sqlite"
	DatabaseTypePostgres = "postgres"
)

const (
	defaultRegistrationQueueSize = 200
	defaultRegistrationWorkers   = 4
	defaultServerPort            = 8080
	defaultLogMaxSizeMB          = 100
	defaultLogMaxBackups         = 7
	defaultLogMaxAgeDays         = 28
)

type DatabaseConfig struct {
	Type string // sqlite or postgres
	Path string // sqlite file
	DSN  string // postgres connection string
}

type LogConfig struct {
	Level      string
	EnableFile bool
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type ServerConfig struct {
	Port        int
	CORSOrigins []string
}

type Config struct {
	// default directory offered for imports when a session has no source path
	RootDirectory string

	Database DatabaseConfig

	// media storage configuration
	MediaStoragePath string // primary root for generated assets
	ColdPreviewsPath string // full-calculated path for cold previews
	UploadsPath      string // staging area for uploaded masters

	ColdPreviewsSubDir string
	UploadsSubDir      string

	// worker settings
	RegistrationQueueSize int
	RegistrationWorkers   int

	Server ServerConfig
	Log    LogConfig

	MetricsEnabled bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("root_directory", ".")

	v.SetDefault("database.type", DatabaseTypeSQLite)
	v.SetDefault("database.path", "photocatalog.db")
	v.SetDefault("database.dsn", "")

	v.SetDefault("media_storage_path", filepath.Join(".", "media_storage"))
	v.SetDefault("coldpreviews_subdir", DefaultColdPreviewsSubDir)
	v.SetDefault("uploads_subdir", DefaultUploadsSubDir)

	v.SetDefault("registration.queue_size", defaultRegistrationQueueSize)
	v.SetDefault("registration.workers", defaultRegistrationWorkers)

	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.enable_file", false)
	v.SetDefault("log.file_path", "logs/photocatalog.log")
	v.SetDefault("log.max_size_mb", defaultLogMaxSizeMB)
	v.SetDefault("log.max_backups", defaultLogMaxBackups)
	v.SetDefault("log.max_age_days", defaultLogMaxAgeDays)
	v.SetDefault("log.compress", true)

	v.SetDefault("metrics.enabled", true)
}

func positiveIntOrDefault(v *viper.Viper, key string, defaultVal int) int {
	val := v.GetInt(key)
	if val <= 0 {
		log.Warn().Str("key", key).Str("value", v.GetString(key)).Int("default", defaultVal).
			Msg("config: invalid value, using default")
		return defaultVal
	}
	return val
}

// LoadConfig reads .env (if present) and PHOTOCAT_* environment variables.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("config: no .env file loaded")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("PHOTOCAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	root := v.GetString("root_directory")
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for root directory '%s': %w", root, err)
	}

	mediaStorage := v.GetString("media_storage_path")
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}

	dbType := strings.ToLower(v.GetString("database.type"))
	if dbType != DatabaseTypeSQLite && dbType != DatabaseTypePostgres {
		return Config{}, fmt.Errorf("unsupported database type '%s'", dbType)
	}
	if dbType == DatabaseTypePostgres && v.GetString("database.dsn") == "" {
		return Config{}, fmt.Errorf("database.dsn is required for postgres")
	}

	coldSubDir := v.GetString("coldpreviews_subdir")
	uploadsSubDir := v.GetString("uploads_subdir")

	origins := v.GetStringSlice("server.cors_origins")
	if len(origins) == 1 && strings.Contains(origins[0], ",") {
		origins = strings.Split(origins[0], ",")
	}

	cfg := Config{
		RootDirectory: absRoot,
		Database: DatabaseConfig{
			Type: dbType,
			Path: v.GetString("database.path"),
			DSN:  v.GetString("database.dsn"),
		},
		MediaStoragePath:      absMediaStorage,
		ColdPreviewsPath:      filepath.Join(absMediaStorage, coldSubDir),
		UploadsPath:           filepath.Join(absMediaStorage, uploadsSubDir),
		ColdPreviewsSubDir:    coldSubDir,
		UploadsSubDir:         uploadsSubDir,
		RegistrationQueueSize: positiveIntOrDefault(v, "registration.queue_size", defaultRegistrationQueueSize),
		RegistrationWorkers:   positiveIntOrDefault(v, "registration.workers", defaultRegistrationWorkers),
		Server: ServerConfig{
			Port:        positiveIntOrDefault(v, "server.port", defaultServerPort),
			CORSOrigins: origins,
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			EnableFile: v.GetBool("log.enable_file"),
			FilePath:   v.GetString("log.file_path"),
			MaxSizeMB:  positiveIntOrDefault(v, "log.max_size_mb", defaultLogMaxSizeMB),
			MaxBackups: positiveIntOrDefault(v, "log.max_backups", defaultLogMaxBackups),
			MaxAgeDays: positiveIntOrDefault(v, "log.max_age_days", defaultLogMaxAgeDays),
			Compress:   v.GetBool("log.compress"),
		},
		MetricsEnabled: v.GetBool("metrics.enabled"),
	}

	return cfg, nil
}
