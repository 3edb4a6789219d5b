// Package logging wires the process-wide zerolog logger: a console writer on
// stderr plus an optional lumberjack-rotated file.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/camden-git/photocatalog/config"
)

var (
	logger   = zerolog.New(os.Stderr).With().Timestamp().Logger()
	initOnce sync.Once
)

// Init configures the global logger. Later calls are no-ops.
func Init(cfg config.LogConfig) {
	initOnce.Do(func() {
		logger = build(cfg)
		log.Logger = logger
	})
}

func build(cfg config.LogConfig) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	writers := []io.Writer{
		zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
			w.TimeFormat = time.Kitchen
		}),
	}

	if cfg.EnableFile {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
	}

	l := zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()
	if lvl <= zerolog.DebugLevel {
		l = l.With().Caller().Logger()
	}
	return l
}

// Logger returns the global logger.
func Logger() *zerolog.Logger {
	return &logger
}

// Component returns a child logger tagged with the component name.
func Component(name string) *zerolog.Logger {
	l := log.Logger.With().Str("component", name).Logger()
	return &l
}
