package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/camden-git/photocatalog/scanner"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalidInput  = errors.New("invalid input")
	ErrSessionClosed = errors.New("input session is closed")

	ErrPhotographerInUse = fmt.Errorf("%w: photographer still has photos", ErrConflict)
)

// notFound maps storage-level "missing" errors onto ErrNotFound and wraps
// everything else with the given context.
func notFound(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, scanner.ErrSourceNotFound) {
		return fmt.Errorf("%w: %s: %v", ErrNotFound, msg, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
