package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SessionStatusPending              = "pending"
	SessionStatusScanning             = "scanning"
	SessionStatusAwaitingConfirmation = "awaiting_confirmation"
	SessionStatusUploading            = "uploading"
	SessionStatusProcessing           = "processing"
	SessionStatusCompleted            = "completed"
	SessionStatusFailed               = "failed"
	SessionStatusCancelled            = "cancelled"
)

var sessionStatusRank = map[string]int{
	SessionStatusPending:              0,
	SessionStatusScanning:             1,
	SessionStatusAwaitingConfirmation: 2,
	SessionStatusUploading:            3,
	SessionStatusProcessing:           3,
	SessionStatusCompleted:            4,
}

// IsTerminalSessionStatus reports whether no further transition is allowed.
func IsTerminalSessionStatus(status string) bool {
	return status == SessionStatusCompleted || status == SessionStatusFailed || status == SessionStatusCancelled
}

// SessionStatusesBefore lists the non-terminal statuses a session may move
// from to reach target. Failed and cancelled are reachable from every
// non-terminal status; everything else only moves forward.
func SessionStatusesBefore(target string) []string {
	if target == SessionStatusFailed || target == SessionStatusCancelled {
		return []string{
			SessionStatusPending, SessionStatusScanning, SessionStatusAwaitingConfirmation,
			SessionStatusUploading, SessionStatusProcessing,
		}
	}
	rank, ok := sessionStatusRank[target]
	if !ok {
		return nil
	}
	var from []string
	for status, r := range sessionStatusRank {
		if r < rank {
			from = append(from, status)
		}
	}
	return from
}

// InputSession is one import run. Counters are only changed through atomic
// increments.
type InputSession struct {
	ID                    uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Name                  *string       `gorm:"" json:"name,omitempty"`
	SourcePath            string        `gorm:"not null" json:"source_path"`
	Recursive             bool          `gorm:"not null;default:true" json:"recursive"`
	DefaultPhotographerID uuid.UUID     `gorm:"type:uuid;not null;index" json:"default_photographer_id"`
	DefaultPhotographer   *Photographer `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	DefaultEventID        *uuid.UUID    `gorm:"type:uuid" json:"default_event_id,omitempty"`
	DefaultEvent          *Event        `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	Status                string        `gorm:"size:30;not null;default:'pending';index" json:"status"`
	PhotoCount            int           `gorm:"not null;default:0" json:"photo_count"`
	DuplicateCount        int           `gorm:"not null;default:0" json:"duplicate_count"`
	ErrorCount            int           `gorm:"not null;default:0" json:"error_count"`
	StartedAt             time.Time     `gorm:"not null" json:"started_at"`
	CompletedAt           *time.Time    `gorm:"" json:"completed_at,omitempty"`
	Notes                 *string       `gorm:"" json:"notes,omitempty"`
}

func (InputSession) TableName() string {
	return "input_sessions"
}

// SessionError is an append-only record of one failed file group.
type SessionError struct {
	ID         uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID  uuid.UUID     `gorm:"type:uuid;not null;index" json:"session_id"`
	Session    *InputSession `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
	FilePath   string        `gorm:"not null" json:"file_path"`
	Error      string        `gorm:"not null" json:"error"`
	OccurredAt time.Time     `gorm:"not null" json:"occurred_at"`
}

func (SessionError) TableName() string {
	return "session_errors"
}
