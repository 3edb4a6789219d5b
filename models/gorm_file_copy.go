package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	CopyStatusPending   = "pending"
	CopyStatusRunning   = "running"
	CopyStatusCompleted = "completed"
	CopyStatusFailed    = "failed"
	CopyStatusCancelled = "cancelled"
)

const (
	SkipReasonAlreadyExists = "already_exists"
	SkipReasonWriteError    = "write_error"
	SkipReasonHashMismatch  = "hash_mismatch"
)

// FileCopyOperation tracks one offload of a memory card or folder into the
// library before registration.
type FileCopyOperation struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	SourcePath      string        `gorm:"not null" json:"source_path"`
	DestinationPath string        `gorm:"not null" json:"destination_path"`
	Status          string        `gorm:"size:20;not null;default:'pending';index" json:"status"`
	VerifyAfterCopy bool          `gorm:"not null" json:"verify_after_copy"`
	IncludeVideos   bool          `gorm:"not null" json:"include_videos"`
	FilesTotal      int           `gorm:"not null;default:0" json:"files_total"`
	FilesCopied     int           `gorm:"not null;default:0" json:"files_copied"`
	FilesSkipped    int           `gorm:"not null;default:0" json:"files_skipped"`
	BytesTotal      int64         `gorm:"not null;default:0" json:"bytes_total"`
	BytesCopied     int64         `gorm:"not null;default:0" json:"bytes_copied"`
	Error           *string       `gorm:"" json:"error,omitempty"`
	InputSessionID  *uuid.UUID    `gorm:"type:uuid" json:"input_session_id,omitempty"`
	InputSession    *InputSession `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	CreatedAt       time.Time     `gorm:"not null" json:"created_at"`
	StartedAt       *time.Time    `gorm:"" json:"started_at,omitempty"`
	CompletedAt     *time.Time    `gorm:"" json:"completed_at,omitempty"`
}

func (FileCopyOperation) TableName() string {
	return "file_copy_operations"
}

type FileCopySkip struct {
	ID          uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	OperationID uuid.UUID          `gorm:"type:uuid;not null;index" json:"operation_id"`
	Operation   *FileCopyOperation `gorm:"foreignKey:OperationID;constraint:OnDelete:CASCADE" json:"-"`
	SourcePath  string             `gorm:"not null" json:"source_path"`
	Reason      string             `gorm:"size:30;not null" json:"reason"`
	Detail      *string            `gorm:"" json:"detail,omitempty"`
	CreatedAt   time.Time          `gorm:"not null" json:"created_at"`
}

func (FileCopySkip) TableName() string {
	return "file_copy_skips"
}
