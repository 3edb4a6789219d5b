package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/camden-git/photocatalog/media"
)

const (
	TakenAtSourceExif         = 0
	TakenAtSourceUserAdjusted = 1
	TakenAtSourceUserSet      = 2

	LocationSourceExif = 0
	LocationSourceUser = 1
)

// Photo is the logical photograph. Its identity is Hothash, the SHA-256 of
// the canonical 150x150 hot preview, so RAW+JPEG pairs and re-imports of the
// same content collapse onto one row.
type Photo struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Hothash    string    `gorm:"size:64;not null;uniqueIndex" json:"hothash"`
	HotPreview []byte    `gorm:"" json:"-"`

	TakenAt         *time.Time `gorm:"index" json:"taken_at,omitempty"`
	TakenAtSource   int        `gorm:"not null;default:0" json:"taken_at_source"`
	TakenAtAccuracy string     `gorm:"not null;default:'second'" json:"taken_at_accuracy"`

	LocationLat      *float64 `gorm:"" json:"location_lat,omitempty"`
	LocationLng      *float64 `gorm:"" json:"location_lng,omitempty"`
	LocationSource   *int     `gorm:"" json:"location_source,omitempty"`
	LocationAccuracy *string  `gorm:"" json:"location_accuracy,omitempty"`

	CameraMake   *string  `gorm:"" json:"camera_make,omitempty"`
	CameraModel  *string  `gorm:"" json:"camera_model,omitempty"`
	LensModel    *string  `gorm:"" json:"lens_model,omitempty"`
	ISO          *int     `gorm:"" json:"iso,omitempty"`
	ShutterSpeed *string  `gorm:"" json:"shutter_speed,omitempty"`
	Aperture     *float64 `gorm:"" json:"aperture,omitempty"`
	FocalLength  *float64 `gorm:"" json:"focal_length,omitempty"`

	Tags       datatypes.JSONSlice[string] `gorm:"" json:"tags"`
	Rating     *int                        `gorm:"" json:"rating,omitempty"`
	CategoryID *uuid.UUID                  `gorm:"type:uuid" json:"category_id,omitempty"`

	PhotographerID uuid.UUID     `gorm:"type:uuid;not null;index" json:"photographer_id"`
	Photographer   *Photographer `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	EventID        *uuid.UUID    `gorm:"type:uuid;index" json:"event_id,omitempty"`
	Event          *Event        `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	InputSessionID *uuid.UUID    `gorm:"type:uuid;index" json:"input_session_id,omitempty"`
	InputSession   *InputSession `gorm:"constraint:OnDelete:SET NULL" json:"-"`

	StackID      *uuid.UUID `gorm:"type:uuid;index" json:"stack_id,omitempty"`
	IsStackCover bool       `gorm:"not null;default:false" json:"is_stack_cover"`

	Width  *int `gorm:"" json:"width,omitempty"`
	Height *int `gorm:"" json:"height,omitempty"`

	// 64-bit perceptual hashes, stored bit-for-bit as signed integers
	DCTPerceptualHash *int64 `gorm:"column:dct_perceptual_hash" json:"dct_perceptual_hash,omitempty"`
	DifferenceHash    *int64 `gorm:"" json:"difference_hash,omitempty"`

	RegisteredAt time.Time      `gorm:"not null" json:"registered_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	ImageFiles []ImageFile `gorm:"constraint:OnDelete:CASCADE" json:"image_files,omitempty"`
}

func (Photo) TableName() string {
	return "photos"
}

// ImageFile is one physical file backing a Photo. Exactly one ImageFile per
// Photo has IsMaster set.
type ImageFile struct {
	ID              uuid.UUID                         `gorm:"type:uuid;primaryKey" json:"id"`
	PhotoID         uuid.UUID                         `gorm:"type:uuid;not null;index" json:"photo_id"`
	FilePath        string                            `gorm:"not null;uniqueIndex" json:"file_path"`
	FileType        string                            `gorm:"size:10;not null" json:"file_type"`
	IsMaster        bool                              `gorm:"not null;default:false" json:"is_master"`
	FileSizeBytes   *int64                            `gorm:"" json:"file_size_bytes,omitempty"`
	FileContentHash *string                           `gorm:"size:64" json:"file_content_hash,omitempty"`
	Width           *int                              `gorm:"" json:"width,omitempty"`
	Height          *int                              `gorm:"" json:"height,omitempty"`
	Metadata        datatypes.JSONType[media.Metadata] `gorm:"" json:"exif_data"`
	LastVerifiedAt  *time.Time                        `gorm:"" json:"last_verified_at,omitempty"`
}

func (ImageFile) TableName() string {
	return "image_files"
}

// DuplicateFile records a path whose content matched an existing Photo.
type DuplicateFile struct {
	ID         uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	FilePath   string        `gorm:"not null;uniqueIndex" json:"file_path"`
	PhotoID    uuid.UUID     `gorm:"type:uuid;not null;index" json:"photo_id"`
	Photo      *Photo        `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	SessionID  uuid.UUID     `gorm:"type:uuid;not null;index" json:"session_id"`
	Session    *InputSession `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
	DetectedAt time.Time     `gorm:"not null" json:"detected_at"`
}

func (DuplicateFile) TableName() string {
	return "duplicate_files"
}
