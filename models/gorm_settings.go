package models

const (
	DefaultColdPreviewMaxPx   = 1200
	DefaultColdPreviewQuality = 85
)

// SystemSettings is a single-row table. ID is always 1.
type SystemSettings struct {
	ID                  uint `gorm:"primaryKey" json:"-"`
	ColdPreviewMaxPx    int  `gorm:"not null;default:1200" json:"coldpreview_max_px"`
	ColdPreviewQuality  int  `gorm:"not null;default:85" json:"coldpreview_quality"`
	CopyVerifyAfterCopy bool `gorm:"not null;default:true" json:"copy_verify_after_copy"`
	CopyIncludeVideos   bool `gorm:"not null;default:false" json:"copy_include_videos"`
}

func (SystemSettings) TableName() string {
	return "system_settings"
}

// SettingsSnapshot is the value handed to registration and copy runs so a
// settings change never affects a run already in progress.
type SettingsSnapshot struct {
	ColdPreviewMaxPx    int
	ColdPreviewQuality  int
	CopyVerifyAfterCopy bool
	CopyIncludeVideos   bool
}

// DefaultSettingsSnapshot is used when the settings row is missing.
func DefaultSettingsSnapshot() SettingsSnapshot {
	return SettingsSnapshot{
		ColdPreviewMaxPx:    DefaultColdPreviewMaxPx,
		ColdPreviewQuality:  DefaultColdPreviewQuality,
		CopyVerifyAfterCopy: true,
	}
}

func (s SystemSettings) Snapshot() SettingsSnapshot {
	return SettingsSnapshot{
		ColdPreviewMaxPx:    s.ColdPreviewMaxPx,
		ColdPreviewQuality:  s.ColdPreviewQuality,
		CopyVerifyAfterCopy: s.CopyVerifyAfterCopy,
		CopyIncludeVideos:   s.CopyIncludeVideos,
	}.Sanitized()
}

// Sanitized replaces out-of-range preview settings with the defaults.
func (s SettingsSnapshot) Sanitized() SettingsSnapshot {
	if s.ColdPreviewMaxPx <= 0 {
		s.ColdPreviewMaxPx = DefaultColdPreviewMaxPx
	}
	if s.ColdPreviewQuality <= 0 || s.ColdPreviewQuality > 100 {
		s.ColdPreviewQuality = DefaultColdPreviewQuality
	}
	return s
}
