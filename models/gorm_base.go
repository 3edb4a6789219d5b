package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID fills a zero primary key before insert. Callers may preassign IDs.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (p *Photographer) BeforeCreate(*gorm.DB) error      { assignID(&p.ID); return nil }
func (e *Event) BeforeCreate(*gorm.DB) error             { assignID(&e.ID); return nil }
func (p *Photo) BeforeCreate(*gorm.DB) error             { assignID(&p.ID); return nil }
func (f *ImageFile) BeforeCreate(*gorm.DB) error         { assignID(&f.ID); return nil }
func (d *DuplicateFile) BeforeCreate(*gorm.DB) error     { assignID(&d.ID); return nil }
func (s *InputSession) BeforeCreate(*gorm.DB) error      { assignID(&s.ID); return nil }
func (e *SessionError) BeforeCreate(*gorm.DB) error      { assignID(&e.ID); return nil }
func (o *FileCopyOperation) BeforeCreate(*gorm.DB) error { assignID(&o.ID); return nil }
func (s *FileCopySkip) BeforeCreate(*gorm.DB) error      { assignID(&s.ID); return nil }
