package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/camden-git/photocatalog/models"
	"github.com/camden-git/photocatalog/repository"
)

type CreatePhotographerRequest struct {
	Name      string  `json:"name"`
	Website   *string `json:"website,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	Notes     *string `json:"notes,omitempty"`
	IsDefault bool    `json:"is_default"`
}

type PhotographerService struct {
	photographers repository.PhotographerRepositoryInterface
}

func NewPhotographerService(db *gorm.DB) *PhotographerService {
	return &PhotographerService{photographers: repository.NewPhotographerRepository(db)}
}

func (s *PhotographerService) Create(req CreatePhotographerRequest) (*models.Photographer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: photographer name is required", ErrInvalidInput)
	}
	p := &models.Photographer{
		Name:      name,
		Website:   req.Website,
		Bio:       req.Bio,
		Notes:     req.Notes,
		IsDefault: req.IsDefault,
	}
	if err := s.photographers.Create(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PhotographerService) Get(id uuid.UUID) (*models.Photographer, error) {
	p, err := s.photographers.GetByID(id)
	if err != nil {
		return nil, notFound(err, "photographer %s", id)
	}
	return p, nil
}

func (s *PhotographerService) List() ([]models.Photographer, error) {
	return s.photographers.ListAll()
}

// Delete refuses the unknown placeholder and photographers that are still
// credited on photos.
func (s *PhotographerService) Delete(id uuid.UUID) error {
	p, err := s.Get(id)
	if err != nil {
		return err
	}
	if p.IsUnknown {
		return fmt.Errorf("%w: the unknown photographer cannot be deleted", ErrConflict)
	}
	n, err := s.photographers.CountPhotos(id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w (%d photos)", ErrPhotographerInUse, n)
	}
	if err := s.photographers.Delete(id); err != nil {
		return notFound(err, "photographer %s", id)
	}
	return nil
}
