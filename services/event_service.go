package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/camden-git/photocatalog/models"
	"github.com/camden-git/photocatalog/repository"
)

type CreateEventRequest struct {
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
	Location    *string    `json:"location,omitempty"`
}

type EventService struct {
	events repository.EventRepositoryInterface
}

func NewEventService(db *gorm.DB) *EventService {
	return &EventService{events: repository.NewEventRepository(db)}
}

func (s *EventService) Create(req CreateEventRequest) (*models.Event, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: event name is required", ErrInvalidInput)
	}
	e := &models.Event{
		Name:        name,
		Description: req.Description,
		Date:        req.Date,
		Location:    req.Location,
	}
	if err := s.events.Create(e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *EventService) Get(id uuid.UUID) (*models.Event, error) {
	e, err := s.events.GetByID(id)
	if err != nil {
		return nil, notFound(err, "event %s", id)
	}
	return e, nil
}

func (s *EventService) List() ([]models.Event, error) {
	return s.events.ListAll()
}

func (s *EventService) Delete(id uuid.UUID) error {
	if err := s.events.Delete(id); err != nil {
		return notFound(err, "event %s", id)
	}
	return nil
}
