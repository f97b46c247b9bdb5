// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gandalf-events/ledger/internal/model"
	"github.com/gandalf-events/ledger/internal/money"
	"github.com/gandalf-events/ledger/internal/repository"
)

// EventService orchestrates event and access-level operations.
type EventService struct {
	events       repository.EventStore
	accessLevels repository.AccessLevelStore
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(
	events repository.EventStore,
	accessLevels repository.AccessLevelStore,
) *EventService {
	return &EventService{events: events, accessLevels: accessLevels}
}

// CreateEvent validates the request and delegates to the store.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		var verr model.ValidationError
		verr.Add("name", "is required")
		return nil, &verr
	}
	event := &model.Event{Name: req.Name}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

// ListEvents returns all events.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.events.List(ctx)
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, repository.ErrNotFound
	}
	return s.events.GetByID(ctx, id)
}

// CreateAccessLevel validates and creates a tier under an event. The price
// arrives as a decimal string and is stored in minor units.
func (s *EventService) CreateAccessLevel(ctx context.Context, eventID string, req model.CreateAccessLevelRequest) (*model.AccessLevel, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}

	var verr model.ValidationError
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		verr.Add("name", "is required")
	}
	if req.Capacity != nil && *req.Capacity < 0 {
		verr.Add("capacity", "must not be negative")
	}
	price, err := money.ToCents(req.Price)
	if err != nil {
		verr.Add("price", "is not a valid amount")
	} else if price < 0 {
		verr.Add("price", "must not be negative")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	al := &model.AccessLevel{
		EventID:       eventID,
		Name:          req.Name,
		Capacity:      req.Capacity,
		Price:         price,
		Public:        req.Public,
		Hidden:        req.Hidden,
		RequiresLogin: req.RequiresLogin,
		HasComment:    req.HasComment,
	}
	if err := s.accessLevels.Create(ctx, al); err != nil {
		return nil, fmt.Errorf("create access level: %w", err)
	}
	return al, nil
}

// GetAccessLevel returns a tier scoped to its event.
func (s *EventService) GetAccessLevel(ctx context.Context, eventID, id string) (*model.AccessLevel, error) {
	al, err := s.accessLevels.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if al.EventID != eventID {
		return nil, repository.ErrNotFound
	}
	return al, nil
}

// ListAccessLevels returns all tiers for an event.
func (s *EventService) ListAccessLevels(ctx context.Context, eventID string) ([]model.AccessLevel, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.accessLevels.ListByEvent(ctx, eventID)
}

// UpdateAccessLevel applies partial tier changes.
func (s *EventService) UpdateAccessLevel(ctx context.Context, eventID, id string, req model.UpdateAccessLevelRequest) (*model.AccessLevel, error) {
	al, err := s.GetAccessLevel(ctx, eventID, id)
	if err != nil {
		return nil, err
	}

	var verr model.ValidationError
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			verr.Add("name", "is required")
		}
		al.Name = name
	}
	if req.ClearCapacity {
		al.Capacity = nil
	} else if req.Capacity != nil {
		if *req.Capacity < 0 {
			verr.Add("capacity", "must not be negative")
		}
		al.Capacity = req.Capacity
	}
	if req.Price != nil {
		price, err := money.ToCents(*req.Price)
		if err != nil {
			verr.Add("price", "is not a valid amount")
		} else if price < 0 {
			verr.Add("price", "must not be negative")
		} else {
			al.Price = price
		}
	}
	if req.Public != nil {
		al.Public = *req.Public
	}
	if req.Hidden != nil {
		al.Hidden = *req.Hidden
	}
	if req.RequiresLogin != nil {
		al.RequiresLogin = *req.RequiresLogin
	}
	if req.HasComment != nil {
		al.HasComment = *req.HasComment
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := s.accessLevels.Update(ctx, al); err != nil {
		return nil, fmt.Errorf("update access level: %w", err)
	}
	return al, nil
}

// ToggleVisibility flips the tier's hidden flag.
func (s *EventService) ToggleVisibility(ctx context.Context, eventID, id string) (*model.AccessLevel, error) {
	al, err := s.GetAccessLevel(ctx, eventID, id)
	if err != nil {
		return nil, err
	}
	al.Hidden = !al.Hidden
	if err := s.accessLevels.Update(ctx, al); err != nil {
		return nil, fmt.Errorf("toggle visibility: %w", err)
	}
	return al, nil
}

// DeleteAccessLevel removes a tier that has no registrations.
func (s *EventService) DeleteAccessLevel(ctx context.Context, eventID, id string) error {
	if _, err := s.GetAccessLevel(ctx, eventID, id); err != nil {
		return err
	}
	err := s.accessLevels.Delete(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, repository.ErrTierInUse) {
		return fmt.Errorf("delete access level: %w", err)
	}
	return err
}
