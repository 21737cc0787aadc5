package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"eventhub/internal/ledger"
	"eventhub/internal/model"
)

type TicketTypeInput struct {
	Name     string
	Price    float64
	Quantity int
}

type CreateEventInput struct {
	Details     model.EventDetails
	TicketTypes []TicketTypeInput
}

func validateTicketTypes(in []TicketTypeInput) error {
	if len(in) == 0 {
		return fmt.Errorf("%w: at least one ticket type is required", model.ErrValidation)
	}
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return fmt.Errorf("%w: ticket type name is required", model.ErrValidation)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate ticket type %q", model.ErrValidation, name)
		}
		seen[name] = struct{}{}
		if t.Price < 0 {
			return fmt.Errorf("%w: ticket type %q has negative price", model.ErrValidation, name)
		}
		if t.Quantity <= 0 {
			return fmt.Errorf("%w: ticket type %q must have positive quantity", model.ErrValidation, name)
		}
	}
	return nil
}

func (s *service) CreateEvent(ctx context.Context, p model.Principal, in CreateEventInput) (*model.Event, error) {
	if p.ID == "" {
		return nil, model.ErrNotAuthorized
	}
	if err := validateTicketTypes(in.TicketTypes); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	e := &model.Event{
		ID:        uuid.NewString(),
		Organizer: model.Organizer{ID: p.ID, Name: p.Name, Email: p.Email},
		Attendees: []model.Attendee{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	e.ApplyDetails(in.Details)
	for _, t := range in.TicketTypes {
		e.TicketTypes = append(e.TicketTypes, model.TicketType{
			Name:     strings.TrimSpace(t.Name),
			Price:    t.Price,
			Quantity: t.Quantity,
		})
	}

	wctx, cancel := s.writeContext(ctx)
	defer cancel()
	if err := s.repo.CreateEvent(wctx, e); err != nil {
		s.log.Error().Err(err).Msg("failed to create event in DB")
		return nil, err
	}

	s.log.Info().Str("event_id", e.ID).Str("organizer_id", p.ID).Msg("event created successfully")
	return e, nil
}

func (s *service) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	rctx, cancel := s.readContext(ctx)
	defer cancel()
	return s.repo.GetEventByID(rctx, id)
}

func (s *service) ListEvents(ctx context.Context) ([]model.Event, error) {
	rctx, cancel := s.readContext(ctx)
	defer cancel()
	return s.repo.GetAllEvents(rctx)
}

// UpdateEvent replaces the descriptive fields. The organizer, ticket types and
// attendees are not editable here.
func (s *service) UpdateEvent(ctx context.Context, p model.Principal, id string, d model.EventDetails) (*model.Event, error) {
	wctx, cancel := s.writeContext(ctx)
	defer cancel()

	updated, err := s.repo.MutateEvent(wctx, id, func(e *model.Event) error {
		if !e.IsOrganizer(p.ID) {
			return model.ErrNotAuthorized
		}
		e.ApplyDetails(d)
		e.UpdatedAt = s.clock.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("event_id", id).Msg("event updated")
	return updated, nil
}

func (s *service) DeleteEvent(ctx context.Context, p model.Principal, id string) error {
	e, err := s.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	// the organizer never changes after creation, so this check cannot go stale
	if !e.IsOrganizer(p.ID) {
		return model.ErrNotAuthorized
	}

	wctx, cancel := s.writeContext(ctx)
	defer cancel()
	if err := s.repo.DeleteEvent(wctx, id); err != nil {
		return err
	}

	s.log.Info().Str("event_id", id).Msg("event deleted")
	return nil
}

// QuoteTicket returns the event and the priced ticket type a payment is being
// prepared for.
func (s *service) QuoteTicket(ctx context.Context, eventID, ticketType string) (*model.Event, model.TicketType, error) {
	e, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, model.TicketType{}, err
	}
	t, err := ledger.Lookup(e, ticketType)
	if err != nil {
		return nil, model.TicketType{}, model.ErrInvalidTicketType
	}
	return e, t, nil
}
