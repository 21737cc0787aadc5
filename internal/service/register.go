package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"eventhub/internal/ledger"
	"eventhub/internal/mailer"
	"eventhub/internal/model"
	"eventhub/internal/notifier"
)

// Register books one ticket of ticketType for p. The duplicate check, the
// ledger reservation and the attendee append happen inside one MutateEvent
// call, so concurrent registrations can neither oversell nor double-register.
// A request that loses the race fails; it is never retried here.
func (s *service) Register(ctx context.Context, eventID string, p model.Principal, ticketType string) (*model.Registration, error) {
	if p.ID == "" {
		return nil, model.ErrNotAuthorized
	}

	wctx, cancel := s.writeContext(ctx)
	defer cancel()

	var reg model.Registration
	updated, err := s.repo.MutateEvent(wctx, eventID, func(e *model.Event) error {
		if _, ok := e.FindAttendeeByUser(p.ID); ok {
			return model.ErrDuplicateRegistration
		}
		if _, err := ledger.Lookup(e, ticketType); err != nil {
			return model.ErrInvalidTicketType
		}
		if err := ledger.Reserve(e, ticketType); err != nil {
			if errors.Is(err, ledger.ErrSoldOut) {
				return model.ErrTicketsSoldOut
			}
			return model.ErrInvalidTicketType
		}

		now := s.clock.Now()
		qr, err := s.issuer.Issue(e.ID, p.ID, now)
		if err != nil {
			return fmt.Errorf("issue credential: %w", err)
		}

		e.Attendees = append(e.Attendees, model.Attendee{
			UserID:        p.ID,
			Name:          p.Name,
			Email:         p.Email,
			TicketType:    ticketType,
			PaymentStatus: model.PaymentPending,
			QRCode:        qr,
			RegisteredAt:  now,
		})
		e.UpdatedAt = now

		reg = model.Registration{
			EventID:    e.ID,
			Event:      e.Title,
			TicketType: ticketType,
			Credential: qr,
			CreatedAt:  now,
		}
		return nil
	})
	if err != nil {
		s.logRejection(err, eventID, p.ID, "registration rejected")
		return nil, err
	}

	s.log.Info().
		Str("event_id", eventID).
		Str("user_id", p.ID).
		Str("ticket_type", ticketType).
		Msg("registration created successfully")

	s.publish(eventID, notifier.NewAttendeeUpdate(eventID, len(updated.Attendees), ledger.TicketsSold(updated)))
	s.sendMail(mailer.Message{
		Kind:       mailer.KindTicketIssued,
		To:         p.Email,
		EventTitle: updated.Title,
		TicketType: ticketType,
		Credential: reg.Credential,
	})

	return &reg, nil
}

func (s *service) logRejection(err error, eventID, userID, msg string) {
	kind := model.KindOf(err)
	level := zerolog.InfoLevel
	if kind == model.KindTransient || kind == model.KindInternal {
		level = zerolog.ErrorLevel
	}
	s.log.WithLevel(level).Err(err).Str("event_id", eventID).Str("user_id", userID).Str("kind", kind.String()).Msg(msg)
}
