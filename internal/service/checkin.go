package service

import (
	"context"

	"eventhub/internal/ledger"
	"eventhub/internal/model"
	"eventhub/internal/notifier"
)

// CheckIn moves the attendee holding credential from registered to checked
// in. Checked in is terminal: presenting the same credential again fails with
// ErrAlreadyCheckedIn and changes nothing.
func (s *service) CheckIn(ctx context.Context, eventID string, p model.Principal, credential string) (*model.CheckInReceipt, error) {
	wctx, cancel := s.writeContext(ctx)
	defer cancel()

	var receipt model.CheckInReceipt
	updated, err := s.repo.MutateEvent(wctx, eventID, func(e *model.Event) error {
		if !e.IsOrganizer(p.ID) {
			return model.ErrNotAuthorized
		}
		claims, err := s.issuer.Verify(credential)
		if err != nil || claims.EventID != e.ID {
			return model.ErrInvalidCredential
		}
		i, ok := e.FindAttendeeByCredential(credential)
		if !ok {
			return model.ErrInvalidCredential
		}
		a := &e.Attendees[i]
		if a.CheckInStatus {
			return model.ErrAlreadyCheckedIn
		}

		now := s.clock.Now()
		a.CheckInStatus = true
		a.CheckedInAt = &now
		e.UpdatedAt = now

		receipt = model.CheckInReceipt{
			UserID:      a.UserID,
			Name:        displayName(a),
			TicketType:  a.TicketType,
			CheckInTime: now,
		}
		return nil
	})
	if err != nil {
		s.logRejection(err, eventID, p.ID, "check-in rejected")
		return nil, err
	}

	s.log.Info().
		Str("event_id", eventID).
		Str("user_id", receipt.UserID).
		Msg("attendee checked in")

	s.publish(eventID, notifier.NewCheckInUpdate(eventID, updated.CheckedInCount()))
	return &receipt, nil
}

// Stats is a read-only view restricted to the event's organizer.
func (s *service) Stats(ctx context.Context, eventID string, p model.Principal) (*model.Stats, error) {
	e, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !e.IsOrganizer(p.ID) {
		return nil, model.ErrNotAuthorized
	}
	return &model.Stats{
		TotalAttendees: len(e.Attendees),
		CheckedIn:      e.CheckedInCount(),
		TicketSales:    ledger.TicketsSold(e),
		Revenue:        ledger.Revenue(e),
	}, nil
}

func displayName(a *model.Attendee) string {
	if a.Name != "" {
		return a.Name
	}
	return a.UserID
}
