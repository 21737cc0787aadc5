package service

import (
	"context"
	"errors"

	"eventhub/internal/mailer"
	"eventhub/internal/model"
)

type PaymentOutcome int

const (
	// PaymentApplied means the status changed and was persisted.
	PaymentApplied PaymentOutcome = iota
	// PaymentAlreadyApplied means the registration already had the target status.
	PaymentAlreadyApplied
	// PaymentUnmatched means no registration matched the signal. It is a
	// reconciliation condition, not a failure.
	PaymentUnmatched
	// PaymentIgnored means the registration exists but its status does not
	// allow the transition (for example a refunded ticket).
	PaymentIgnored
)

func (o PaymentOutcome) String() string {
	switch o {
	case PaymentApplied:
		return "applied"
	case PaymentAlreadyApplied:
		return "already_applied"
	case PaymentUnmatched:
		return "unmatched"
	case PaymentIgnored:
		return "ignored"
	}
	return "unknown"
}

var (
	errNoChange   = errors.New("payment status unchanged")
	errNotAllowed = errors.New("payment transition not allowed")
)

// ConfirmPayment marks the registration of principalID for ticketType as
// paid. The payment processor may deliver the same signal more than once, so
// a registration that is already completed is reported as success and left
// untouched. Only store failures are returned as errors.
func (s *service) ConfirmPayment(ctx context.Context, eventID, principalID, ticketType string) (PaymentOutcome, error) {
	outcome, attendee, title, err := s.transitionPayment(ctx, eventID, principalID, ticketType, model.PaymentCompleted)
	if err != nil || outcome != PaymentApplied {
		return outcome, err
	}

	s.log.Info().
		Str("event_id", eventID).
		Str("user_id", principalID).
		Msg("payment confirmed")
	s.sendMail(mailer.Message{
		Kind:       mailer.KindPaymentConfirmed,
		To:         attendee.Email,
		EventTitle: title,
		TicketType: attendee.TicketType,
	})
	return outcome, nil
}

// MarkPaymentFailed records a failed payment attempt. Only a pending
// registration moves to failed; anything else is left as it is.
func (s *service) MarkPaymentFailed(ctx context.Context, eventID, principalID, ticketType string) (PaymentOutcome, error) {
	outcome, _, _, err := s.transitionPayment(ctx, eventID, principalID, ticketType, model.PaymentFailed)
	if err == nil && outcome == PaymentApplied {
		s.log.Info().Str("event_id", eventID).Str("user_id", principalID).Msg("payment failed")
	}
	return outcome, err
}

func (s *service) transitionPayment(ctx context.Context, eventID, principalID, ticketType string, target model.PaymentStatus) (PaymentOutcome, model.Attendee, string, error) {
	wctx, cancel := s.writeContext(ctx)
	defer cancel()

	var attendee model.Attendee
	var current model.PaymentStatus
	updated, err := s.repo.MutateEvent(wctx, eventID, func(e *model.Event) error {
		i, ok := findPaidRegistration(e, principalID, ticketType)
		if !ok {
			return model.ErrRegistrationNotFound
		}
		a := &e.Attendees[i]
		current = a.PaymentStatus
		attendee = *a
		if current == target {
			return errNoChange
		}
		if !current.CanTransitionTo(target) {
			return errNotAllowed
		}
		a.PaymentStatus = target
		e.UpdatedAt = s.clock.Now()
		attendee = *a
		return nil
	})

	switch {
	case err == nil:
		return PaymentApplied, attendee, updated.Title, nil
	case errors.Is(err, errNoChange):
		s.log.Debug().Str("event_id", eventID).Str("user_id", principalID).Str("status", string(target)).Msg("duplicate payment signal, nothing to do")
		return PaymentAlreadyApplied, attendee, "", nil
	case errors.Is(err, errNotAllowed):
		s.reconciliationWarning(eventID, principalID, ticketType, "payment signal conflicts with registration status", current)
		return PaymentIgnored, attendee, "", nil
	case errors.Is(err, model.ErrRegistrationNotFound), errors.Is(err, model.ErrEventNotFound):
		s.reconciliationWarning(eventID, principalID, ticketType, "payment signal does not match any registration", "")
		return PaymentUnmatched, attendee, "", nil
	}

	s.log.Error().Err(err).Str("event_id", eventID).Str("user_id", principalID).Msg("failed to update payment status")
	return 0, attendee, "", err
}

func findPaidRegistration(e *model.Event, principalID, ticketType string) (int, bool) {
	for i := range e.Attendees {
		if e.Attendees[i].UserID == principalID && e.Attendees[i].TicketType == ticketType {
			return i, true
		}
	}
	return -1, false
}

func (s *service) reconciliationWarning(eventID, principalID, ticketType, msg string, status model.PaymentStatus) {
	ev := s.log.Warn().
		Bool("reconciliation", true).
		Str("event_id", eventID).
		Str("user_id", principalID).
		Str("ticket_type", ticketType)
	if status != "" {
		ev = ev.Str("status", string(status))
	}
	ev.Msg(msg)
}
