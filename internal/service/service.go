package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"eventhub/internal/clock"
	"eventhub/internal/credential"
	"eventhub/internal/mailer"
	"eventhub/internal/model"
	"eventhub/internal/notifier"
	"eventhub/internal/repo"
)

const (
	defaultStoreTimeout   = 5 * time.Second
	defaultPublishTimeout = 2 * time.Second
)

type Service interface {
	CreateEvent(ctx context.Context, p model.Principal, in CreateEventInput) (*model.Event, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	UpdateEvent(ctx context.Context, p model.Principal, id string, d model.EventDetails) (*model.Event, error)
	DeleteEvent(ctx context.Context, p model.Principal, id string) error

	Register(ctx context.Context, eventID string, p model.Principal, ticketType string) (*model.Registration, error)
	QuoteTicket(ctx context.Context, eventID, ticketType string) (*model.Event, model.TicketType, error)

	ConfirmPayment(ctx context.Context, eventID, principalID, ticketType string) (PaymentOutcome, error)
	MarkPaymentFailed(ctx context.Context, eventID, principalID, ticketType string) (PaymentOutcome, error)

	CheckIn(ctx context.Context, eventID string, p model.Principal, credential string) (*model.CheckInReceipt, error)
	Stats(ctx context.Context, eventID string, p model.Principal) (*model.Stats, error)
}

type service struct {
	repo     repo.Repository
	log      *zerolog.Logger
	notifier notifier.Notifier
	issuer   *credential.Issuer
	mailer   mailer.Sender
	clock    clock.Clock

	storeTimeout   time.Duration
	publishTimeout time.Duration
}

type Option func(*service)

func WithClock(c clock.Clock) Option {
	return func(s *service) { s.clock = c }
}

func WithMailer(m mailer.Sender) Option {
	return func(s *service) { s.mailer = m }
}

func WithStoreTimeout(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

func WithPublishTimeout(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

func NewService(repo repo.Repository, logger *zerolog.Logger, n notifier.Notifier, issuer *credential.Issuer, opts ...Option) Service {
	s := &service{
		repo:           repo,
		log:            logger,
		notifier:       n,
		issuer:         issuer,
		clock:          clock.NewSystem(),
		storeTimeout:   defaultStoreTimeout,
		publishTimeout: defaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = notifier.Nop{}
	}
	return s
}

// readContext bounds a store read by the caller's context and the store timeout.
func (s *service) readContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// writeContext detaches a mutation from the caller's cancellation: once
// started, it runs to completion or to the store timeout.
func (s *service) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
}

// publish is fire-and-forget: a failure is logged and never reaches the caller.
func (s *service) publish(eventID string, payload any) {
	ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
	defer cancel()
	if err := s.notifier.Publish(ctx, eventID, payload); err != nil {
		s.log.Warn().Err(err).Str("event_id", eventID).Msg("failed to publish realtime update")
	}
}

func (s *service) sendMail(msg mailer.Message) {
	if s.mailer == nil || msg.To == "" {
		return
	}
	go func() {
		if err := s.mailer.Send(msg); err != nil {
			s.log.Warn().Err(err).Str("kind", string(msg.Kind)).Msg("failed to send notification on e-mail")
		}
	}()
}
