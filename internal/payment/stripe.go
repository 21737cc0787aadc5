// Package payment talks to Stripe: it creates payment intents for ticket
// purchases and turns verified webhook deliveries into payment signals.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	metaEventID    = "eventId"
	metaUserID     = "userId"
	metaTicketType = "ticketType"

	eventIntentSucceeded = "payment_intent.succeeded"
	eventIntentFailed    = "payment_intent.payment_failed"
)

var (
	ErrBadSignature    = errors.New("payment: webhook signature verification failed")
	ErrMissingMetadata = errors.New("payment: intent metadata incomplete")
)

type SignalKind string

const (
	SignalSucceeded SignalKind = "succeeded"
	SignalFailed    SignalKind = "failed"
)

// Signal is a verified payment outcome for one registration. It is what the
// webhook hands to the queue and what the worker consumes.
type Signal struct {
	Kind       SignalKind `json:"kind"`
	IntentID   string     `json:"intentId"`
	EventID    string     `json:"eventId"`
	UserID     string     `json:"userId"`
	TicketType string     `json:"ticketType"`
}

// IntentRequest describes the ticket a client wants to pay for.
type IntentRequest struct {
	EventID    string
	UserID     string
	TicketType string
	Price      float64
}

type Intent struct {
	ID           string
	ClientSecret string
}

// IntentCreator opens a payment with the processor.
type IntentCreator interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}

type StripeIntents struct {
	client   *paymentintent.Client
	currency string
}

func NewStripeIntents(secretKey, currency string) *StripeIntents {
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &StripeIntents{
		client:   &paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
		currency: strings.ToLower(currency),
	}
}

// MinorUnits converts a ticket price to the integer amount Stripe expects.
func MinorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}

func (s *StripeIntents) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(MinorUnits(req.Price)),
		Currency: stripe.String(s.currency),
	}
	params.Context = ctx
	params.AddMetadata(metaEventID, req.EventID)
	params.AddMetadata(metaUserID, req.UserID)
	params.AddMetadata(metaTicketType, req.TicketType)

	pi, err := s.client.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// Verifier authenticates webhook deliveries with the endpoint secret.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Parse verifies the Stripe-Signature header and extracts a Signal. Event
// types that carry no payment outcome yield a nil Signal and no error.
func (v *Verifier) Parse(payload []byte, sigHeader string) (*Signal, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSignature, err)
	}

	var kind SignalKind
	switch string(event.Type) {
	case eventIntentSucceeded:
		kind = SignalSucceeded
	case eventIntentFailed:
		kind = SignalFailed
	default:
		return nil, nil
	}

	if event.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no data", ErrMissingMetadata, event.ID)
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}

	sig := &Signal{
		Kind:       kind,
		IntentID:   pi.ID,
		EventID:    pi.Metadata[metaEventID],
		UserID:     pi.Metadata[metaUserID],
		TicketType: pi.Metadata[metaTicketType],
	}
	if sig.EventID == "" || sig.UserID == "" || sig.TicketType == "" {
		return nil, fmt.Errorf("%w: intent %s", ErrMissingMetadata, pi.ID)
	}
	return sig, nil
}
