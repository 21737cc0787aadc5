package consumerWorker

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"eventhub/internal/model"
	"eventhub/internal/payment"
	"eventhub/internal/rabbit"
	"eventhub/internal/service"
)

// PaymentApplier is the part of the service the worker drives.
type PaymentApplier interface {
	ConfirmPayment(ctx context.Context, eventID, principalID, ticketType string) (service.PaymentOutcome, error)
	MarkPaymentFailed(ctx context.Context, eventID, principalID, ticketType string) (service.PaymentOutcome, error)
}

// Reader applies payment signals from the queue. Delivery is at-least-once;
// the service transitions are idempotent so redelivery is harmless.
type Reader struct {
	RMQ      rabbit.Consumer
	payments PaymentApplier
	log      *zerolog.Logger
	ctx      context.Context
	done     chan struct{}
	cancel   context.CancelFunc
}

func NewReader(rmq rabbit.Consumer, payments PaymentApplier, log *zerolog.Logger) *Reader {
	return &Reader{
		RMQ:      rmq,
		payments: payments,
		log:      log,
		ctx:      context.Background(),
		done:     make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.ctx = cctx

	r.log.Info().Msg("payment signal reader started")

	go func() {
		defer close(r.done)

		if err := r.RMQ.Consume(r.HandleMessage); err != nil {
			r.log.Error().Err(err).Msg("Failed to start consuming")
			return
		}

		<-cctx.Done()
		r.log.Info().Msg("payment signal reader stopped by context")
	}()
}

// HandleMessage applies one payment signal. It returns an error only when the
// message should be redelivered, which is the case for store outages.
func (r *Reader) HandleMessage(body []byte) error {
	var sig payment.Signal
	if err := json.Unmarshal(body, &sig); err != nil {
		r.log.Error().
			Err(err).
			Msgf("Failed to unmarshal message: %s", string(body))
		return nil
	}

	r.log.Info().
		Str("intent_id", sig.IntentID).
		Str("event_id", sig.EventID).
		Str("user_id", sig.UserID).
		Str("kind", string(sig.Kind)).
		Msg("payment signal received")

	var (
		outcome service.PaymentOutcome
		err     error
	)
	switch sig.Kind {
	case payment.SignalSucceeded:
		outcome, err = r.payments.ConfirmPayment(r.ctx, sig.EventID, sig.UserID, sig.TicketType)
	case payment.SignalFailed:
		outcome, err = r.payments.MarkPaymentFailed(r.ctx, sig.EventID, sig.UserID, sig.TicketType)
	default:
		r.log.Warn().Str("kind", string(sig.Kind)).Msg("unknown payment signal kind, dropping")
		return nil
	}

	if err != nil {
		if model.KindOf(err) == model.KindTransient {
			return err
		}
		r.log.Error().Err(err).Str("intent_id", sig.IntentID).Msg("payment signal rejected, dropping")
		return nil
	}

	r.log.Info().
		Str("intent_id", sig.IntentID).
		Str("outcome", outcome.String()).
		Msg("payment signal applied")
	return nil
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
