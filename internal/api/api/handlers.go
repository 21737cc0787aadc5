package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"eventhub/internal/auth"
	"eventhub/internal/dto"
	"eventhub/internal/model"
	"eventhub/internal/payment"
	"eventhub/internal/service"
	"eventhub/pkg/validator"
)

const signatureHeader = "Stripe-Signature"

// bind decodes and validates the JSON body, writing a 400 on failure.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		dto.FieldBadFormatError(c, "body")
		return false
	}
	if err := validator.Validate(c.Request.Context(), req); err != nil {
		dto.FieldIncorrectError(c, err.Error())
		return false
	}
	return true
}

func principal(c *gin.Context) (model.Principal, bool) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		dto.UnauthenticatedError(c, "Authentication required")
	}
	return p, ok
}

func (r *Routers) listEvents(c *gin.Context) {
	events, err := r.Service.ListEvents(c.Request.Context())
	if err != nil {
		dto.ServiceError(c, err)
		return
	}
	public := make([]*model.Event, 0, len(events))
	for i := range events {
		public = append(public, events[i].Redacted())
	}
	dto.SuccessResponse(c, public)
}

func (r *Routers) getEvent(c *gin.Context) {
	e, err := r.Service.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		dto.ServiceError(c, err)
		return
	}
	dto.SuccessResponse(c, e.Redacted())
}

func (r *Routers) createEvent(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req dto.CreateEventRequest
	if !bind(c, &req) {
		return
	}

	in := service.CreateEventInput{Details: req.Details()}
	for _, t := range req.TicketTypes {
		in.TicketTypes = append(in.TicketTypes, service.TicketTypeInput{Name: t.Name, Price: t.Price, Quantity: t.Quantity})
	}

	e, err := r.Service.CreateEvent(c.Request.Context(), p, in)
	if err != nil {
		dto.ServiceError(c, err)
		return
	}
	dto.SuccessCreatedResponse(c, e)
}

func (r *Routers) updateEvent(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req dto.CreateEventRequest
	if !bind(c, &req) {
		return
	}

	e, err := r.Service.UpdateEvent(c.Request.Context(), p, c.Param("id"), req.Details())
	if err != nil {
		dto.ServiceError(c, err)
		return
	}
	dto.SuccessResponse(c, e.Redacted())
}

func (r *Routers) deleteEvent(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := r.Service.DeleteEvent(c.Request.Context(), p, c.Param("id")); err != nil {
		dto.ServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *Routers) register(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req dto.RegisterRequest
	if !bind(c, &req) {
		return
	}

	reg, err := r.Service.Register(c.Request.Context(), c.Param("id"), p, req.TicketType)
	if err != nil {
		dto.ServiceError(c, err)
		return
	}
	dto.SuccessResponse(c, dto.NewRegistrationResponse(reg))
}

func (r *Routers) checkIn(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req dto.CheckInRequest
	if !bind(c, &req) {
		return
	}

	receipt, err := r.Service.CheckIn(c.Request.Context(), c.Param("eventId"), p, req.QRCode)
	if err != nil {
		dto.ServiceError(c, err)
		return
	}
	dto.SuccessResponse(c, dto.CheckInResponse{Message: "Check-in successful", Attendee: *receipt})
}

func (r *Routers) stats(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	s, err := r.Service.Stats(c.Request.Context(), c.Param("eventId"), p)
	if err != nil {
		dto.ServiceError(c, err)
		return
	}
	dto.SuccessResponse(c, s)
}

func (r *Routers) createPaymentIntent(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req dto.PaymentIntentRequest
	if !bind(c, &req) {
		return
	}

	e, tt, err := r.Service.QuoteTicket(c.Request.Context(), req.EventID, req.TicketType)
	if err != nil {
		dto.ServiceError(c, err)
		return
	}

	intent, err := r.Intents.CreateIntent(c.Request.Context(), payment.IntentRequest{
		EventID:    e.ID,
		UserID:     p.ID,
		TicketType: tt.Name,
		Price:      tt.Price,
	})
	if err != nil {
		r.Log.Error().Err(err).Str("event_id", e.ID).Str("user_id", p.ID).Msg("failed to create payment intent")
		dto.ErrorResponse(c, http.StatusBadGateway, dto.PaymentProviderError, "Payment provider is unavailable")
		return
	}
	dto.SuccessResponse(c, dto.PaymentIntentResponse{ClientSecret: intent.ClientSecret})
}

// paymentWebhook verifies a processor delivery and queues the payment signal.
// The processor redelivers on any non-2xx answer, so a queue outage is
// reported as 503 instead of being swallowed.
func (r *Routers) paymentWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		dto.FieldBadFormatError(c, "body")
		return
	}

	sig, err := r.Webhooks.Parse(body, c.GetHeader(signatureHeader))
	if err != nil {
		if errors.Is(err, payment.ErrBadSignature) {
			r.Log.Warn().Err(err).Msg("rejected webhook with bad signature")
			dto.BadResponseError(c, dto.InvalidSignature, "Webhook signature verification failed")
			return
		}
		r.Log.Warn().Err(err).Bool("reconciliation", true).Msg("webhook carries no usable payment signal")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if sig == nil {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	msg, err := json.Marshal(sig)
	if err != nil {
		dto.InternalServerError(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), r.PublishTimeout)
	defer cancel()
	if err := r.Queue.Publish(ctx, msg); err != nil {
		r.Log.Error().Err(err).Str("intent_id", sig.IntentID).Msg("failed to queue payment signal")
		dto.ErrorResponse(c, http.StatusServiceUnavailable, dto.ServiceUnavailable, dto.InternalError)
		return
	}

	r.Log.Info().Str("intent_id", sig.IntentID).Str("kind", string(sig.Kind)).Msg("payment signal queued")
	c.JSON(http.StatusOK, gin.H{"received": true})
}
