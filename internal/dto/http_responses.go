package dto

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"eventhub/internal/model"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	EventNotFound         = "EVENT_NOT_FOUND"
	InvalidTicketType     = "INVALID_TICKET_TYPE"
	TicketsSoldOut        = "TICKETS_SOLD_OUT"
	RegistrationDuplicate = "REGISTRATION_DUPLICATE"
	NotAuthorized         = "NOT_AUTHORIZED"
	InvalidQRCode         = "INVALID_QR_CODE"
	AlreadyCheckedIn      = "ALREADY_CHECKED_IN"
	Unauthenticated       = "UNAUTHENTICATED"
	InvalidSignature      = "INVALID_SIGNATURE"
	PaymentProviderError  = "PAYMENT_PROVIDER_ERROR"
)

type TicketTypeRequest struct {
	Name     string  `json:"name" validate:"ticketname"`
	Price    float64 `json:"price" validate:"gte=0"`
	Quantity int     `json:"quantity" validate:"positive"`
}

type AgendaItemRequest struct {
	Time     string `json:"time"`
	Activity string `json:"activity"`
}

// CreateEventRequest is the body of POST and PUT /events. Ticket types are
// ignored on PUT.
type CreateEventRequest struct {
	Title       string              `json:"title" validate:"required,max=255"`
	Description string              `json:"description" validate:"required"`
	Image       string              `json:"image"`
	Agenda      []AgendaItemRequest `json:"agenda" validate:"dive"`
	Date        time.Time           `json:"date" validate:"required,future"`
	Time        string              `json:"time" validate:"required"`
	Location    string              `json:"location" validate:"required"`
	IsVirtual   bool                `json:"isVirtual"`
	ZoomLink    string              `json:"zoomLink"`
	TicketTypes []TicketTypeRequest `json:"ticketTypes" validate:"dive"`
}

func (r CreateEventRequest) Details() model.EventDetails {
	agenda := make([]model.AgendaItem, 0, len(r.Agenda))
	for _, a := range r.Agenda {
		agenda = append(agenda, model.AgendaItem{Time: a.Time, Activity: a.Activity})
	}
	return model.EventDetails{
		Title:       r.Title,
		Description: r.Description,
		Image:       r.Image,
		Agenda:      agenda,
		Date:        r.Date,
		Time:        r.Time,
		Location:    r.Location,
		IsVirtual:   r.IsVirtual,
		ZoomLink:    r.ZoomLink,
	}
}

type RegisterRequest struct {
	TicketType string `json:"ticketType" validate:"required"`
}

type CheckInRequest struct {
	QRCode string `json:"qrCode" validate:"required"`
}

type PaymentIntentRequest struct {
	EventID    string `json:"eventId" validate:"required"`
	TicketType string `json:"ticketType" validate:"required"`
}

type RegistrationResponse struct {
	Event      string    `json:"event"`
	EventID    string    `json:"eventId"`
	TicketType string    `json:"ticketType"`
	Credential string    `json:"credential"`
	CreatedAt  time.Time `json:"registeredAt"`
}

func NewRegistrationResponse(r *model.Registration) RegistrationResponse {
	return RegistrationResponse{
		Event:      r.Event,
		EventID:    r.EventID,
		TicketType: r.TicketType,
		Credential: r.Credential,
		CreatedAt:  r.CreatedAt,
	}
}

type CheckInResponse struct {
	Message  string               `json:"message"`
	Attendee model.CheckInReceipt `json:"attendee"`
}

type PaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func ErrorResponse(c *gin.Context, status int, code, desc string) {
	c.AbortWithStatusJSON(status, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func BadResponseError(c *gin.Context, code, desc string) {
	ErrorResponse(c, http.StatusBadRequest, code, desc)
}

func InternalServerError(c *gin.Context) {
	ErrorResponse(c, http.StatusInternalServerError, ServiceUnavailable, InternalError)
}

func FieldBadFormatError(c *gin.Context, fieldName string) {
	BadResponseError(c, FieldBadFormat, "Field '"+fieldName+"' has bad format")
}

func FieldIncorrectError(c *gin.Context, desc string) {
	BadResponseError(c, FieldIncorrect, desc)
}

func UnauthenticatedError(c *gin.Context, desc string) {
	ErrorResponse(c, http.StatusUnauthorized, Unauthenticated, desc)
}

// ServiceError writes the response for an error returned by the service
// layer. Each domain error gets its own code; the status follows its kind.
func ServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrEventNotFound):
		ErrorResponse(c, http.StatusNotFound, EventNotFound, "Event not found")
	case errors.Is(err, model.ErrInvalidCredential):
		ErrorResponse(c, http.StatusNotFound, InvalidQRCode, "Invalid QR code")
	case errors.Is(err, model.ErrInvalidTicketType):
		BadResponseError(c, InvalidTicketType, "Invalid ticket type")
	case errors.Is(err, model.ErrTicketsSoldOut):
		BadResponseError(c, TicketsSoldOut, "Tickets sold out for this type")
	case errors.Is(err, model.ErrDuplicateRegistration):
		BadResponseError(c, RegistrationDuplicate, "You have already registered for this event")
	case errors.Is(err, model.ErrAlreadyCheckedIn):
		BadResponseError(c, AlreadyCheckedIn, "Attendee already checked in")
	case errors.Is(err, model.ErrNotAuthorized):
		ErrorResponse(c, http.StatusForbidden, NotAuthorized, "Not authorized")
	case errors.Is(err, model.ErrValidation):
		FieldIncorrectError(c, err.Error())
	case model.KindOf(err) == model.KindTransient:
		ErrorResponse(c, http.StatusServiceUnavailable, ServiceUnavailable, InternalError)
	default:
		InternalServerError(c)
	}
}

func SuccessResponse(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{
		Status: "ok",
		Data:   data,
	})
}
