package model

import "errors"

var (
	ErrEventNotFound         = errors.New("event not found")
	ErrInvalidTicketType     = errors.New("invalid ticket type")
	ErrTicketsSoldOut        = errors.New("tickets sold out for this type")
	ErrDuplicateRegistration = errors.New("already registered for this event")
	ErrNotAuthorized         = errors.New("not authorized")
	ErrInvalidCredential     = errors.New("invalid qr code")
	ErrAlreadyCheckedIn      = errors.New("attendee already checked in")
	ErrValidation            = errors.New("validation failed")
	ErrCredentialConflict    = errors.New("credential already issued")
	ErrStoreUnavailable      = errors.New("store unavailable")
	ErrRegistrationNotFound  = errors.New("registration not found")
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindConflict
	KindNotAuthorized
	KindValidation
	KindTransient
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindNotAuthorized:
		return "not_authorized"
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	default:
		return "internal"
	}
}

// KindOf classifies err into the error taxonomy. Only KindTransient is safe for
// a caller to retry.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrStoreUnavailable):
		return KindTransient
	case errors.Is(err, ErrEventNotFound),
		errors.Is(err, ErrInvalidCredential),
		errors.Is(err, ErrRegistrationNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicateRegistration),
		errors.Is(err, ErrTicketsSoldOut),
		errors.Is(err, ErrAlreadyCheckedIn),
		errors.Is(err, ErrCredentialConflict):
		return KindConflict
	case errors.Is(err, ErrNotAuthorized):
		return KindNotAuthorized
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidTicketType):
		return KindValidation
	}
	return KindInternal
}
