// Package notifier broadcasts per-event counter updates to subscribed
// clients. Delivery is at-most-once and best-effort: there is no persistence
// and a subscriber joining after a publish never sees it.
package notifier

import "context"

const (
	TypeAttendeeUpdate = "attendeeUpdate"
	TypeCheckInUpdate  = "checkInUpdate"
)

// Notifier publishes a payload to everyone joined to eventID's channel.
type Notifier interface {
	Publish(ctx context.Context, eventID string, payload any) error
}

type AttendeeUpdate struct {
	Type          string `json:"type"`
	EventID       string `json:"eventId"`
	AttendeeCount int    `json:"attendeeCount"`
	TicketsSold   int    `json:"ticketsSold"`
}

func NewAttendeeUpdate(eventID string, attendees, sold int) AttendeeUpdate {
	return AttendeeUpdate{Type: TypeAttendeeUpdate, EventID: eventID, AttendeeCount: attendees, TicketsSold: sold}
}

type CheckInUpdate struct {
	Type           string `json:"type"`
	EventID        string `json:"eventId"`
	CheckedInCount int    `json:"checkedInCount"`
}

func NewCheckInUpdate(eventID string, checkedIn int) CheckInUpdate {
	return CheckInUpdate{Type: TypeCheckInUpdate, EventID: eventID, CheckedInCount: checkedIn}
}

// Nop discards every publish.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
