package model

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// CanTransitionTo reports whether a registration in status s may move to next.
// Completed and refunded are terminal for the payment signals this service handles.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentPending:
		return next == PaymentCompleted || next == PaymentFailed
	case PaymentFailed:
		return next == PaymentCompleted
	case PaymentCompleted:
		return next == PaymentRefunded
	case PaymentRefunded:
		return false
	}
	return false
}

type Organizer struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type AgendaItem struct {
	Time     string `json:"time"`
	Activity string `json:"activity"`
}

type TicketType struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Sold     int     `json:"sold"`
}

func (t TicketType) Available() int {
	return t.Quantity - t.Sold
}

type Attendee struct {
	UserID        string        `json:"user"`
	Name          string        `json:"name,omitempty"`
	Email         string        `json:"email,omitempty"`
	TicketType    string        `json:"ticketType"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	CheckInStatus bool          `json:"checkInStatus"`
	CheckedInAt   *time.Time    `json:"checkedInAt,omitempty"`
	QRCode        string        `json:"qrCode"`
	RegisteredAt  time.Time     `json:"registeredAt"`
}

// Event is the aggregate: ticket types and attendees are owned by it and are
// only ever persisted together with it.
type Event struct {
	ID          string       `json:"id"`
	Organizer   Organizer    `json:"organizer"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Image       string       `json:"image"`
	Agenda      []AgendaItem `json:"agenda"`
	Date        time.Time    `json:"date"`
	Time        string       `json:"time"`
	Location    string       `json:"location"`
	IsVirtual   bool         `json:"isVirtual"`
	ZoomLink    string       `json:"zoomLink"`
	TicketTypes []TicketType `json:"ticketTypes"`
	Attendees   []Attendee   `json:"attendees"`
	Version     int64        `json:"-"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Clone returns a deep copy so callers never alias the stored collections.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	c.Agenda = append([]AgendaItem(nil), e.Agenda...)
	c.TicketTypes = append([]TicketType(nil), e.TicketTypes...)
	c.Attendees = make([]Attendee, len(e.Attendees))
	for i, a := range e.Attendees {
		if a.CheckedInAt != nil {
			t := *a.CheckedInAt
			a.CheckedInAt = &t
		}
		c.Attendees[i] = a
	}
	return &c
}

func (e *Event) IsOrganizer(principalID string) bool {
	return principalID != "" && e.Organizer.ID == principalID
}

func (e *Event) FindAttendeeByUser(userID string) (int, bool) {
	for i := range e.Attendees {
		if e.Attendees[i].UserID == userID {
			return i, true
		}
	}
	return -1, false
}

func (e *Event) FindAttendeeByCredential(credential string) (int, bool) {
	for i := range e.Attendees {
		if e.Attendees[i].QRCode == credential {
			return i, true
		}
	}
	return -1, false
}

func (e *Event) CheckedInCount() int {
	n := 0
	for _, a := range e.Attendees {
		if a.CheckInStatus {
			n++
		}
	}
	return n
}

// EventDetails carries the descriptive fields an organizer may edit after creation.
type EventDetails struct {
	Title       string
	Description string
	Image       string
	Agenda      []AgendaItem
	Date        time.Time
	Time        string
	Location    string
	IsVirtual   bool
	ZoomLink    string
}

func (e *Event) ApplyDetails(d EventDetails) {
	e.Title = d.Title
	e.Description = d.Description
	e.Image = d.Image
	e.Agenda = append([]AgendaItem(nil), d.Agenda...)
	e.Date = d.Date
	e.Time = d.Time
	e.Location = d.Location
	e.IsVirtual = d.IsVirtual
	e.ZoomLink = d.ZoomLink
}

type Role string

const (
	RoleOrganizer Role = "organizer"
	RoleAttendee  Role = "attendee"
)

// Principal is the authenticated caller as produced by token verification.
type Principal struct {
	ID    string
	Name  string
	Email string
	Role  Role
}

type Registration struct {
	EventID    string    `json:"eventId"`
	Event      string    `json:"event"`
	TicketType string    `json:"ticketType"`
	Credential string    `json:"qrCode"`
	CreatedAt  time.Time `json:"registeredAt"`
}

type CheckInReceipt struct {
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	TicketType  string    `json:"ticketType"`
	CheckInTime time.Time `json:"checkInTime"`
}

type Stats struct {
	TotalAttendees int     `json:"totalAttendees"`
	CheckedIn      int     `json:"checkedIn"`
	TicketSales    int     `json:"ticketSales"`
	Revenue        float64 `json:"revenue"`
}

// Redacted returns a copy safe for public listing: attendee credentials and
// contact details are removed.
func (e *Event) Redacted() *Event {
	c := e.Clone()
	for i := range c.Attendees {
		c.Attendees[i].QRCode = ""
		c.Attendees[i].Email = ""
	}
	return c
}
