// Package ledger holds the per-event ticket counters. It operates on an Event
// aggregate the caller has already locked; it never persists anything itself.
package ledger

import (
	"errors"

	"eventhub/internal/model"
)

var (
	ErrNotFound = errors.New("ticket type not found")
	ErrSoldOut  = errors.New("ticket type sold out")
)

func find(e *model.Event, name string) (int, bool) {
	for i := range e.TicketTypes {
		if e.TicketTypes[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

// Lookup returns the ticket type called name.
func Lookup(e *model.Event, name string) (model.TicketType, error) {
	i, ok := find(e, name)
	if !ok {
		return model.TicketType{}, ErrNotFound
	}
	return e.TicketTypes[i], nil
}

// Reserve takes one ticket of the named type. On error e is left untouched.
func Reserve(e *model.Event, name string) error {
	i, ok := find(e, name)
	if !ok {
		return ErrNotFound
	}
	t := &e.TicketTypes[i]
	if t.Sold >= t.Quantity {
		return ErrSoldOut
	}
	t.Sold++
	return nil
}

func TicketsSold(e *model.Event) int {
	n := 0
	for _, t := range e.TicketTypes {
		n += t.Sold
	}
	return n
}

func Revenue(e *model.Event) float64 {
	var r float64
	for _, t := range e.TicketTypes {
		r += float64(t.Sold) * t.Price
	}
	return r
}
