package repo

import (
	"context"

	"eventhub/internal/model"
)

// MutateFunc changes an event in place. Returning an error aborts the
// mutation and nothing is written.
type MutateFunc func(e *model.Event) error

// Repository stores Event aggregates. MutateEvent is the only write path for an
// existing event and is serialized per event id: the read, the MutateFunc and
// the write are applied as one unit against the latest committed state.
type Repository interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	GetEventByID(ctx context.Context, id string) (*model.Event, error)
	GetAllEvents(ctx context.Context) ([]model.Event, error)
	MutateEvent(ctx context.Context, id string, fn MutateFunc) (*model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// newCredentials returns the check-in credentials present in after but not in before.
func newCredentials(before, after *model.Event) []string {
	known := make(map[string]struct{}, len(before.Attendees))
	for _, a := range before.Attendees {
		known[a.QRCode] = struct{}{}
	}
	var out []string
	for _, a := range after.Attendees {
		if _, ok := known[a.QRCode]; !ok && a.QRCode != "" {
			out = append(out, a.QRCode)
		}
	}
	return out
}
