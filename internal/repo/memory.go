package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"eventhub/internal/model"
)

type memoryRepository struct {
	mu          sync.RWMutex
	events      map[string]*model.Event
	locks       map[string]*sync.Mutex
	credentials map[string]string
}

// NewMemoryRepository returns a Repository kept in process memory. Mutations
// of one event are serialized by a mutex keyed by event id.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		events:      make(map[string]*model.Event),
		locks:       make(map[string]*sync.Mutex),
		credentials: make(map[string]string),
	}
}

func (r *memoryRepository) CreateEvent(ctx context.Context, e *model.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[e.ID]; ok {
		return fmt.Errorf("event %s already exists", e.ID)
	}
	stored := e.Clone()
	stored.Version = 1
	r.events[e.ID] = stored
	r.locks[e.ID] = &sync.Mutex{}
	for _, a := range stored.Attendees {
		r.credentials[a.QRCode] = e.ID
	}
	e.Version = stored.Version
	return nil
}

func (r *memoryRepository) GetEventByID(ctx context.Context, id string) (*model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.events[id]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	return e.Clone(), nil
}

func (r *memoryRepository) GetAllEvents(ctx context.Context) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]model.Event, 0, len(r.events))
	for _, e := range r.events {
		events = append(events, *e.Clone())
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events, nil
}

func (r *memoryRepository) MutateEvent(ctx context.Context, id string, fn MutateFunc) (*model.Event, error) {
	r.mu.RLock()
	lock, ok := r.locks[id]
	r.mu.RUnlock()
	if !ok {
		return nil, model.ErrEventNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
	}

	r.mu.RLock()
	current, ok := r.events[id]
	r.mu.RUnlock()
	if !ok {
		// deleted while we waited for the lock
		return nil, model.ErrEventNotFound
	}

	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	added := newCredentials(current, working)
	for _, c := range added {
		if _, taken := r.credentials[c]; taken {
			return nil, model.ErrCredentialConflict
		}
	}
	for _, c := range added {
		r.credentials[c] = id
	}
	working.Version = current.Version + 1
	r.events[id] = working
	return working.Clone(), nil
}

func (r *memoryRepository) DeleteEvent(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
	}
	r.mu.RLock()
	lock, ok := r.locks[id]
	r.mu.RUnlock()
	if !ok {
		return model.ErrEventNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return model.ErrEventNotFound
	}
	for _, a := range e.Attendees {
		delete(r.credentials, a.QRCode)
	}
	delete(r.events, id)
	delete(r.locks, id)
	return nil
}
