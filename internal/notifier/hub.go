package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

const defaultBuffer = 16

// Subscription is one client's membership in an event channel.
type Subscription struct {
	eventID string
	ch      chan []byte
	once    sync.Once
}

func (s *Subscription) EventID() string { return s.eventID }

// C yields raw JSON payloads. It is closed on Leave.
func (s *Subscription) C() <-chan []byte { return s.ch }

// Hub keeps the in-process channel rooms keyed by event id.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Subscription]struct{}
	buffer int
	log    *zerolog.Logger
}

func NewHub(log *zerolog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Subscription]struct{}),
		buffer: defaultBuffer,
		log:    log,
	}
}

func (h *Hub) Join(eventID string) *Subscription {
	sub := &Subscription{eventID: eventID, ch: make(chan []byte, h.buffer)}

	h.mu.Lock()
	room, ok := h.rooms[eventID]
	if !ok {
		room = make(map[*Subscription]struct{})
		h.rooms[eventID] = room
	}
	room[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

func (h *Hub) Leave(sub *Subscription) {
	h.mu.Lock()
	if room, ok := h.rooms[sub.eventID]; ok {
		delete(room, sub)
		if len(room) == 0 {
			delete(h.rooms, sub.eventID)
		}
	}
	h.mu.Unlock()

	sub.once.Do(func() { close(sub.ch) })
}

func (h *Hub) Subscribers(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}

// Publish marshals payload and hands it to every current subscriber without
// blocking. A subscriber whose buffer is full misses the message.
func (h *Hub) Publish(_ context.Context, eventID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	h.Deliver(eventID, raw)
	return nil
}

// Deliver fans an already-encoded payload out to eventID's room.
func (h *Hub) Deliver(eventID string, raw []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.rooms[eventID] {
		select {
		case sub.ch <- raw:
		default:
			h.log.Warn().Str("event_id", eventID).Msg("subscriber buffer full, dropping update")
		}
	}
}
