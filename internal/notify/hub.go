// Package notify fans session notifications out to gateway subscribers.
package notify

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/partner-chat/internal/domain"
)

// DefaultBuffer is the per-subscriber channel capacity
const DefaultBuffer = 32

// EventType names a notification kind
type EventType string

const (
	EventTranscript EventType = "transcript"
	EventGreeting   EventType = "greeting"
	EventState      EventType = "state"
)

// Event is one notification delivered to a subscriber
type Event struct {
	Type      EventType        `json:"type"`
	SessionID string           `json:"session_id"`
	Messages  []domain.Message `json:"messages,omitempty"`
	Greeting  string           `json:"greeting,omitempty"`
	State     domain.TurnState `json:"state,omitempty"`
}

type subscriber struct {
	ch     chan Event
	lagged atomic.Uint64
}

// Hub implements domain.Notifier. Publishing never blocks: a subscriber whose
// buffer is full loses the event.
type Hub struct {
	mu     sync.RWMutex
	buffer int
	subs   map[string]map[*subscriber]struct{}
}

// NewHub creates a hub with buffer slots per subscriber
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		buffer: buffer,
		subs:   make(map[string]map[*subscriber]struct{}),
	}
}

// Subscribe registers a listener for sessionID. The channel is closed by
// the returned cancel func or when the session is closed on the hub.
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() { h.remove(sessionID, sub) })
	}
}

func (h *Hub) remove(sessionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[sessionID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sessionID)
	}
	close(sub.ch)
}

// CloseSession drops every subscriber of sessionID
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[sessionID] {
		close(sub.ch)
	}
	delete(h.subs, sessionID)
}

// Subscribers returns the number of listeners of sessionID
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

func (h *Hub) TranscriptChanged(sessionID string, messages []domain.Message) {
	h.publish(Event{Type: EventTranscript, SessionID: sessionID, Messages: messages})
}

func (h *Hub) GreetingReady(sessionID string, greeting string) {
	h.publish(Event{Type: EventGreeting, SessionID: sessionID, Greeting: greeting})
}

func (h *Hub) TurnStateChanged(sessionID string, state domain.TurnState) {
	h.publish(Event{Type: EventState, SessionID: sessionID, State: state})
}

func (h *Hub) publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[ev.SessionID] {
		select {
		case sub.ch <- ev:
		default:
			n := sub.lagged.Add(1)
			log.Warn().
				Str("session_id", ev.SessionID).
				Str("event", string(ev.Type)).
				Uint64("lagged", n).
				Msg("subscriber too slow, event dropped")
		}
	}
}
