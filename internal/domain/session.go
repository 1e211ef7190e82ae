package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrSessionClosed is the cancellation cause of a torn down session
var ErrSessionClosed = errors.New("session closed")

// Identity is the partner identity a session is opened for
type Identity struct {
	UUID       string `json:"uuid"`
	HospitalID string `json:"hospital_id"`
}

// ChatSession is the in-memory state of one conversation with the assistant.
//
// The local id is generated when the session opens and serves as the outgoing
// session reference until warmup binds a canonical id issued by the server.
// A bound canonical id is never reverted. All methods are safe for concurrent
// use; transcript readers always receive copies.
type ChatSession struct {
	mu sync.RWMutex

	localID    string
	identity   Identity
	healthData any
	createdAt  time.Time

	canonicalID string
	warmedUp    bool
	greeting    string

	transcript []Message
	sending    bool
	state      TurnState

	ctx    context.Context
	cancel context.CancelCauseFunc
}

// NewChatSession opens a session for identity. healthData is the optional
// personalization payload forwarded to the backend.
func NewChatSession(identity Identity, healthData any) *ChatSession {
	now := time.Now()
	ctx, cancel := context.WithCancelCause(context.Background())

	return &ChatSession{
		localID:    fmt.Sprintf("%s_%d", identity.UUID, now.UnixNano()),
		identity:   identity,
		healthData: healthData,
		createdAt:  now,
		state:      TurnIdle,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (s *ChatSession) LocalID() string    { return s.localID }
func (s *ChatSession) Identity() Identity { return s.identity }
func (s *ChatSession) HealthData() any    { return s.healthData }

// OutgoingID returns the session reference to send to the backend
func (s *ChatSession) OutgoingID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.canonicalID != "" {
		return s.canonicalID
	}
	return s.localID
}

func (s *ChatSession) CanonicalID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canonicalID
}

func (s *ChatSession) Greeting() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.greeting
}

func (s *ChatSession) WarmedUp() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.warmedUp
}

// Bind records a successful warmup. An empty canonicalID keeps the local id
// in use; an already bound canonical id is kept.
func (s *ChatSession) Bind(canonicalID, greeting string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if canonicalID != "" && s.canonicalID == "" {
		s.canonicalID = canonicalID
	}
	if greeting != "" {
		s.greeting = greeting
	}
	s.warmedUp = true
}

// PrimeGreeting shows greeting ahead of the warmup exchange. It does not mark
// the session warmed up and is ignored once a greeting is set.
func (s *ChatSession) PrimeGreeting(greeting string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if greeting == "" || s.greeting != "" {
		return false
	}
	s.greeting = greeting
	return true
}

// Context is cancelled when the session is closed
func (s *ChatSession) Context() context.Context {
	return s.ctx
}

// Close tears the session down, aborting any in-flight exchange.
// Calling Close more than once is harmless.
func (s *ChatSession) Close() {
	s.cancel(ErrSessionClosed)
}

func (s *ChatSession) Closed() bool {
	return s.ctx.Err() != nil
}

// Transcript returns a copy of the conversation so far
func (s *ChatSession) Transcript() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CloneMessages(s.transcript)
}

// Append adds a message to the transcript and returns its index
func (s *ChatSession) Append(m Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcript = append(s.transcript, m)
	return len(s.transcript) - 1
}

// Update mutates the message at index i in place. Final messages are
// immutable and are left untouched, in which case false is returned.
func (s *ChatSession) Update(i int, fn func(m *Message)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.transcript) || s.transcript[i].Final {
		return false
	}
	fn(&s.transcript[i])
	return true
}

func (s *ChatSession) Sending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sending
}

func (s *ChatSession) SetSending(sending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sending = sending
}

func (s *ChatSession) State() TurnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *ChatSession) SetState(state TurnState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// SessionSnapshot is a point-in-time view of a session
type SessionSnapshot struct {
	SessionID   string    `json:"session_id"`
	CanonicalID string    `json:"canonical_id,omitempty"`
	WarmedUp    bool      `json:"warmed_up"`
	Greeting    string    `json:"greeting,omitempty"`
	Sending     bool      `json:"sending"`
	State       TurnState `json:"state"`
	Messages    []Message `json:"messages"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *ChatSession) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SessionSnapshot{
		SessionID:   s.localID,
		CanonicalID: s.canonicalID,
		WarmedUp:    s.warmedUp,
		Greeting:    s.greeting,
		Sending:     s.sending,
		State:       s.state,
		Messages:    CloneMessages(s.transcript),
		CreatedAt:   s.createdAt,
	}
}
