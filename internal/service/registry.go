package service

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/partner-chat/internal/domain"
	"github.com/Rrens/partner-chat/internal/guard"
)

// ErrSessionNotFound is returned for unknown sessions and for sessions owned
// by another identity
var ErrSessionNotFound = errors.New("session not found")

// Registry keeps the live sessions of the process
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*domain.ChatSession

	warmup  *WarmupCache
	guard   *guard.Guard
	onClose []func(sessionID string)
}

// NewRegistry creates a registry. Sessions opened through it are warmed up
// with warmup; their guard state is dropped from g when they close.
func NewRegistry(warmup *WarmupCache, g *guard.Guard) *Registry {
	return &Registry{
		sessions: make(map[string]*domain.ChatSession),
		warmup:   warmup,
		guard:    g,
	}
}

// OnClose registers fn to run after a session was torn down
func (r *Registry) OnClose(fn func(sessionID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onClose = append(r.onClose, fn)
}

// Open creates a session for identity and starts its warmup
func (r *Registry) Open(identity domain.Identity, healthData any) *domain.ChatSession {
	session := domain.NewChatSession(identity, healthData)

	r.mu.Lock()
	r.sessions[session.LocalID()] = session
	r.mu.Unlock()

	if r.warmup != nil {
		r.warmup.Warmup(session)
	}

	log.Info().
		Str("session_id", session.LocalID()).
		Str("uuid", identity.UUID).
		Msg("session opened")
	return session
}

// Get returns the session id if identity owns it
func (r *Registry) Get(identity domain.Identity, id string) (*domain.ChatSession, error) {
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok || session.Identity() != identity {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Close tears down a session owned by identity. In-flight exchanges are
// aborted without producing a message.
func (r *Registry) Close(identity domain.Identity, id string) error {
	r.mu.Lock()
	session, ok := r.sessions[id]
	if !ok || session.Identity() != identity {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	hooks := append([]func(string){}, r.onClose...)
	r.mu.Unlock()

	r.teardown(session, hooks)
	return nil
}

// CloseAll tears down every session, used on shutdown
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*domain.ChatSession)
	hooks := append([]func(string){}, r.onClose...)
	r.mu.Unlock()

	for _, session := range sessions {
		r.teardown(session, hooks)
	}
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) teardown(session *domain.ChatSession, hooks []func(string)) {
	session.Close()
	if r.warmup != nil {
		r.warmup.Cancel(session)
	}
	if r.guard != nil {
		r.guard.Forget(session.LocalID())
	}
	for _, fn := range hooks {
		fn(session.LocalID())
	}

	log.Info().Str("session_id", session.LocalID()).Msg("session closed")
}
