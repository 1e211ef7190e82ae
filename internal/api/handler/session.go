package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Rrens/partner-chat/internal/api/middleware"
	"github.com/Rrens/partner-chat/internal/api/response"
	"github.com/Rrens/partner-chat/internal/domain"
	"github.com/Rrens/partner-chat/internal/notify"
	"github.com/Rrens/partner-chat/internal/service"
)

// SessionHandler exposes chat sessions over HTTP
type SessionHandler struct {
	registry *service.Registry
	chat     *service.ChatController
	hub      *notify.Hub
}

func NewSessionHandler(registry *service.Registry, chat *service.ChatController, hub *notify.Hub) *SessionHandler {
	return &SessionHandler{registry: registry, chat: chat, hub: hub}
}

// Open opens a session for the caller and starts its warmup
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var input domain.OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "invalid request body")
		return
	}

	var healthData any
	if len(input.HealthData) > 0 {
		healthData = input.HealthData
	}

	session := h.registry.Open(identity, healthData)
	response.Created(w, session.Snapshot())
}

// Get returns a snapshot of the session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}
	response.OK(w, session.Snapshot())
}

// Delete tears the session down, aborting an answer in progress
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	if err := h.registry.Close(identity, chi.URLParam(r, "sessionID")); err != nil {
		response.NotFound(w, "session not found")
		return
	}
	response.NoContent(w)
}

func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*domain.ChatSession, bool) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return nil, false
	}

	session, err := h.registry.Get(identity, chi.URLParam(r, "sessionID"))
	if err != nil {
		response.NotFound(w, "session not found")
		return nil, false
	}
	return session, true
}
