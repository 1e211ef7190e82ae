package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Rrens/partner-chat/internal/api/response"
	"github.com/Rrens/partner-chat/internal/domain"
	"github.com/Rrens/partner-chat/internal/guard"
)

// SendMessage admits a user turn. The answer is delivered through the
// session's event stream and snapshot.
func (h *SessionHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var input domain.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if !validateInput(w, input) {
		return
	}

	resp := domain.SendMessageResponse{SessionID: session.LocalID()}

	if strings.TrimSpace(input.Message) == "" {
		resp.Reason = "empty message"
		resp.State = session.State()
		response.OK(w, resp)
		return
	}

	err := h.chat.Dispatch(session, input.Message)
	switch {
	case errors.Is(err, guard.ErrInFlight):
		response.Conflict(w, "a message is already being answered")
		return
	case errors.Is(err, guard.ErrThrottled):
		response.TooManyRequests(w, 1, "messages sent too quickly")
		return
	case errors.Is(err, domain.ErrSessionClosed):
		response.NotFound(w, "session not found")
		return
	case err != nil:
		response.InternalError(w, "failed to send message")
		return
	}

	resp.Accepted = true
	resp.State = session.State()
	response.Accepted(w, resp)
}
