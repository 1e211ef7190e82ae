package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const heartbeatInterval = 15 * time.Second

// Events streams session notifications as server-sent events. The first
// event is a snapshot so late subscribers start from the current state.
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	rc := http.NewResponseController(w)
	// long-lived response, the server write timeout must not cut it
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		log.Debug().Err(err).Msg("cannot clear write deadline")
	}

	events, cancel := h.hub.Subscribe(session.LocalID())
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "snapshot", session.Snapshot()); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		log.Warn().Err(err).Str("session_id", session.LocalID()).Msg("event stream cannot be flushed")
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case ev, open := <-events:
			if !open {
				err := writeEvent(w, "closed", map[string]string{"session_id": session.LocalID()})
				if err == nil {
					err = rc.Flush()
				}
				if err != nil {
					log.Debug().Err(err).Str("session_id", session.LocalID()).Msg("closed event not delivered")
				}
				return
			}
			if err := writeEvent(w, string(ev.Type), ev); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
