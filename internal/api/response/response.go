package response

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Response is the envelope of every non-streaming gateway response
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	Error   any  `json:"error,omitempty"`
}

// JSON sends data wrapped in the envelope
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Response{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

// Error sends an error response. message is a string or a field map.
func Error(w http.ResponseWriter, status int, message any) {
	write(w, status, Response{Error: message})
}

func write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Debug().Err(err).Int("status", status).Msg("failed to write response")
	}
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// Accepted acknowledges work that completes in the background
func Accepted(w http.ResponseWriter, data any) {
	JSON(w, http.StatusAccepted, data)
}

func BadRequest(w http.ResponseWriter, message any) {
	Error(w, http.StatusBadRequest, message)
}

func Unauthorized(w http.ResponseWriter, message any) {
	Error(w, http.StatusUnauthorized, message)
}

func NotFound(w http.ResponseWriter, message any) {
	Error(w, http.StatusNotFound, message)
}

// Conflict reports a request that collides with work already in progress
func Conflict(w http.ResponseWriter, message any) {
	Error(w, http.StatusConflict, message)
}

// TooManyRequests reports a rejected request. A positive retryAfter is sent
// as the Retry-After header in whole seconds.
func TooManyRequests(w http.ResponseWriter, retryAfter int, message any) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	Error(w, http.StatusTooManyRequests, message)
}

func ServiceUnavailable(w http.ResponseWriter, message any) {
	Error(w, http.StatusServiceUnavailable, message)
}

func InternalError(w http.ResponseWriter, message any) {
	Error(w, http.StatusInternalServerError, message)
}
