package partner

import (
	"context"
	"fmt"
	"io"
)

// WarmupRequest binds a provisional session and primes personalization
type WarmupRequest struct {
	UUID       string `json:"uuid"`
	HospitalID string `json:"hospital_id"`
	HealthData any    `json:"health_data,omitempty"`
}

// WarmupResponse carries the canonical session id and an optional greeting
type WarmupResponse struct {
	SessionID string `json:"session_id,omitempty"`
	Greeting  string `json:"greeting,omitempty"`
}

// MessageRequest is one user message sent for a streamed answer
type MessageRequest struct {
	UUID       string `json:"uuid"`
	HospitalID string `json:"hospital_id"`
	Message    string `json:"message"`
	SessionID  string `json:"session_id"`
	HealthData any    `json:"health_data,omitempty"`
}

// Transport defines the exchanges the chat client performs with the backend
type Transport interface {
	// Warmup performs the pre-flight exchange
	Warmup(ctx context.Context, req WarmupRequest) (*WarmupResponse, error)

	// OpenStream posts a message and returns the streamed answer body once
	// the backend accepted it. Cancelling ctx aborts the exchange.
	OpenStream(ctx context.Context, req MessageRequest) (io.ReadCloser, error)
}

// APIError is a non-2xx answer from the backend
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("partner returned status %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("partner returned status %d", e.Status)
}
