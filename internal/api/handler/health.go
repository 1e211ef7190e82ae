package handler

import (
	"context"
	"net/http"

	"github.com/Rrens/partner-chat/internal/api/response"
)

// Pinger is a dependency the readiness probe checks
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck returns a simple health check response
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "ok",
	})
}

// ReadyCheck reports readiness. A nil pinger means there is nothing to check.
func ReadyCheck(pinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			if err := pinger.Ping(r.Context()); err != nil {
				response.ServiceUnavailable(w, "redis not ready")
				return
			}
		}

		response.OK(w, map[string]string{
			"status": "ready",
		})
	}
}
