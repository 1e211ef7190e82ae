package domain

// OpenSessionRequest opens a chat session for the authenticated partner
type OpenSessionRequest struct {
	HealthData map[string]any `json:"health_data,omitempty"`
}

// SendMessageRequest is one user turn submitted through the gateway
type SendMessageRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

// SendMessageResponse reports whether the turn was admitted
type SendMessageResponse struct {
	SessionID string    `json:"session_id"`
	Accepted  bool      `json:"accepted"`
	Reason    string    `json:"reason,omitempty"`
	State     TurnState `json:"state"`
}
