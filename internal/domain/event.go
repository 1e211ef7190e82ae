package domain

// Frame is one data-bearing record extracted from a streamed response body.
// Raw holds the payload after the "data: " marker.
type Frame struct {
	Raw string
}

// StreamEvent is the interpreted payload of a frame
type StreamEvent struct {
	AnswerDelta string
	HasDelta    bool
	IsFinal     bool
	Sources     []Source
	Suggestions []string
}

// TurnState tracks one send/receive cycle of a session
type TurnState string

const (
	TurnIdle      TurnState = "idle"
	TurnSending   TurnState = "sending"
	TurnStreaming TurnState = "streaming"
	TurnCompleted TurnState = "completed"
	TurnTimedOut  TurnState = "timed_out"
	TurnFailed    TurnState = "failed"
	TurnCancelled TurnState = "cancelled"
)
