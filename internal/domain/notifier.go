package domain

import "context"

// Notifier receives session changes for the UI.
// Implementations must not block; they are called from the turn goroutine.
type Notifier interface {
	// TranscriptChanged is called after every transcript mutation
	TranscriptChanged(sessionID string, messages []Message)

	// GreetingReady is called when warmup primed a greeting
	GreetingReady(sessionID string, greeting string)

	// TurnStateChanged is called on every turn state transition
	TurnStateChanged(sessionID string, state TurnState)
}

// GreetingKey identifies a cached greeting: the partner identity plus a
// digest of the health data the greeting was produced for
type GreetingKey struct {
	Identity Identity
	Profile  string
}

// GreetingStore caches warmup greetings across sessions. Only the greeting
// is shared; every session still binds the id of its own warmup exchange.
type GreetingStore interface {
	// Get returns "" when nothing is cached for key
	Get(ctx context.Context, key GreetingKey) (string, error)
	Set(ctx context.Context, key GreetingKey, greeting string) error
}
