package domain

import (
	"time"
)

// MessageRole represents the sender of a message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Source is a citation snippet attached to a completed assistant message
type Source struct {
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
}

// Message is one entry of a session transcript.
// An assistant message stays mutable while its stream is open; Final marks
// it immutable.
type Message struct {
	Role        MessageRole `json:"role"`
	Content     string      `json:"content"`
	Timestamp   time.Time   `json:"timestamp"`
	Sources     []Source    `json:"sources,omitempty"`
	Suggestions []string    `json:"suggestions,omitempty"`
	Final       bool        `json:"final"`
}

// Clone returns a deep copy safe to hand to other goroutines
func (m Message) Clone() Message {
	if m.Sources != nil {
		m.Sources = append([]Source(nil), m.Sources...)
	}
	if m.Suggestions != nil {
		m.Suggestions = append([]string(nil), m.Suggestions...)
	}
	return m
}

// CloneMessages deep-copies a transcript
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
