package service

import (
	"time"

	"github.com/Rrens/partner-chat/internal/domain"
)

// turn folds the events of one streamed answer into the session transcript
type turn struct {
	session *domain.ChatSession
	text    string
	release func()
	started time.Time

	assistant int
	final     bool
}

func newTurn(session *domain.ChatSession, text string, release func()) *turn {
	return &turn{
		session:   session,
		text:      text,
		release:   release,
		started:   time.Now(),
		assistant: -1,
	}
}

// apply folds ev into the assistant message, creating the placeholder on the
// first event that carries something. It reports whether the transcript
// changed. Events after the final one are ignored.
func (t *turn) apply(ev domain.StreamEvent) bool {
	if t.final || (!ev.HasDelta && !ev.IsFinal) {
		return false
	}

	if t.assistant < 0 {
		t.assistant = t.session.Append(domain.Message{
			Role:      domain.RoleAssistant,
			Timestamp: time.Now().UTC(),
		})
	}

	t.session.Update(t.assistant, func(m *domain.Message) {
		if ev.HasDelta {
			m.Content += ev.AnswerDelta
		}
		if ev.IsFinal {
			m.Sources = ev.Sources
			m.Suggestions = ev.Suggestions
			m.Final = true
		}
	})
	if ev.IsFinal {
		t.final = true
	}
	return true
}

// fail records text as the turn's single assistant-side error. A turn that
// already streamed part of an answer keeps it and gets the text appended.
func (t *turn) fail(text string) {
	if t.assistant < 0 {
		t.assistant = t.session.Append(domain.Message{
			Role:      domain.RoleAssistant,
			Content:   text,
			Timestamp: time.Now().UTC(),
			Final:     true,
		})
		t.final = true
		return
	}

	t.session.Update(t.assistant, func(m *domain.Message) {
		if m.Content != "" {
			m.Content += "\n\n" + text
		} else {
			m.Content = text
		}
		m.Final = true
	})
	t.final = true
}
