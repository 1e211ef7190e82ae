package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Rrens/partner-chat/internal/domain"
)

// DefaultAttachmentLimit caps sources and suggestions kept on a final event
const DefaultAttachmentLimit = 3

// Kind tags the outcome of interpreting a frame
type Kind int

const (
	// Decoded means Event holds the interpreted payload
	Decoded Kind = iota
	// Skipped means the payload could not be parsed; Err says why
	Skipped
)

func (k Kind) String() string {
	if k == Decoded {
		return "decoded"
	}
	return "skipped"
}

// Result is either a decoded event or a skip marker
type Result struct {
	Kind  Kind
	Event domain.StreamEvent
	Err   error
}

// Interpreter maps frame payloads to stream events
type Interpreter struct {
	// Limit caps sources and suggestions; zero means DefaultAttachmentLimit
	Limit int
}

type wireSource struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type wireEvent struct {
	Answer      *string         `json:"answer"`
	Done        json.RawMessage `json:"done"`
	Sources     []wireSource    `json:"sources"`
	Suggestions []string        `json:"suggestions"`
}

// Interpret parses one frame with the default limit
func Interpret(frame domain.Frame) Result {
	return Interpreter{}.Interpret(frame)
}

// Interpret parses one frame. A payload that is not a JSON object yields a
// Skipped result; it never aborts the stream.
func (in Interpreter) Interpret(frame domain.Frame) Result {
	var w wireEvent
	if err := json.Unmarshal([]byte(frame.Raw), &w); err != nil {
		return Result{Kind: Skipped, Err: fmt.Errorf("malformed frame payload: %w", err)}
	}

	limit := in.Limit
	if limit <= 0 {
		limit = DefaultAttachmentLimit
	}

	var ev domain.StreamEvent
	if w.Answer != nil {
		ev.AnswerDelta = *w.Answer
		ev.HasDelta = true
	}

	if truthy(w.Done) {
		ev.IsFinal = true
		for i, s := range w.Sources {
			if i == limit {
				break
			}
			ev.Sources = append(ev.Sources, domain.Source{Title: s.Title, Excerpt: s.Text})
		}
		if len(w.Suggestions) > 0 {
			n := min(len(w.Suggestions), limit)
			ev.Suggestions = append([]string(nil), w.Suggestions[:n]...)
		}
	}

	return Result{Kind: Decoded, Event: ev}
}

// truthy follows the backend's loose notion of a set flag: true, a non-zero
// number or a non-empty string.
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}

	switch raw[0] {
	case 't':
		return string(raw) == "true"
	case '"':
		var s string
		return json.Unmarshal(raw, &s) == nil && s != ""
	case 'f', 'n':
		return false
	}

	f, err := strconv.ParseFloat(string(raw), 64)
	return err == nil && f != 0
}
