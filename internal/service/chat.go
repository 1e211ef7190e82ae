package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/partner-chat/internal/domain"
	"github.com/Rrens/partner-chat/internal/guard"
	"github.com/Rrens/partner-chat/internal/partner"
	"github.com/Rrens/partner-chat/internal/stream"
)

// DefaultSendTimeout bounds one turn from dispatch to completion
const DefaultSendTimeout = 30 * time.Second

// User facing texts for failed turns
const (
	TimeoutText       = "The assistant took too long to respond. Please try again."
	FailureTextFmt    = "Sorry, something went wrong: %s"
	abnormalDetail    = "the response ended unexpectedly"
	unreachableDetail = "the assistant could not be reached"
)

var (
	errTurnTimeout   = errors.New("turn timed out")
	errAbnormalClose = errors.New("stream closed before the final record")
)

// ChatOptions tunes a ChatController
type ChatOptions struct {
	SendTimeout time.Duration
	SourceLimit int
}

// ChatController owns the send/receive lifecycle of chat sessions
type ChatController struct {
	transport   partner.Transport
	notifier    domain.Notifier
	guard       *guard.Guard
	interpreter stream.Interpreter
	sendTimeout time.Duration
}

// NewChatController creates a controller. A nil notifier discards
// notifications; a nil guard gets a fresh one.
func NewChatController(transport partner.Transport, notifier domain.Notifier, g *guard.Guard, opts ChatOptions) *ChatController {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if g == nil {
		g = guard.New()
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}

	return &ChatController{
		transport:   transport,
		notifier:    notifier,
		guard:       g,
		interpreter: stream.Interpreter{Limit: opts.SourceLimit},
		sendTimeout: opts.SendTimeout,
	}
}

// Send runs one turn and blocks until it resolves. Blank text is ignored.
// While a turn of the same session is in flight the call is rejected with
// guard.ErrInFlight (or guard.ErrThrottled when sends come too fast) and
// nothing is appended to the transcript.
func (c *ChatController) Send(ctx context.Context, session *domain.ChatSession, text string) (domain.TurnState, error) {
	t, err := c.admit(session, text)
	if err != nil || t == nil {
		return domain.TurnIdle, err
	}
	return c.run(ctx, t), nil
}

// Dispatch admits a turn synchronously and streams it in the background.
// Rejections are reported the same way as Send.
func (c *ChatController) Dispatch(session *domain.ChatSession, text string) error {
	t, err := c.admit(session, text)
	if err != nil || t == nil {
		return err
	}

	go c.run(context.Background(), t)
	return nil
}

func (c *ChatController) admit(session *domain.ChatSession, text string) (*turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if session.Closed() {
		return nil, domain.ErrSessionClosed
	}

	release, err := c.guard.Acquire(session.LocalID())
	if err != nil {
		log.Debug().Err(err).Str("session_id", session.LocalID()).Msg("send rejected")
		return nil, err
	}

	session.Append(domain.Message{
		Role:      domain.RoleUser,
		Content:   text,
		Timestamp: time.Now().UTC(),
		Final:     true,
	})
	session.SetSending(true)

	c.notifyTranscript(session)
	c.setState(session, domain.TurnSending)

	return newTurn(session, text, release), nil
}

func (c *ChatController) run(ctx context.Context, t *turn) domain.TurnState {
	s := t.session
	cleanup := func() {
		s.SetSending(false)
		t.release()
	}
	defer cleanup()

	// one abort path: session teardown, caller cancellation and the deadline
	// all cancel the same context
	turnCtx, cancel := context.WithCancelCause(s.Context())
	defer cancel(nil)
	stop := context.AfterFunc(ctx, func() { cancel(context.Cause(ctx)) })
	defer stop()
	turnCtx, cancelTimeout := context.WithTimeoutCause(turnCtx, c.sendTimeout, errTurnTimeout)
	defer cancelTimeout()

	state, err := c.exchange(turnCtx, t)
	if err != nil {
		state = c.resolveFailure(turnCtx, t, err)
	}

	cleanup()
	c.setState(s, state)

	logEvent := log.Info()
	if state != domain.TurnCompleted {
		logEvent = log.Warn().Err(err)
	}
	logEvent.
		Str("session_id", s.LocalID()).
		Str("state", string(state)).
		Dur("elapsed", time.Since(t.started)).
		Msg("chat turn finished")

	return state
}

func (c *ChatController) exchange(ctx context.Context, t *turn) (domain.TurnState, error) {
	s := t.session
	id := s.Identity()

	body, err := c.transport.OpenStream(ctx, partner.MessageRequest{
		UUID:       id.UUID,
		HospitalID: id.HospitalID,
		Message:    t.text,
		SessionID:  s.OutgoingID(),
		HealthData: s.HealthData(),
	})
	if err != nil {
		return domain.TurnFailed, err
	}
	defer body.Close()

	// unblocks a pending Read on transports that ignore the context
	stopClose := context.AfterFunc(ctx, func() { body.Close() })
	defer stopClose()

	c.setState(s, domain.TurnStreaming)

	err = stream.Decode(ctx, body, func(f domain.Frame) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		res := c.interpreter.Interpret(f)
		if res.Kind == stream.Skipped {
			log.Warn().Err(res.Err).Str("session_id", s.LocalID()).Msg("skipping malformed stream frame")
			return nil
		}

		if t.apply(res.Event) {
			c.notifyTranscript(s)
		}
		if t.final {
			return stream.ErrStop
		}
		return nil
	})
	if err != nil {
		return domain.TurnFailed, err
	}
	if !t.final {
		return domain.TurnFailed, errAbnormalClose
	}
	return domain.TurnCompleted, nil
}

func (c *ChatController) resolveFailure(ctx context.Context, t *turn, err error) domain.TurnState {
	if ctx.Err() != nil {
		cause := context.Cause(ctx)
		switch {
		case errors.Is(cause, errTurnTimeout), errors.Is(cause, context.DeadlineExceeded):
			t.fail(TimeoutText)
			c.notifyTranscript(t.session)
			return domain.TurnTimedOut
		default:
			// torn down or abandoned by the caller, nobody is watching
			return domain.TurnCancelled
		}
	}

	t.fail(fmt.Sprintf(FailureTextFmt, describe(err)))
	c.notifyTranscript(t.session)
	return domain.TurnFailed
}

// describe turns a turn error into the detail shown to the user
func describe(err error) string {
	var apiErr *partner.APIError
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return fmt.Sprintf("the assistant returned status %d", apiErr.Status)
	case errors.Is(err, errAbnormalClose):
		return abnormalDetail
	default:
		return unreachableDetail
	}
}

func (c *ChatController) notifyTranscript(s *domain.ChatSession) {
	c.notifier.TranscriptChanged(s.LocalID(), s.Transcript())
}

func (c *ChatController) setState(s *domain.ChatSession, state domain.TurnState) {
	s.SetState(state)
	c.notifier.TurnStateChanged(s.LocalID(), state)
}

type nopNotifier struct{}

func (nopNotifier) TranscriptChanged(string, []domain.Message) {}
func (nopNotifier) GreetingReady(string, string)               {}
func (nopNotifier) TurnStateChanged(string, domain.TurnState)  {}
