// Package guard keeps redundant invocations of the same logical operation
// from reaching the network.
//
// Calls are keyed by a caller supplied string (a session id for the chat
// client). A key that is in flight rejects further calls immediately instead
// of queueing them. A key may also be throttled to a minimum spacing between
// dispatches, and calls can be debounced so only the last one inside a
// window runs.
package guard

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrInFlight is returned when the key already has an outstanding call
	ErrInFlight = errors.New("call already in flight")

	// ErrThrottled is returned when the key dispatched too recently
	ErrThrottled = errors.New("call throttled")
)

// Guard tracks per-key call state. The zero value is not usable; use New.
type Guard struct {
	mu          sync.Mutex
	minInterval time.Duration
	seq         uint64
	inFlight    map[string]uint64
	limiters    map[string]*rate.Limiter
	pending     map[string]*pendingCall
}

type pendingCall struct {
	timer *time.Timer
}

// Option configures a Guard
type Option func(*Guard)

// WithMinInterval enforces a minimum spacing between dispatches of a key
func WithMinInterval(d time.Duration) Option {
	return func(g *Guard) {
		g.minInterval = d
	}
}

// New creates a guard
func New(opts ...Option) *Guard {
	g := &Guard{
		inFlight: make(map[string]uint64),
		limiters: make(map[string]*rate.Limiter),
		pending:  make(map[string]*pendingCall),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Acquire admits a call for key. The returned release must be called once
// the call resolves; calling it more than once is harmless.
func (g *Guard) Acquire(key string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[key]; busy {
		return nil, ErrInFlight
	}
	if g.minInterval > 0 && !g.limiterLocked(key).Allow() {
		return nil, ErrThrottled
	}

	g.seq++
	token := g.seq
	g.inFlight[key] = token

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			if g.inFlight[key] == token {
				delete(g.inFlight, key)
			}
		})
	}, nil
}

func (g *Guard) limiterLocked(key string) *rate.Limiter {
	lim, ok := g.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(g.minInterval), 1)
		g.limiters[key] = lim
	}
	return lim
}

// Do runs fn under Acquire(key)
func (g *Guard) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	release, err := g.Acquire(key)
	if err != nil {
		return err
	}
	defer release()

	return fn(ctx)
}

// InFlight reports whether key has an outstanding call
func (g *Guard) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, busy := g.inFlight[key]
	return busy
}

// Debounce schedules fn to run after wait. A later Debounce for the same key
// inside the window replaces the earlier one, so only the last call runs.
// fn runs on its own goroutine.
func (g *Guard) Debounce(key string, wait time.Duration, fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, ok := g.pending[key]; ok {
		prev.timer.Stop()
	}

	call := &pendingCall{}
	g.pending[key] = call
	// the callback blocks on g.mu until call.timer is assigned
	call.timer = time.AfterFunc(wait, func() {
		g.mu.Lock()
		if g.pending[key] != call {
			g.mu.Unlock()
			return
		}
		delete(g.pending, key)
		g.mu.Unlock()

		fn()
	})
}

// Cancel drops a pending debounced call for key
func (g *Guard) Cancel(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if call, ok := g.pending[key]; ok {
		call.timer.Stop()
		delete(g.pending, key)
	}
}

// Forget drops throttle and debounce state for key. Outstanding calls keep
// their admission until released.
func (g *Guard) Forget(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if call, ok := g.pending[key]; ok {
		call.timer.Stop()
		delete(g.pending, key)
	}
	delete(g.limiters, key)
}
