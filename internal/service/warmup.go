package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/partner-chat/internal/domain"
	"github.com/Rrens/partner-chat/internal/guard"
	"github.com/Rrens/partner-chat/internal/partner"
)

const (
	DefaultWarmupTimeout  = 10 * time.Second
	DefaultWarmupDebounce = 150 * time.Millisecond
)

// WarmupOptions tunes a WarmupCache
type WarmupOptions struct {
	Timeout  time.Duration
	Debounce time.Duration
}

// WarmupCache binds sessions to a server-issued id ahead of the first message.
// Warmup is best effort: failures are logged and the local id stays in use.
// Every session runs its own exchange; the optional greeting store only lets
// a known greeting show before the exchange returns.
type WarmupCache struct {
	transport partner.Transport
	notifier  domain.Notifier
	guard     *guard.Guard
	store     domain.GreetingStore
	timeout   time.Duration
	debounce  time.Duration
}

// NewWarmupCache creates a warmup cache. store may be nil.
func NewWarmupCache(transport partner.Transport, notifier domain.Notifier, g *guard.Guard, store domain.GreetingStore, opts WarmupOptions) *WarmupCache {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if g == nil {
		g = guard.New()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultWarmupTimeout
	}
	if opts.Debounce < 0 {
		opts.Debounce = 0
	}

	return &WarmupCache{
		transport: transport,
		notifier:  notifier,
		guard:     g,
		store:     store,
		timeout:   opts.Timeout,
		debounce:  opts.Debounce,
	}
}

func warmupKey(session *domain.ChatSession) string {
	return "warmup:" + session.LocalID()
}

// Warmup schedules the pre-flight exchange for session and returns at once.
// Repeated calls inside the debounce window collapse into one exchange.
func (w *WarmupCache) Warmup(session *domain.ChatSession) {
	if session.WarmedUp() || session.Closed() {
		return
	}
	w.guard.Debounce(warmupKey(session), w.debounce, func() {
		w.run(session)
	})
}

// Cancel drops a pending warmup for session
func (w *WarmupCache) Cancel(session *domain.ChatSession) {
	w.guard.Forget(warmupKey(session))
}

func (w *WarmupCache) run(session *domain.ChatSession) {
	if session.WarmedUp() || session.Closed() {
		return
	}

	logger := log.With().Str("session_id", session.LocalID()).Logger()

	release, err := w.guard.Acquire(warmupKey(session))
	if err != nil {
		logger.Debug().Err(err).Msg("warmup skipped")
		return
	}
	defer release()

	ctx, cancel := context.WithTimeout(session.Context(), w.timeout)
	defer cancel()

	key, cacheable := w.greetingKey(session)
	primed := ""
	if cacheable {
		primed = w.cachedGreeting(ctx, session, key)
		if primed != "" && session.PrimeGreeting(primed) {
			w.notifier.GreetingReady(session.LocalID(), primed)
		}
	}

	id := session.Identity()
	resp, err := w.transport.Warmup(ctx, partner.WarmupRequest{
		UUID:       id.UUID,
		HospitalID: id.HospitalID,
		HealthData: session.HealthData(),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("warmup failed")
		return
	}
	if cacheable && resp.Greeting != "" {
		w.remember(ctx, session, key, resp.Greeting)
	}

	if session.Closed() {
		return
	}
	session.Bind(resp.SessionID, resp.Greeting)

	if resp.Greeting != "" && resp.Greeting != primed {
		w.notifier.GreetingReady(session.LocalID(), resp.Greeting)
	}
	logger.Info().
		Str("canonical_id", session.CanonicalID()).
		Bool("greeting_cached", primed != "").
		Msg("session warmed up")
}

// greetingKey scopes a cached greeting to the identity and the exact health
// data of session. It reports false when there is no store or the health
// data cannot be fingerprinted.
func (w *WarmupCache) greetingKey(session *domain.ChatSession) (domain.GreetingKey, bool) {
	if w.store == nil {
		return domain.GreetingKey{}, false
	}

	profile, err := profileDigest(session.HealthData())
	if err != nil {
		log.Debug().Err(err).Str("session_id", session.LocalID()).Msg("health data not cacheable")
		return domain.GreetingKey{}, false
	}
	return domain.GreetingKey{Identity: session.Identity(), Profile: profile}, true
}

// profileDigest fingerprints health data; no data yields ""
func profileDigest(healthData any) (string, error) {
	if healthData == nil {
		return "", nil
	}

	data, err := json.Marshal(healthData)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8]), nil
}

func (w *WarmupCache) cachedGreeting(ctx context.Context, session *domain.ChatSession, key domain.GreetingKey) string {
	greeting, err := w.store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("session_id", session.LocalID()).Msg("greeting lookup failed")
		return ""
	}
	return greeting
}

func (w *WarmupCache) remember(ctx context.Context, session *domain.ChatSession, key domain.GreetingKey, greeting string) {
	if err := w.store.Set(ctx, key, greeting); err != nil {
		log.Warn().Err(err).Str("session_id", session.LocalID()).Msg("failed to cache greeting")
	}
}
