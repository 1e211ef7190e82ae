package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Rrens/partner-chat/internal/domain"
)

func TestGreetingKey(t *testing.T) {
	id := domain.Identity{UUID: "u-1", HospitalID: "h-9"}

	assert.Equal(t, "greeting:u-1:h-9:", greetingKey(domain.GreetingKey{Identity: id}))
	assert.Equal(t, "greeting:u-1:h-9:ab12", greetingKey(domain.GreetingKey{Identity: id, Profile: "ab12"}))
	assert.NotEqual(t,
		greetingKey(domain.GreetingKey{Identity: id, Profile: "ab12"}),
		greetingKey(domain.GreetingKey{Identity: id, Profile: "cd34"}))
}

func TestNewGreetingStoreDefaultsTTL(t *testing.T) {
	s := NewGreetingStore(nil, 0)
	assert.Equal(t, defaultGreetingTTL, s.ttl)

	s = NewGreetingStore(nil, time.Minute)
	assert.Equal(t, time.Minute, s.ttl)
}

func TestRateLimitKeyIsPerWindow(t *testing.T) {
	at := time.Date(2026, 10, 15, 9, 30, 12, 0, time.UTC)

	assert.Equal(t, rateLimitKey("u-1", at), rateLimitKey("u-1", at.Add(40*time.Second)))
	assert.NotEqual(t, rateLimitKey("u-1", at), rateLimitKey("u-1", at.Add(time.Minute)))
	assert.NotEqual(t, rateLimitKey("u-1", at), rateLimitKey("u-2", at))
}

func TestNewRateLimiterAddsBurst(t *testing.T) {
	assert.Equal(t, 70, NewRateLimiter(nil, 60, 10).limit)
}
