package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rrens/partner-chat/internal/domain"
)

const (
	greetingPrefix     = "greeting:"
	defaultGreetingTTL = 10 * time.Minute
)

// GreetingStore caches warmup greetings per identity and health profile.
// It implements domain.GreetingStore.
type GreetingStore struct {
	client *Client
	ttl    time.Duration
}

// NewGreetingStore creates a greeting store whose entries expire after ttl
func NewGreetingStore(client *Client, ttl time.Duration) *GreetingStore {
	if ttl <= 0 {
		ttl = defaultGreetingTTL
	}
	return &GreetingStore{client: client, ttl: ttl}
}

func greetingKey(key domain.GreetingKey) string {
	return fmt.Sprintf("%s%s:%s:%s", greetingPrefix, key.Identity.UUID, key.Identity.HospitalID, key.Profile)
}

// Get returns the cached greeting of key, or "" on a miss
func (s *GreetingStore) Get(ctx context.Context, key domain.GreetingKey) (string, error) {
	greeting, err := s.client.rdb.Get(ctx, greetingKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read greeting: %w", err)
	}
	return greeting, nil
}

// Set caches greeting for key
func (s *GreetingStore) Set(ctx context.Context, key domain.GreetingKey, greeting string) error {
	if err := s.client.rdb.Set(ctx, greetingKey(key), greeting, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache greeting: %w", err)
	}
	return nil
}
