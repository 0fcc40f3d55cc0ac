package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/casedeskhq/casedesk/internal/repository"
)

const dedupePrefix = "webhook:seen:"

// RedisDedupeStore implements EventDedupeStore backed by Redis.
// Mailgun retries deliveries, so each event token is claimed once with a TTL
// covering the provider's retry horizon.
type RedisDedupeStore struct {
	client redis.UniversalClient
}

var _ repository.EventDedupeStore = (*RedisDedupeStore)(nil)

// NewRedisDedupeStore constructs a Redis-backed dedupe store.
func NewRedisDedupeStore(client redis.UniversalClient) *RedisDedupeStore {
	return &RedisDedupeStore{client: client}
}

// Claim marks the event token as processed. It returns false when the token
// was already claimed within the TTL window.
func (s *RedisDedupeStore) Claim(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, dedupePrefix+token, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim event: %w", err)
	}
	return ok, nil
}
