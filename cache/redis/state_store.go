package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go.airavate.in/auth/cache"
)

// StateStore implements cache.StateStore on Redis so multiple service
// instances can share issued OAuth2 state values.
type StateStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStateStore creates a Redis-backed state store. A ttl of zero uses
// cache.DefaultStateTTL.
func NewStateStore(client *redis.Client, prefix string, ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = cache.DefaultStateTTL
	}
	return &StateStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *StateStore) redisKey(state string) string {
	return fmt.Sprintf("%s:oauth_state:%s", s.prefix, state)
}

func (s *StateStore) Put(ctx context.Context, state string) error {
	if err := s.client.Set(ctx, s.redisKey(state), 1, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store oauth state in Redis: %w", err)
	}
	return nil
}

func (s *StateStore) Consume(ctx context.Context, state string) (bool, error) {
	// GETDEL makes the consume atomic across instances.
	_, err := s.client.GetDel(ctx, s.redisKey(state)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume oauth state from Redis: %w", err)
	}
	return true, nil
}

var _ cache.StateStore = (*StateStore)(nil)
