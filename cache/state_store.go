// Package cache provides short-lived stores for OAuth2 state values.
// The state issued with an authorization URL is kept here and consumed
// exactly once when the provider redirects back, which is what ties the
// authorize and callback legs together against CSRF.
package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultStateTTL bounds how long an issued state stays redeemable.
const DefaultStateTTL = 10 * time.Minute

// StateStore persists issued OAuth2 state values until the callback
// consumes them.
type StateStore interface {
	// Put records a freshly issued state value.
	Put(ctx context.Context, state string) error

	// Consume removes the state and reports whether it was present.
	// A state can be consumed at most once.
	Consume(ctx context.Context, state string) (bool, error)
}

// MemoryStateStore is an in-process StateStore backed by a TTL cache.
// Suitable for single-instance deployments; multi-instance setups should
// use the Redis implementation.
type MemoryStateStore struct {
	cache *ttlcache.Cache[string, struct{}]
}

// NewMemoryStateStore creates a MemoryStateStore. A ttl of zero uses
// DefaultStateTTL.
func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	c := ttlcache.New(
		ttlcache.WithTTL[string, struct{}](ttl),
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	go c.Start()
	return &MemoryStateStore{cache: c}
}

// Stop shuts down the background expiry goroutine.
func (s *MemoryStateStore) Stop() {
	s.cache.Stop()
}

func (s *MemoryStateStore) Put(_ context.Context, state string) error {
	s.cache.Set(state, struct{}{}, ttlcache.DefaultTTL)
	return nil
}

func (s *MemoryStateStore) Consume(_ context.Context, state string) (bool, error) {
	if item := s.cache.Get(state); item != nil {
		s.cache.Delete(state)
		return true, nil
	}
	return false, nil
}

var _ StateStore = (*MemoryStateStore)(nil)
