package provider

import (
	"context"

	"github.com/Digital-Creators-Team/reward-roulette-module/db/redis"
	"github.com/Digital-Creators-Team/reward-roulette-module/pkg/providers"
)

// StateStore persists reward documents in Redis. The ledger never expires:
// prizes stay claimable until an admin clears the game, so keys are written
// without TTL.
type StateStore struct {
	client *redis.Client
}

var _ providers.Store = (*StateStore)(nil)

// NewStateStore creates a Redis-backed store
func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{client: client}
}

// GetJSON implements providers.Store
func (s *StateStore) GetJSON(ctx context.Context, key string, dest interface{}) error {
	err := s.client.GetJSON(ctx, key, dest)
	if redis.IsNotFound(err) {
		return providers.ErrNotFound
	}
	return err
}

// SetJSON implements providers.Store
func (s *StateStore) SetJSON(ctx context.Context, key string, value interface{}) error {
	return s.client.SetJSON(ctx, key, value, 0)
}

// Delete implements providers.Store
func (s *StateStore) Delete(ctx context.Context, key string) error {
	return s.client.Delete(ctx, key)
}
