package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/providerpath/providerpath-sso/internal/domain"
)

const stateKeyPrefix = "oauth:state:"

// RedisStateStore implements StateStore on Redis. GETDEL makes redeeming
// a state value atomic, so concurrent callbacks with the same state can
// never both succeed.
type RedisStateStore struct {
	client *redis.Client
}

func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func (s *RedisStateStore) Save(ctx context.Context, state *domain.AuthState, ttl time.Duration) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal auth state: %w", err)
	}
	if err := s.client.Set(ctx, stateKeyPrefix+state.State, payload, ttl).Err(); err != nil {
		return fmt.Errorf("save auth state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Consume(ctx context.Context, state string) (*domain.AuthState, error) {
	payload, err := s.client.GetDel(ctx, stateKeyPrefix+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrStateMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("consume auth state: %w", err)
	}

	var stored domain.AuthState
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal auth state: %w", err)
	}
	return &stored, nil
}
