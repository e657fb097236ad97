package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/redis/go-redis/v9"
)

const stateKeyPrefix = "oauth:state:"

// StateStore issues single-use OAuth state values backed by Redis.
type StateStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewStateStore(rdb redis.Cmdable, ttl time.Duration) *StateStore {
	return &StateStore{rdb: rdb, ttl: ttl}
}

// Issue returns a fresh state value valid for the store's ttl.
func (s *StateStore) Issue(ctx context.Context) (string, error) {
	state, err := common.MakeRandHexString(16)
	if err != nil {
		return "", err
	}

	ok, err := s.rdb.SetNX(ctx, stateKeyPrefix+state, 1, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	if !ok {
		return "", errors.New("oauth state collision")
	}
	return state, nil
}

// Consume reports whether state was issued and not yet used, deleting it
// atomically so it cannot be replayed.
func (s *StateStore) Consume(ctx context.Context, state string) (bool, error) {
	if state == "" {
		return false, nil
	}

	_, err := s.rdb.GetDel(ctx, stateKeyPrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("consume oauth state: %w", err)
	}
	return true, nil
}
