// Package redis keeps alert and insight state and the per-batch submission
// lock in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mamadbah2/flockwatch/internal/domain/models"
)

const keyPrefix = "flockwatch:state:"

// StateStore persists the consumer-controlled state of keyed alerts.
type StateStore interface {
	Get(ctx context.Context, key string) (models.AlertState, bool, error)
	All(ctx context.Context) (map[string]models.AlertState, error)
	Put(ctx context.Context, key string, state models.AlertState) error
	Delete(ctx context.Context, keys ...string) error
}

// RedisStateStore keeps one Redis hash per namespace, one field per alert key.
type RedisStateStore struct {
	client goredis.UniversalClient
	hash   string
}

// NewStateStore returns a store writing into the hash for namespace.
func NewStateStore(client goredis.UniversalClient, namespace string) *RedisStateStore {
	return &RedisStateStore{client: client, hash: keyPrefix + namespace}
}

func (s *RedisStateStore) Get(ctx context.Context, key string) (models.AlertState, bool, error) {
	raw, err := s.client.HGet(ctx, s.hash, key).Result()
	if errors.Is(err, goredis.Nil) {
		return models.AlertState{}, false, nil
	}
	if err != nil {
		return models.AlertState{}, false, fmt.Errorf("read state %s: %w", key, err)
	}

	var state models.AlertState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return models.AlertState{}, false, fmt.Errorf("decode state %s: %w", key, err)
	}
	return state, true, nil
}

func (s *RedisStateStore) All(ctx context.Context) (map[string]models.AlertState, error) {
	raw, err := s.client.HGetAll(ctx, s.hash).Result()
	if err != nil {
		return nil, fmt.Errorf("read states: %w", err)
	}

	out := make(map[string]models.AlertState, len(raw))
	for key, value := range raw {
		var state models.AlertState
		if err := json.Unmarshal([]byte(value), &state); err != nil {
			return nil, fmt.Errorf("decode state %s: %w", key, err)
		}
		out[key] = state
	}
	return out, nil
}

func (s *RedisStateStore) Put(ctx context.Context, key string, state models.AlertState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", key, err)
	}
	if err := s.client.HSet(ctx, s.hash, key, payload).Err(); err != nil {
		return fmt.Errorf("write state %s: %w", key, err)
	}
	return nil
}

func (s *RedisStateStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, s.hash, keys...).Err(); err != nil {
		return fmt.Errorf("delete states: %w", err)
	}
	return nil
}

// MemoryStateStore is the in-process StateStore used when Redis is not configured.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]models.AlertState
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]models.AlertState)}
}

func (s *MemoryStateStore) Get(_ context.Context, key string) (models.AlertState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[key]
	return state, ok, nil
}

func (s *MemoryStateStore) All(_ context.Context) (map[string]models.AlertState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.AlertState, len(s.states))
	for k, v := range s.states {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStateStore) Put(_ context.Context, key string, state models.AlertState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[key] = state
	return nil
}

func (s *MemoryStateStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.states, k)
	}
	return nil
}
