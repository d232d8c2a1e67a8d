package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/goGuard/internal/keylock"
)

// Store persists rate limit state. Apply must be atomic per key: the load,
// the step and the write happen without interleaving another Apply on the
// same key.
type Store interface {
	Apply(ctx context.Context, key string, cfg Config, now time.Time) (State, bool, error)
	Get(ctx context.Context, key string) (State, bool, error)
	Delete(ctx context.Context, key string) error
}

type memoryShard struct {
	mu     sync.Mutex
	states map[string]State
}

// MemoryStore keeps state in process, split across shards selected by key
// hash.
type MemoryStore struct {
	shards []memoryShard
}

// NewMemoryStore creates a MemoryStore with n shards.
func NewMemoryStore(n int) *MemoryStore {
	if n <= 0 {
		n = keylock.DefaultStripes
	}
	s := &MemoryStore{shards: make([]memoryShard, n)}
	for i := range s.shards {
		s.shards[i].states = make(map[string]State)
	}
	return s
}

func (s *MemoryStore) shard(key string) *memoryShard {
	return &s.shards[keylock.Index(key, len(s.shards))]
}

func (s *MemoryStore) Apply(_ context.Context, key string, cfg Config, now time.Time) (State, bool, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, exists := sh.states[key]
	next, allowed := Apply(cfg, st, exists, now)
	sh.states[key] = next
	return next, allowed, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (State, bool, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.states[key]
	return st, ok, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	sh := s.shard(key)
	sh.mu.Lock()
	delete(sh.states, key)
	sh.mu.Unlock()
	return nil
}
