package approval

import (
	"context"
	"sort"
	"sync"
)

// Store persists proposals. The guard serializes writes per proposal ID, so
// implementations only need to be safe for concurrent use across IDs.
type Store interface {
	Create(ctx context.Context, p Proposal) error
	Get(ctx context.Context, id string) (Proposal, error)
	Update(ctx context.Context, p Proposal) error
	List(ctx context.Context) ([]Proposal, error)
}

// MemoryStore keeps proposals in process.
type MemoryStore struct {
	mu        sync.RWMutex
	proposals map[string]Proposal
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{proposals: make(map[string]Proposal)}
}

func (s *MemoryStore) Create(_ context.Context, p Proposal) error {
	s.mu.Lock()
	s.proposals[p.ID] = p.clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Proposal, error) {
	s.mu.RLock()
	p, ok := s.proposals[id]
	s.mu.RUnlock()
	if !ok {
		return Proposal{}, ErrNotFound
	}
	return p.clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, p Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.proposals[p.ID]; !ok {
		return ErrNotFound
	}
	s.proposals[p.ID] = p.clone()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]Proposal, error) {
	s.mu.RLock()
	out := make([]Proposal, 0, len(s.proposals))
	for _, p := range s.proposals {
		out = append(out, p.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
