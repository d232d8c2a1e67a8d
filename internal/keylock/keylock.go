package keylock

import (
	"hash/fnv"
	"sync"
)

// DefaultStripes is used when New receives a non-positive stripe count.
const DefaultStripes = 64

type paddedMutex struct {
	mu sync.Mutex
	_  [56]byte
}

// Striped maps arbitrary string keys onto a fixed set of mutexes. Two calls
// with the same key always contend; unrelated keys contend only when they
// hash to the same stripe.
type Striped struct {
	stripes []paddedMutex
}

// New creates a Striped lock set with n stripes.
func New(n int) *Striped {
	if n <= 0 {
		n = DefaultStripes
	}
	return &Striped{stripes: make([]paddedMutex, n)}
}

// Lock acquires the stripe owning key and returns its unlock function.
func (s *Striped) Lock(key string) func() {
	mu := s.For(key)
	mu.Lock()
	return mu.Unlock
}

// For returns the mutex owning key.
func (s *Striped) For(key string) *sync.Mutex {
	return &s.stripes[Index(key, len(s.stripes))].mu
}

// Len returns the stripe count.
func (s *Striped) Len() int {
	return len(s.stripes)
}

// Index hashes key (FNV-1a) into [0, n).
func Index(key string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
