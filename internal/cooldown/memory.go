package cooldown

import (
	"context"
	"sync"
	"time"

	"github.com/nao1215/exitswitch/internal/model"
)

// MemoryStore keeps rotation timestamps in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	last map[model.Tier]time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{last: make(map[model.Tier]time.Time)}
}

// Reserve implements Store.
func (s *MemoryStore) Reserve(_ context.Context, tier model.Tier, now time.Time, cooldown time.Duration) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if remaining := remainingAt(s.last[tier], now, cooldown); remaining > 0 {
		return remaining, nil
	}
	s.last[tier] = now
	return 0, nil
}

// Remaining implements Store.
func (s *MemoryStore) Remaining(_ context.Context, tier model.Tier, now time.Time, cooldown time.Duration) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return remainingAt(s.last[tier], now, cooldown), nil
}

// Shared implements Store. Memory is private to the process.
func (s *MemoryStore) Shared() bool {
	return false
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
