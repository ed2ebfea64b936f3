package credit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

// MemoryStore keeps ledger entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	clock   func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock sets the clock used to stamp CreatedAt when absent.
func WithClock(clock func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewMemory constructs an in-memory ledger store.
func NewMemory(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Balance(_ context.Context, requester domain.Requester) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	balance := 0
	for _, entry := range s.entries {
		if entry.Requester.Key() == requester.Key() {
			balance += entry.Delta
		}
	}
	return balance, nil
}

func (s *MemoryStore) Append(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock()
	}
	s.entries = append(s.entries, *entry)
	return nil
}

// Entries returns a copy of the ledger for a requester, oldest first.
// Test helper; the unlock flow only ever needs Balance.
func (s *MemoryStore) Entries(requester domain.Requester) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, entry := range s.entries {
		if entry.Requester.Key() == requester.Key() {
			out = append(out, entry)
		}
	}
	return out
}
