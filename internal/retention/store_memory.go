package retention

import (
	"context"
	"sync"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

// MemoryStore keeps retention rows in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[domain.Registration]*Status
}

// NewMemory constructs an in-memory retention store.
func NewMemory() *MemoryStore {
	return &MemoryStore{rows: make(map[domain.Registration]*Status)}
}

func (s *MemoryStore) Get(_ context.Context, reg domain.Registration) (*Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[reg]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (s *MemoryStore) Upsert(_ context.Context, status *Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *status
	if existing, ok := s.rows[status.Registration]; ok {
		// Repeated retention reports never hand back the free retry.
		cp.FreeRetryUsed = existing.FreeRetryUsed
	}
	s.rows[status.Registration] = &cp
	return nil
}

func (s *MemoryStore) MarkFreeRetryUsed(_ context.Context, reg domain.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.rows[reg]; ok {
		row.FreeRetryUsed = true
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, reg domain.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rows, reg)
	return nil
}
