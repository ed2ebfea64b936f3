package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

// MemoryStore keeps snapshots in process memory. Used by unit tests and the
// dev wiring; semantics mirror the Postgres store.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]*Snapshot
	byReg map[domain.Registration][]*Snapshot
	clock func() time.Time
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

// NewMemory constructs an in-memory snapshot store.
func NewMemory(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		byID:  make(map[uuid.UUID]*Snapshot),
		byReg: make(map[domain.Registration][]*Snapshot),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) MostRecent(_ context.Context, reg domain.Registration) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	generations := s.byReg[reg]
	if len(generations) == 0 {
		return nil, nil
	}
	latest := generations[len(generations)-1]
	cp := *latest
	return &cp, nil
}

func (s *MemoryStore) Create(_ context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = s.clock()
	}
	cp := *snap
	s.byID[cp.ID] = &cp
	s.byReg[cp.Registration] = append(s.byReg[cp.Registration], &cp)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *snap
	return &cp, nil
}
