package entitlement

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

// MemoryStore keeps entitlements in process memory. The single mutex gives the
// same all-or-nothing consume semantics the Postgres conditional update does.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*Entitlement
}

// NewMemory constructs an in-memory entitlement store.
func NewMemory() *MemoryStore {
	return &MemoryStore{rows: make(map[uuid.UUID]*Entitlement)}
}

func (s *MemoryStore) Active(_ context.Context, requester domain.Requester, now time.Time) (*Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent := s.latestActive(requester, now)
	if ent == nil {
		return nil, nil
	}
	cp := *ent
	return &cp, nil
}

func (s *MemoryStore) ConsumeMonthlyUnlock(_ context.Context, requester domain.Requester, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent := s.latestActive(requester, now)
	if ent == nil || ent.MonthlyUnlocksUsed >= MonthlyUnlockCap {
		return false, nil
	}
	ent.MonthlyUnlocksUsed++
	return true, nil
}

func (s *MemoryStore) Save(_ context.Context, ent *Entitlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent.ID == uuid.Nil {
		ent.ID = uuid.New()
	}
	cp := *ent
	s.rows[cp.ID] = &cp
	return nil
}

func (s *MemoryStore) latestActive(requester domain.Requester, now time.Time) *Entitlement {
	var latest *Entitlement
	for _, ent := range s.rows {
		if ent.Requester.Key() != requester.Key() || !ent.ActiveUntil.After(now) {
			continue
		}
		if latest == nil || ent.ActiveUntil.After(latest.ActiveUntil) {
			latest = ent
		}
	}
	return latest
}
