package unlock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/platform/sentinel"
)

// MemoryRecordStore keeps unlock records in process memory, enforcing the same
// uniqueness invariants the Postgres constraints do.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records []*Record
	clock   func() time.Time
}

// MemoryRecordOption configures a MemoryRecordStore.
type MemoryRecordOption func(*MemoryRecordStore)

// WithRecordClock sets the clock used to stamp CreatedAt when absent.
func WithRecordClock(clock func() time.Time) MemoryRecordOption {
	return func(s *MemoryRecordStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewMemoryRecords constructs an in-memory unlock record store.
func NewMemoryRecords(opts ...MemoryRecordOption) *MemoryRecordStore {
	s := &MemoryRecordStore{clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryRecordStore) FindByTransactionID(_ context.Context, transactionID string) (*Record, error) {
	if transactionID == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.ExternalTransactionID == transactionID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryRecordStore) Find(_ context.Context, requester domain.Requester, reg domain.Registration) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.Requester.Key() == requester.Key() && rec.Registration == reg {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryRecordStore) Insert(_ context.Context, rec *Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.records {
		if existing.Requester.Key() == rec.Requester.Key() && existing.Registration == rec.Registration {
			return false, nil
		}
		if rec.ExternalTransactionID != "" && existing.ExternalTransactionID == rec.ExternalTransactionID {
			return false, nil
		}
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock()
	}
	cp := *rec
	s.records = append(s.records, &cp)
	return true, nil
}

func (s *MemoryRecordStore) Update(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.records {
		if existing.ID == rec.ID {
			continue
		}
		if rec.ExternalTransactionID != "" && existing.ExternalTransactionID == rec.ExternalTransactionID {
			return sentinel.ErrConflict
		}
	}
	for i, existing := range s.records {
		if existing.ID == rec.ID {
			cp := *rec
			cp.CreatedAt = existing.CreatedAt
			s.records[i] = &cp
			return nil
		}
	}
	return sentinel.ErrNotFound
}
