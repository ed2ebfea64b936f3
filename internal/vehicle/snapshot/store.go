package snapshot

import (
	"context"

	"github.com/google/uuid"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

// Store persists spec snapshots. Create always inserts a new generation; the
// caller owns the fingerprint comparison that decides whether one is needed.
type Store interface {
	// MostRecent returns the latest snapshot for a registration by creation
	// time, or nil when the registration has never been snapshotted.
	MostRecent(ctx context.Context, reg domain.Registration) (*Snapshot, error)

	// Create inserts a new snapshot row. It never deduplicates by content.
	Create(ctx context.Context, snap *Snapshot) error

	// Get returns a snapshot by id, or nil when absent.
	Get(ctx context.Context, id uuid.UUID) (*Snapshot, error)
}
