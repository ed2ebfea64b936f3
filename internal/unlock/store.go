package unlock

import (
	"context"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/credit"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/entitlement"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/retention"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/vehicle/snapshot"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

// RecordStore persists unlock records. Uniqueness on (requester, registration)
// and on external_transaction_id is an explicit store invariant; Insert
// reports whether the row was genuinely new so the orchestrator can decide
// whether side effects (ledger consume) are owed.
type RecordStore interface {
	// FindByTransactionID returns the record referencing an external payment
	// transaction, or nil.
	FindByTransactionID(ctx context.Context, transactionID string) (*Record, error)

	// Find returns the requester's record for a registration, or nil.
	Find(ctx context.Context, requester domain.Requester, reg domain.Registration) (*Record, error)

	// Insert writes the record unless a conflicting row already exists.
	// Returns false (and no error) when a concurrent duplicate won the race.
	Insert(ctx context.Context, rec *Record) (bool, error)

	// Update repoints an existing record (matched by ID) at a new snapshot
	// and refreshes its commercial fields. Used when a registration has been
	// reassigned to a different vehicle since the original unlock.
	Update(ctx context.Context, rec *Record) error
}

// Stores bundles the transaction-scoped stores one unlock call works against.
// All reads and writes through a bundle commit or roll back as a unit.
type Stores struct {
	Records      RecordStore
	Snapshots    snapshot.Store
	Entitlements entitlement.Store
	Credits      credit.Store
	Retention    retention.Store
}

// Tx is the transactional boundary around one unlock call. An error from fn
// rolls back every mutation performed through the bundle.
type Tx interface {
	RunInTx(ctx context.Context, requester domain.Requester, fn func(s Stores) error) error
}
