package credit

import (
	"context"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

// Store persists ledger entries. Append-only by contract: implementations
// expose no update or delete.
type Store interface {
	// Balance returns the sum of deltas for a requester. Zero when no entries.
	Balance(ctx context.Context, requester domain.Requester) (int, error)

	// Append adds one entry to the ledger.
	Append(ctx context.Context, entry *Entry) error
}
