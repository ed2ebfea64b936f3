// Package credit is the append-only signed-delta ledger behind pay-per-unlock
// credits. Balance is the sum of a requester's deltas; entries are never
// updated or deleted. Grants come from the purchase-confirmation collaborator,
// consumption from the unlock flow.
package credit

import (
	"time"

	"github.com/google/uuid"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

// Entry reasons.
const (
	ReasonPurchaseGrant = "purchase_grant"
	ReasonUnlockConsume = "unlock_consume"
)

// Entry is one signed ledger line.
type Entry struct {
	ID        uuid.UUID
	Requester domain.Requester
	Delta     int
	Reason    string
	// TransactionID links the entry to the external payment transaction that
	// motivated it, when one exists.
	TransactionID string
	CreatedAt     time.Time
}

// NewGrant builds a positive entry for a confirmed purchase.
func NewGrant(requester domain.Requester, credits int, transactionID string) *Entry {
	return &Entry{
		Requester:     requester,
		Delta:         credits,
		Reason:        ReasonPurchaseGrant,
		TransactionID: transactionID,
	}
}

// NewConsume builds the single -1 entry a successful paid unlock appends.
func NewConsume(requester domain.Requester, transactionID string) *Entry {
	return &Entry{
		Requester:     requester,
		Delta:         -1,
		Reason:        ReasonUnlockConsume,
		TransactionID: transactionID,
	}
}
