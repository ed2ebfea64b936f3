// Package entitlement resolves subscription state for a requester: whether a
// premium entitlement is active and how many of the capped monthly free
// unlocks its current billing cycle has consumed. Cycle resets and grants are
// written by the billing collaborators; this core only reads and consumes.
package entitlement

import (
	"time"

	"github.com/google/uuid"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

// MonthlyUnlockCap is the number of free unlocks one billing cycle grants.
const MonthlyUnlockCap = 3

// Entitlement is a subscription-style grant. Active iff ActiveUntil > now.
type Entitlement struct {
	ID                 uuid.UUID
	Requester          domain.Requester
	ActiveUntil        time.Time
	MonthlyUnlocksUsed int
	// CycleOriginalRef is the store transaction that opened the subscription;
	// CycleLatestRef is the most recent renewal. Both come from the billing
	// collaborator and are carried onto unlock records for reconciliation.
	CycleOriginalRef string
	CycleLatestRef   string
}

// Active reports whether the entitlement grants premium at the given time.
func (e *Entitlement) Active(now time.Time) bool {
	return e != nil && e.ActiveUntil.After(now)
}

// HasRemainingUnlocks reports whether the current cycle can still consume a
// free unlock. Advisory only: the store's conditional update is the guard.
func (e *Entitlement) HasRemainingUnlocks() bool {
	return e != nil && e.MonthlyUnlocksUsed < MonthlyUnlockCap
}
