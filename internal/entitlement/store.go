package entitlement

import (
	"context"
	"time"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

// Store persists entitlements.
type Store interface {
	// Active returns the entitlement with the latest ActiveUntil among rows
	// matching the requester where ActiveUntil > now, or nil when none.
	Active(ctx context.Context, requester domain.Requester, now time.Time) (*Entitlement, error)

	// ConsumeMonthlyUnlock atomically increments MonthlyUnlocksUsed on the
	// requester's current entitlement, but only while ActiveUntil > now and
	// the cap has not been reached. Returns false with no mutation when the
	// guard fails. Must be a single conditional update so concurrent callers
	// cannot both pass the guard.
	ConsumeMonthlyUnlock(ctx context.Context, requester domain.Requester, now time.Time) (bool, error)

	// Save upserts an entitlement row. Called by billing collaborators
	// (grants, renewals, cycle resets), not by the unlock flow.
	Save(ctx context.Context, ent *Entitlement) error
}
