package retention

import (
	"time"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
	dErrors "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain-errors"
)

// Decision is the outcome of gating an unlock attempt against the machine.
type Decision struct {
	// IsRetentionRetry marks the single free retry granted after the window
	// elapses. The orchestrator skips monthly quota consumption on this pass.
	IsRetentionRetry bool
	// MarkFreeRetryUsed tells the caller to persist the consumed retry before
	// proceeding, so a second free attempt cannot claim it.
	MarkFreeRetryUsed bool
}

// Gate applies the retention policy to an unlock attempt. It runs before any
// provider call. A nil status (state NONE) always passes.
func Gate(status *Status, source domain.UnlockSource, now time.Time) (Decision, error) {
	switch status.State(now) {
	case StateNone:
		return Decision{}, nil

	case StateInRetention:
		// Hard gate for every consumption path until the window elapses.
		return Decision{}, dErrors.Newf(dErrors.CodeRetentionWait,
			"vehicle record in retention, retry after %s", status.RetryAfter.UTC().Format(time.RFC3339))

	case StateRetryEligible:
		if source == domain.UnlockSourcePaid {
			return Decision{}, nil
		}
		if status.FreeRetryUsed {
			return Decision{}, dErrors.New(dErrors.CodeRetentionPaidRequired,
				"free retention retry already used, paid unlock required")
		}
		return Decision{IsRetentionRetry: true, MarkFreeRetryUsed: true}, nil
	}
	return Decision{}, dErrors.New(dErrors.CodeInternal, "unknown retention state")
}

// NewStatus builds the row persisted when the provider reports retention.
// FreeRetryUsed is deliberately absent: the store's upsert preserves any
// previously consumed retry across repeated retention reports.
func NewStatus(reg domain.Registration, statusCode string, now time.Time) *Status {
	return &Status{
		Registration:  reg,
		StatusCode:    statusCode,
		LastCheckedAt: now,
		RetryAfter:    now.Add(RetryWindow),
	}
}
