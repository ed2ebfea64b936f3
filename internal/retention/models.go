// Package retention tracks the provider's "plate in retention" condition per
// registration: a temporary withholding of vehicle data, subject to a 7-day
// backoff and a single free retry before the paid path is forced.
package retention

import (
	"time"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

// RetryWindow is how long a registration stays hard-gated after the provider
// reports retention.
const RetryWindow = 7 * 24 * time.Hour

// State of the per-registration machine.
//
//	NONE -> IN_RETENTION      provider reports the retention code
//	IN_RETENTION -> RETRY_ELIGIBLE   retry window elapses
//	RETRY_ELIGIBLE -> NONE    provider returns full data
type State string

const (
	StateNone          State = "NONE"
	StateInRetention   State = "IN_RETENTION"
	StateRetryEligible State = "RETRY_ELIGIBLE"
)

// Status is the persisted row behind the state machine. One row per
// registration; deleting the row returns the machine to NONE.
type Status struct {
	Registration  domain.Registration
	StatusCode    string
	LastCheckedAt time.Time
	RetryAfter    time.Time
	FreeRetryUsed bool
}

// State derives the machine state at a point in time. A nil Status is NONE.
func (s *Status) State(now time.Time) State {
	if s == nil {
		return StateNone
	}
	if now.Before(s.RetryAfter) {
		return StateInRetention
	}
	return StateRetryEligible
}
