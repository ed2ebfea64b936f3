// Package audit captures key unlock-flow actions for operational and
// compliance visibility. Events are transport-agnostic so publishers can fan
// out to logs, Kafka, or stores.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/requestcontext"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryFinancial covers credit consumption and purchase linkage.
	CategoryFinancial EventCategory = "financial"
	// CategoryOperations covers routine unlock and provider activity.
	CategoryOperations EventCategory = "operations"
)

// Actions emitted by the unlock core.
const (
	ActionSpecUnlocked       = "spec_unlocked"
	ActionCreditConsumed     = "credit_consumed"
	ActionRetentionReported  = "retention_reported"
	ActionRetentionCleared   = "retention_cleared"
	ActionPlateReuseDetected = "plate_reuse_detected"
)

// Event is one audited action.
type Event struct {
	Category      EventCategory `json:"category"`
	Timestamp     time.Time     `json:"timestamp"`
	Action        string        `json:"action"`
	Requester     string        `json:"requester,omitempty"`
	Registration  string        `json:"registration,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	RequestID     string        `json:"request_id,omitempty"`
}

// Publisher emits audit events to an external sink.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// LogAudit writes the event to the structured logger and, when a publisher is
// wired, emits it. Publisher failures are logged and swallowed: audit fan-out
// must never fail the unlock transaction.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher Publisher, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if logger != nil {
		logger.InfoContext(ctx, event.Action,
			"log_type", "audit",
			"category", event.Category,
			"requester", event.Requester,
			"registration", event.Registration,
			"transaction_id", event.TransactionID,
			"request_id", event.RequestID,
		)
	}
	if publisher == nil {
		return
	}
	if err := publisher.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
	}
}
