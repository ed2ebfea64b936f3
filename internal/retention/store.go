package retention

import (
	"context"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

// Store persists retention rows. Pure I/O; transitions live in machine.go.
type Store interface {
	// Get returns the row for a registration, or nil when the machine is NONE.
	Get(ctx context.Context, reg domain.Registration) (*Status, error)

	// Upsert writes the retention report. On an existing row it refreshes
	// status code, last-checked and retry-after but preserves FreeRetryUsed.
	Upsert(ctx context.Context, status *Status) error

	// MarkFreeRetryUsed records consumption of the one free retry.
	MarkFreeRetryUsed(ctx context.Context, reg domain.Registration) error

	// Clear deletes the row entirely, returning the machine to NONE.
	Clear(ctx context.Context, reg domain.Registration) error
}
