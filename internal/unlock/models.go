// Package unlock is the single transactional entry point of the spec-access
// core. It sequences dedupe, credit and entitlement gates, fingerprinting,
// retention policy, snapshot reuse and the final record/ledger writes inside
// one transaction boundary.
package unlock

import (
	"time"

	"github.com/google/uuid"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/vehicle/snapshot"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

// SourceChannel records which commercial channel produced an unlock.
type SourceChannel string

const (
	ChannelSubscription SourceChannel = "subscription"
	ChannelIAP          SourceChannel = "iap"
)

// Record is one granted unlock. At most one per (requester, registration)
// under normal operation; effectively append-only.
type Record struct {
	ID            uuid.UUID
	Requester     domain.Requester
	Registration  domain.Registration
	SnapshotID    uuid.UUID
	UnlockType    domain.UnlockSource
	SourceChannel SourceChannel
	// ExternalTransactionID links a paid unlock to the store purchase that
	// funded it; unique when present so one purchase never credits twice.
	ExternalTransactionID string
	ProductID             string
	Platform              domain.Platform
	// EntitlementCycleRef ties a free unlock to the billing cycle it consumed.
	EntitlementCycleRef string
	CreatedAt           time.Time
}

// Request is the caller's unlock intent. Source may be empty; see
// DefaultSource for how it is resolved.
type Request struct {
	Registration  domain.Registration
	Requester     domain.Requester
	TransactionID string
	ProductID     string
	Platform      domain.Platform
	Source        domain.UnlockSource
}

// DefaultSource resolves an unset source: paid when both transaction and
// product identifiers are present, free otherwise.
func (r Request) DefaultSource() domain.UnlockSource {
	if r.Source != "" {
		return r.Source
	}
	if r.TransactionID != "" && r.ProductID != "" {
		return domain.UnlockSourcePaid
	}
	return domain.UnlockSourceFree
}

// Result is the success payload of an unlock call.
type Result struct {
	AlreadyUnlocked bool
	SnapshotID      uuid.UUID
	Spec            snapshot.SpecDocument
	Retention       bool
	RetryAfter      *time.Time
}

func resultFromSnapshot(snap *snapshot.Snapshot, alreadyUnlocked bool) *Result {
	return &Result{
		AlreadyUnlocked: alreadyUnlocked,
		SnapshotID:      snap.ID,
		Spec:            snap.SpecDocument,
		Retention:       snap.SpecDocument.Meta.Retention,
		RetryAfter:      snap.SpecDocument.Meta.RetryAfter,
	}
}
