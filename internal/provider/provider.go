// Package provider defines the external data-provider collaborator contracts
// the unlock flow consumes. Implementations enforce their own bounded
// timeouts; callers treat any failure as recoverable.
package provider

import (
	"context"
	"encoding/json"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/vehicle/snapshot"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

// StatusCode is the provider's verdict on a spec fetch.
type StatusCode string

const (
	StatusSuccess                  StatusCode = "Success"
	StatusSuccessWithBlockWarnings StatusCode = "SuccessWithResultsBlockWarnings"
	// StatusPlateInRetention means the record is temporarily withheld (e.g.
	// pending paperwork) and only data for the plate's previous vehicle, or
	// nothing at all, was returned.
	StatusPlateInRetention StatusCode = "PlateInRetentionLastVehicleReturned"
)

// IsRetention reports whether the code is the retention failure mode.
func (c StatusCode) IsRetention() bool {
	return c == StatusPlateInRetention
}

// IsFullSuccess reports whether the provider returned the complete record.
// Block warnings still count: the document is whole, individual result blocks
// merely carry caveats.
func (c StatusCode) IsFullSuccess() bool {
	return c == StatusSuccess || c == StatusSuccessWithBlockWarnings
}

// SpecResult is the outcome of a spec fetch. Document may be nil (nothing
// returned) or partial (retention with last-vehicle data).
type SpecResult struct {
	Document   *snapshot.SpecDocument
	Status     StatusCode
	EngineCode string
}

// Clone returns a copy whose document the caller may annotate freely. Shared
// results, such as a collapsed concurrent fetch, must be cloned per consumer
// before any metadata write.
func (r *SpecResult) Clone() *SpecResult {
	out := *r
	if r.Document != nil {
		doc := *r.Document
		doc.Content = append(json.RawMessage(nil), r.Document.Content...)
		out.Document = &doc
	}
	return &out
}

// SpecProvider fetches composed vehicle specification documents.
type SpecProvider interface {
	Fetch(ctx context.Context, reg domain.Registration) (*SpecResult, error)
}

// TyreProvider fetches auxiliary tyre fitment data. Strictly best-effort for
// the unlock flow: failures are logged and treated as absent data.
type TyreProvider interface {
	Fetch(ctx context.Context, reg domain.Registration) ([]snapshot.TyreConfiguration, error)
}
