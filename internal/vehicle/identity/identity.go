// Package identity exposes the registration core-identity cache: the
// authoritative lookup document for a VRM, fetched upstream and cached with an
// explicit TTL. The unlock core only reads it; refreshing is the caller's job.
package identity

import (
	"context"
	"time"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

// Document is the reduced authoritative lookup record for a registration.
// Field names follow the upstream vehicle enquiry payload.
type Document struct {
	Make                     string `json:"make"`
	MonthOfFirstRegistration string `json:"monthOfFirstRegistration"` // e.g. "2014-03"
	EngineCapacity           int    `json:"engineCapacity"`
	FuelType                 string `json:"fuelType"`
	BodyStyle                string `json:"bodyStyle"`
	EngineCode               string `json:"engineCode,omitempty"`
}

// CachedIdentity pairs a lookup document with the time it was fetched
// upstream. FetchedAt drives the 24h staleness gate in the unlock flow.
type CachedIdentity struct {
	Registration domain.Registration
	Document     Document
	FetchedAt    time.Time
}

// Age returns how long ago the document was fetched.
func (c *CachedIdentity) Age(now time.Time) time.Duration {
	return now.Sub(c.FetchedAt)
}

// Cache is the core-identity cache collaborator contract. Lookup returns nil
// when no document is cached for the registration.
type Cache interface {
	Lookup(ctx context.Context, reg domain.Registration) (*CachedIdentity, error)
	Put(ctx context.Context, entry *CachedIdentity) error
	Invalidate(ctx context.Context, reg domain.Registration) error
}
