// Package snapshot is the content-addressed cache of fetched vehicle spec
// documents. One row per (registration, spec-content) generation, keyed by the
// identity fingerprint that produced it. Rows are immutable once created.
package snapshot

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

// DocumentMeta carries non-content flags attached to a spec document. The
// retention pair is set when the provider withheld the full record.
type DocumentMeta struct {
	Retention  bool       `json:"retention,omitempty"`
	RetryAfter *time.Time `json:"retryAfter,omitempty"`
}

// SpecDocument is a composed vehicle specification as returned by the
// provider pipeline. Content is opaque to this core; Meta is not.
type SpecDocument struct {
	Content json.RawMessage `json:"content"`
	Meta    DocumentMeta    `json:"meta"`
}

// TyreConfiguration is auxiliary fitment data from the secondary provider.
type TyreConfiguration struct {
	Axle        string `json:"axle"`
	Size        string `json:"size"`
	LoadIndex   string `json:"loadIndex,omitempty"`
	SpeedRating string `json:"speedRating,omitempty"`
}

// Snapshot is one immutable generation of a registration's spec. Many unlock
// records may reference the same snapshot.
type Snapshot struct {
	ID           uuid.UUID
	Registration domain.Registration
	SpecDocument SpecDocument
	Fingerprint  domain.Fingerprint
	EngineCode   string
	TyreData     []TyreConfiguration
	CreatedAt    time.Time
}
