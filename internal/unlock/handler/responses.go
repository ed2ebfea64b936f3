package handler

import (
	"encoding/json"
	"time"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/unlock"
)

// UnlockResponse is the HTTP response body for a granted unlock.
type UnlockResponse struct {
	AlreadyUnlocked bool            `json:"already_unlocked"`
	SnapshotID      string          `json:"snapshot_id"`
	Spec            json.RawMessage `json:"spec"`
	Retention       bool            `json:"retention"`
	RetryAfter      *time.Time      `json:"retry_after,omitempty"`
}

// FromResult maps a service result to the response body.
func FromResult(result *unlock.Result) UnlockResponse {
	return UnlockResponse{
		AlreadyUnlocked: result.AlreadyUnlocked,
		SnapshotID:      result.SnapshotID.String(),
		Spec:            result.Spec.Content,
		Retention:       result.Retention,
		RetryAfter:      result.RetryAfter,
	}
}
