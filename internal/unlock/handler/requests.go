package handler

import (
	"strings"

	id "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
	dErrors "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain-errors"
)

// UnlockRequest is the HTTP request body for POST /vehicles/{vrm}/unlock.
// The whole body is optional; a paid unlock supplies the purchase fields.
type UnlockRequest struct {
	TransactionID string `json:"transaction_id"`
	ProductID     string `json:"product_id"`
	Platform      string `json:"platform"`
	Source        string `json:"source"`

	// Parsed values (populated by Validate)
	parsedPlatform id.Platform
	parsedSource   id.UnlockSource
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *UnlockRequest) Validate() error {
	if r == nil {
		return nil
	}

	r.TransactionID = strings.TrimSpace(r.TransactionID)
	r.ProductID = strings.TrimSpace(r.ProductID)
	if len(r.TransactionID) > 128 {
		return dErrors.New(dErrors.CodeValidation, "transaction_id must be at most 128 characters")
	}
	if len(r.ProductID) > 128 {
		return dErrors.New(dErrors.CodeValidation, "product_id must be at most 128 characters")
	}

	// Purchase fields travel together.
	if (r.TransactionID == "") != (r.ProductID == "") {
		return dErrors.New(dErrors.CodeValidation, "transaction_id and product_id must be provided together")
	}

	platform, err := id.ParsePlatform(strings.TrimSpace(r.Platform))
	if err != nil {
		return err
	}
	r.parsedPlatform = platform

	if src := strings.TrimSpace(r.Source); src != "" {
		source, err := id.ParseUnlockSource(src)
		if err != nil {
			return err
		}
		if source == id.UnlockSourcePaid && r.TransactionID == "" {
			return dErrors.New(dErrors.CodeValidation, "paid unlock requires transaction_id and product_id")
		}
		r.parsedSource = source
	}

	return nil
}

// ParsedPlatform returns the validated purchase platform.
func (r *UnlockRequest) ParsedPlatform() id.Platform {
	return r.parsedPlatform
}

// ParsedSource returns the validated unlock source, or "" when the service
// should infer it from the purchase fields.
func (r *UnlockRequest) ParsedSource() id.UnlockSource {
	return r.parsedSource
}
