// Package domainerrors provides coded errors that services return and the
// transport layer translates. Stores return sentinel errors (pkg/platform/sentinel)
// and services wrap them with a code here.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the class of failure. Generic codes cover infrastructure and
// validation; domain codes carry unlock business-rule denials end to end so the
// caller can distinguish them without string matching.
type Code string

const (
	// Generic codes.
	CodeValidation   Code = "validation"
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeTimeout      Code = "timeout"
	CodeRateLimited  Code = "rate_limited"
	CodeInternal     Code = "internal_error"

	// Unlock business-rule codes.
	CodePremiumRequired       Code = "premium_required"
	CodeNoUnlockCredit        Code = "no_unlock_credit"
	CodeMonthlyLimitReached   Code = "monthly_limit_reached"
	CodeStaleIdentityData     Code = "stale_identity_data"
	CodeFingerprintFailed     Code = "fingerprint_failed"
	CodeRetentionWait         Code = "retention_wait"
	CodeRetentionPaidRequired Code = "retention_paid_required"
	CodeSpecUnavailable       Code = "spec_unavailable"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match two coded errors by code and message, so tests can
// compare against a freshly constructed expectation.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err returns nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// Is reports whether err (or any error in its chain) carries the given code.
func Is(err error, code Code) bool {
	return GetCode(err) == code
}

// GetCode extracts the code from err, walking the wrap chain. Uncoded errors
// report CodeInternal so callers never branch on an absent code.
func GetCode(err error) Code {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Message returns the human-readable message of a coded error, or the raw
// error text for uncoded errors.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
