package domain

import (
	"regexp"
	"strings"

	dErrors "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain-errors"
)

// Registration is a normalized vehicle registration mark (VRM): upper-cased,
// spaces stripped. The same physical plate always normalizes to the same value
// so snapshot and retention rows key consistently.
type Registration string

var vrmPattern = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)

// ParseRegistration normalizes and validates a VRM from external input.
func ParseRegistration(s string) (Registration, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	if normalized == "" {
		return "", dErrors.New(dErrors.CodeValidation, "registration is required")
	}
	if !vrmPattern.MatchString(normalized) {
		return "", dErrors.New(dErrors.CodeValidation, "registration must be 2-10 alphanumeric characters")
	}
	return Registration(normalized), nil
}

func (r Registration) String() string { return string(r) }
func (r Registration) IsNil() bool    { return r == "" }
