// Package domain holds typed identifiers and parsed domain primitives.
// Construct values via the Parse functions at trust boundaries; direct casting
// bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain-errors"
)

// AccountID identifies an authenticated account.
type AccountID uuid.UUID

// GuestID identifies an anonymous device-bound guest.
type GuestID uuid.UUID

func (id AccountID) String() string { return uuid.UUID(id).String() }
func (id AccountID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id GuestID) String() string { return uuid.UUID(id).String() }
func (id GuestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// ParseAccountID validates and returns an AccountID.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return AccountID{}, err
	}
	return AccountID(u), nil
}

// ParseGuestID validates and returns a GuestID.
func ParseGuestID(s string) (GuestID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return GuestID{}, err
	}
	return GuestID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeValidation, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id cannot be the nil UUID")
	}
	return u, nil
}

// Requester is the identity an unlock is attributed to. Exactly one of
// Account/Guest is set; NewAccountRequester and NewGuestRequester are the only
// constructors so the invariant holds by construction.
type Requester struct {
	Account AccountID
	Guest   GuestID
}

func NewAccountRequester(id AccountID) Requester { return Requester{Account: id} }
func NewGuestRequester(id GuestID) Requester     { return Requester{Guest: id} }

// IsAccount reports whether the requester is an authenticated account.
func (r Requester) IsAccount() bool { return !r.Account.IsNil() }

// Valid reports whether exactly one identity is attached.
func (r Requester) Valid() bool {
	return r.Account.IsNil() != r.Guest.IsNil()
}

// Key returns a stable string key for locking and store indexing.
func (r Requester) Key() string {
	if r.IsAccount() {
		return "acct:" + r.Account.String()
	}
	return "guest:" + r.Guest.String()
}

func (r Requester) String() string { return r.Key() }
