// Package fingerprint derives a stable content fingerprint from a vehicle's
// core identity attributes. The fingerprint detects plate reuse: the same
// registration producing a different fingerprint over time means the plate now
// refers to a different physical vehicle.
package fingerprint

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/vehicle/identity"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
	dErrors "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain-errors"
)

// CoreIdentity is the minimal attribute set a fingerprint is computed over.
// Timestamps, generation versions and other non-identity metadata are
// deliberately excluded so they can never cause a false mismatch.
type CoreIdentity struct {
	Make                   string
	FirstRegistrationMonth string
	EngineCapacityCc       int
	FuelType               string
	BodyStyle              string
}

// FromDocument reduces a cached lookup document to a CoreIdentity. Make is the
// only attribute that must be present; the rest degrade to zero values, which
// still fingerprint deterministically.
func FromDocument(doc identity.Document) (CoreIdentity, error) {
	if strings.TrimSpace(doc.Make) == "" {
		return CoreIdentity{}, dErrors.New(dErrors.CodeFingerprintFailed, "identity document has no make")
	}
	return CoreIdentity{
		Make:                   doc.Make,
		FirstRegistrationMonth: doc.MonthOfFirstRegistration,
		EngineCapacityCc:       doc.EngineCapacity,
		FuelType:               doc.FuelType,
		BodyStyle:              doc.BodyStyle,
	}, nil
}

// Build computes the fingerprint for a core identity. Pure and total over
// well-formed identities; identical identities always hash identically.
func Build(ci CoreIdentity) (domain.Fingerprint, error) {
	if strings.TrimSpace(ci.Make) == "" {
		return "", dErrors.New(dErrors.CodeFingerprintFailed, "core identity has no make")
	}
	canonical := strings.Join([]string{
		normalize(ci.Make),
		normalize(ci.FirstRegistrationMonth),
		fmt.Sprintf("%d", ci.EngineCapacityCc),
		normalize(ci.FuelType),
		normalize(ci.BodyStyle),
	}, "|")
	digest := sha3.Sum256([]byte(canonical))
	return domain.Fingerprint(hex.EncodeToString(digest[:])), nil
}

// normalize folds case and whitespace so cosmetic provider differences
// ("Petrol" vs "PETROL") do not change vehicle identity.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
