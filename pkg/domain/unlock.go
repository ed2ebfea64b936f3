package domain

import dErrors "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain-errors"

// UnlockSource is the consumption path an unlock charges against.
type UnlockSource string

const (
	// UnlockSourceFree consumes a monthly entitlement slot.
	UnlockSourceFree UnlockSource = "free"
	// UnlockSourcePaid consumes one purchased unlock credit.
	UnlockSourcePaid UnlockSource = "paid"
)

var validUnlockSources = map[UnlockSource]bool{
	UnlockSourceFree: true,
	UnlockSourcePaid: true,
}

// ParseUnlockSource validates an unlock source from external input.
func ParseUnlockSource(s string) (UnlockSource, error) {
	src := UnlockSource(s)
	if !validUnlockSources[src] {
		return "", dErrors.New(dErrors.CodeValidation, "unlock source must be free or paid")
	}
	return src, nil
}

func (s UnlockSource) IsValid() bool { return validUnlockSources[s] }

// Platform identifies the store a purchase was made through.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// ParsePlatform validates a purchase platform. Empty input is allowed because
// the field is only present on paid unlocks.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(s); p {
	case "", PlatformIOS, PlatformAndroid:
		return p, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "platform must be ios or android")
	}
}

// Fingerprint is a deterministic digest of a vehicle's core identity
// attributes, used to detect whether a registration now refers to a different
// physical vehicle. Equal identities always produce equal fingerprints.
type Fingerprint string

func (f Fingerprint) String() string { return string(f) }
func (f Fingerprint) IsNil() bool    { return f == "" }
