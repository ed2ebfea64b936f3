package domain

import "fmt"

// APIVersion identifies which versioned surface of the HTTP API handled a
// request. Construct via ParseAPIVersion at trust boundaries.
type APIVersion string

// Supported API versions.
const (
	APIVersionV1 APIVersion = "v1"
)

var supportedVersions = map[APIVersion]struct{}{
	APIVersionV1: {},
}

// ParseAPIVersion validates and returns an APIVersion.
func ParseAPIVersion(s string) (APIVersion, error) {
	v := APIVersion(s)
	if _, ok := supportedVersions[v]; !ok {
		return "", fmt.Errorf("unknown API version: %s", s)
	}
	return v, nil
}

func (v APIVersion) String() string {
	return string(v)
}
