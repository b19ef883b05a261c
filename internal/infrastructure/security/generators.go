// Package security provides secure random generation utilities
package security

import (
	"github.com/oklog/ulid/v2"
)

// GenerateULID generates a new ULID string.
func GenerateULID() string {
	return ulid.Make().String()
}

// GenerateVisitorID generates a new anonymous visitor identifier.
func GenerateVisitorID() string {
	return "v_" + ulid.Make().String()
}

// GenerateLocalMessageID generates a locally unique id for synthetic
// transcript entries (optimistic echoes, system confirmations).
func GenerateLocalMessageID() string {
	return "local_" + ulid.Make().String()
}
