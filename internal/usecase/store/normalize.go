package store

import (
	"github.com/google/uuid"
)

// idNamespace seeds deterministic identifier hashing. Changing it orphans
// every previously stored point.
var idNamespace = uuid.MustParse("c8d7e1a4-52b3-45f1-9f26-3d61a8e0b7c5")

// NewID mints a random identifier for documents stored without one.
func NewID() string {
	return uuid.NewString()
}

// NormalizeID maps a caller-supplied identifier onto the point ID space.
// Valid UUIDs pass through in canonical form; anything else hashes to a
// stable name-based UUID. The same input always yields the same output.
func NormalizeID(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return uuid.NewSHA1(idNamespace, []byte(id)).String()
}
