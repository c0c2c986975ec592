// Package uid generates identifiers for requests, events and records.
package uid

import "github.com/google/uuid"

// StringID generates string identifiers (correlation IDs, message keys).
type StringID interface {
	Generate() string
}

// NumberID generates numeric identifiers that are unique across nodes.
type NumberID interface {
	Generate() int64
}

// UUID issues version 7 UUIDs, so correlation IDs sort in the order their
// requests arrived.
type UUID struct{}

func NewUUID() UUID { return UUID{} }

func (UUID) Generate() string {
	// NewV7 fails only when the random source does.
	return uuid.Must(uuid.NewV7()).String()
}
