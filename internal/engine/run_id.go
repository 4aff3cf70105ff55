package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// RunIDGenerator produces unique identifiers for workflow runs.
// Implemented by UUIDv7Generator (production) and SequenceGenerator
// (tests).
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator produces time-ordered UUIDs so run IDs sort by
// creation time in the history store.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7, falling back to a random UUID if the
// system clock misbehaves.
func (UUIDv7Generator) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// SequenceGenerator produces deterministic IDs for tests:
// "<prefix>-1", "<prefix>-2", ...
type SequenceGenerator struct {
	Prefix string
	n      atomic.Int64
}

func (g *SequenceGenerator) Generate() string {
	return fmt.Sprintf("%s-%d", g.Prefix, g.n.Add(1))
}
