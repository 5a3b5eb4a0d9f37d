package engine

import (
	"sync"

	"github.com/google/uuid"
)

// GUIDGenerator produces values for manual UUID keys left unset.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type GUIDGenerator interface {
	Generate() uuid.UUID
}

// UUIDv7Generator generates time-sortable UUIDv7 keys.
//
// UUIDv7 embeds a timestamp in the most significant bits, so rows seeded
// in one batch sort in creation order.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// FixedGenerator returns predetermined UUIDs for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []uuid.UUID
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedGenerator(uuid.MustParse("..."), uuid.MustParse("..."))
//	gen.Generate() // first
//	gen.Generate() // second
//	gen.Generate() // panic: all ids exhausted
func NewFixedGenerator(ids ...uuid.UUID) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed, which catches a test that seeds
// more UUID keys than it expected.
func (g *FixedGenerator) Generate() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
