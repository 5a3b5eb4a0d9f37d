package testutil

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
)

// SequentialGUIDs hands out predictable UUIDs for tests.
//
// The n-th call to Generate returns the UUID whose last eight bytes hold n,
// so the first is 00000000-0000-0000-0000-000000000001. Unlike
// engine.FixedGenerator it never runs out, and it can be reset so the same
// test scenario produces identical keys on every run.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialGUIDs struct {
	mu  sync.Mutex
	seq uint64
}

// NewSequentialGUIDs creates a generator whose first UUID ends in 1.
func NewSequentialGUIDs() *SequentialGUIDs {
	return &SequentialGUIDs{}
}

// Generate returns the next UUID.
//
// Implements engine.GUIDGenerator.
func (g *SequentialGUIDs) Generate() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return GUID(g.seq)
}

// Issued returns how many UUIDs have been generated since the last Reset.
func (g *SequentialGUIDs) Issued() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset restarts the sequence. The next Generate returns GUID(1).
func (g *SequentialGUIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}

// GUID returns the n-th UUID of a SequentialGUIDs sequence.
func GUID(n uint64) uuid.UUID {
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[8:], n)
	return id
}
