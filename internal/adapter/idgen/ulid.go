// Package idgen provides ULID-based ID generation.
package idgen

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ULIDGenerator generates ULID-based IDs.
type ULIDGenerator struct{}

// NewULIDGenerator creates a new ULIDGenerator.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{}
}

// Generate generates a new ULID.
func (g *ULIDGenerator) Generate() string {
	return ulid.Make().String()
}

// MonotonicGenerator generates strictly increasing ULIDs, so records
// created within the same millisecond still sort in creation order.
type MonotonicGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewMonotonicGenerator creates a new MonotonicGenerator.
func NewMonotonicGenerator() *MonotonicGenerator {
	return &MonotonicGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Generate generates the next ULID in the monotonic sequence.
func (g *MonotonicGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), g.entropy).String()
}
