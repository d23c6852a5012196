package harness

import (
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces run identifiers.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator stamps each harness run with a time-ordered UUID.
type UUIDv7Generator struct{}

// Generate returns a new run id.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator hands out a preset list of run ids, so tests can assert on
// them.
type FixedGenerator struct {
	mu   sync.Mutex
	ids  []string
	next int
}

// NewFixedGenerator returns a generator yielding ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next id. It panics once the list runs out.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.next >= len(g.ids) {
		panic("harness: no run ids left")
	}
	id := g.ids[g.next]
	g.next++
	return id
}

// UniqueName appends a UUIDv7 to base so that concurrent runs sharing a
// workspace never write the same files.
func UniqueName(base string) string {
	return base + "_" + UUIDv7Generator{}.Generate()
}
