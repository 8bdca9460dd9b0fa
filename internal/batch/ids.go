package batch

import (
	"context"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces batch ids.
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator generates random UUIDv4 batch ids, the format existing
// batch directories use.
//
// Thread-safety: UUIDGenerator is stateless and safe for concurrent use.
type UUIDGenerator struct{}

// Generate returns a new hyphenated UUIDv4.
func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}

// FixedGenerator returns predetermined ids for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed, to catch tests that create more
// batches than expected.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// GitCommit returns the commit checked out in the working directory, or ""
// when git is unavailable or the directory is not a repository.
func GitCommit(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "git", "rev-parse", "HEAD").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
