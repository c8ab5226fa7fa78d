// Package codegen allocates short numeric access codes.
package codegen

import (
	"math/rand/v2"
	"sync"

	"github.com/peerlink/peerlink/pkg/domain"
)

const (
	// MinCode is the smallest code handed out.
	MinCode = 1
	// MaxCode is the largest code handed out.
	MaxCode = 65535
	// DefaultAttempts is the number of uniform random draws before falling
	// back to a scan of the whole range.
	DefaultAttempts = 64
)

// Generator draws codes uniformly from [min, max] and re-rolls codes that are
// taken. It never loops unboundedly: after a fixed number of random draws it
// scans the range once from a random offset and reports exhaustion if every
// code is taken.
type Generator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	min      int
	max      int
	attempts int
}

// Option configures a Generator.
type Option func(*Generator)

// WithRange restricts codes to [lo, hi].
func WithRange(lo, hi int) Option {
	return func(g *Generator) {
		g.min = lo
		g.max = hi
	}
}

// WithSource replaces the random source, typically with a seeded one in tests.
func WithSource(src rand.Source) Option {
	return func(g *Generator) {
		g.rng = rand.New(src)
	}
}

// WithAttempts sets the number of random draws before the fallback scan.
func WithAttempts(n int) Option {
	return func(g *Generator) {
		g.attempts = n
	}
}

// New creates a generator over 1..65535.
func New(opts ...Option) *Generator {
	g := &Generator{
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		min:      MinCode,
		max:      MaxCode,
		attempts: DefaultAttempts,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.max < g.min {
		g.min, g.max = g.max, g.min
	}
	if g.attempts < 0 {
		g.attempts = 0
	}
	return g
}

// Span returns the number of distinct codes.
func (g *Generator) Span() int {
	return g.max - g.min + 1
}

// Contains reports whether code lies in the generator's range.
func (g *Generator) Contains(code int) bool {
	return code >= g.min && code <= g.max
}

// Allocate returns a code for which taken reports false. The caller must
// hold whatever lock makes taken stable until the code is recorded.
func (g *Generator) Allocate(taken func(int) bool) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	span := g.Span()
	for i := 0; i < g.attempts; i++ {
		code := g.min + g.rng.IntN(span)
		if !taken(code) {
			return code, nil
		}
	}

	start := g.rng.IntN(span)
	for i := 0; i < span; i++ {
		code := g.min + (start+i)%span
		if !taken(code) {
			return code, nil
		}
	}

	return 0, domain.CapacityExhausted(span)
}
