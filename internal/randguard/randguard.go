// Package randguard preserves pseudo-random generator state across backend
// I/O calls. Transfer code may consume random values (retry jitter, multipart
// boundaries); callers relying on reproducible randomness for experiment
// seeding must not observe a perturbed sequence after a storage operation.
package randguard

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// Guard wraps a PCG-backed generator whose state can be captured before a
// call and restored afterwards.
type Guard struct {
	mu  sync.Mutex
	src *rand.PCG
	rnd *rand.Rand
}

// New creates a Guard seeded from the two given values.
func New(seed1, seed2 uint64) *Guard {
	src := rand.NewPCG(seed1, seed2)
	return &Guard{src: src, rnd: rand.New(src)}
}

// Rand returns the guarded generator. Draws outside Preserve advance the
// sequence normally.
func (g *Guard) Rand() *rand.Rand {
	return g.rnd
}

// Seed resets the generator to a known state.
func (g *Guard) Seed(seed1, seed2 uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.src.Seed(seed1, seed2)
}

// Preserve captures the generator state, runs fn, and restores the captured
// state on all exit paths. Random values consumed inside fn do not change
// the sequence a later caller draws.
func (g *Guard) Preserve(fn func() error) error {
	g.mu.Lock()
	state, err := g.src.MarshalBinary()
	g.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to capture random state: %w", err)
	}

	defer func() {
		g.mu.Lock()
		// Restoring a snapshot this source produced cannot fail.
		_ = g.src.UnmarshalBinary(state)
		g.mu.Unlock()
	}()

	return fn()
}

// defaultGuard is the process-wide generator storage adapters protect.
var defaultGuard = New(1, 2)

// Default returns the process-wide guard.
func Default() *Guard {
	return defaultGuard
}

// Rand returns the process-wide guarded generator.
func Rand() *rand.Rand {
	return defaultGuard.Rand()
}

// Preserve runs fn under the process-wide guard.
func Preserve(fn func() error) error {
	return defaultGuard.Preserve(fn)
}
