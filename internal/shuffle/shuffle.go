// Package shuffle provides the Fisher-Yates primitive every randomised
// decision in the game goes through. The random source is injected so
// tests can replay a fixed sequence.
package shuffle

import (
	"math/rand/v2"
	"time"
)

// Rand is the subset of *rand.Rand the game needs.
type Rand interface {
	IntN(n int) int
}

// New returns a deterministic source for the given seed.
func New(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Default returns a source seeded from the clock.
func Default() *rand.Rand {
	now := uint64(time.Now().UnixNano())
	return rand.New(rand.NewPCG(now, rand.Uint64()))
}

// Shuffle returns a uniformly random permutation of items. The input is
// left untouched.
func Shuffle[T any](r Rand, items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	for i := len(out) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
