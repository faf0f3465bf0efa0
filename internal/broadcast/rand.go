package broadcast

import "math/rand/v2"

// Rand supplies the jitter used for delivery seconds, tie-break suffixes and
// inter-batch delays. *rand.Rand from math/rand/v2 satisfies it; tests pass
// fixed sources.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

type globalRand struct{}

func (globalRand) IntN(n int) int   { return rand.IntN(n) }
func (globalRand) Float64() float64 { return rand.Float64() }

// DefaultRand uses the goroutine-safe top-level math/rand/v2 functions.
var DefaultRand Rand = globalRand{}
