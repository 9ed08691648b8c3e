// Package rng provides the deterministic random source injected into the
// command pipeline. Replaying the same seed and draw sequence reproduces
// identical values, which is what makes server-authoritative replay and
// client-side prediction comparable.
package rng

import (
	"math/rand"
)

// Drawer is the draw interface handed to domain reducers. All randomness
// inside a pipeline run must flow through it.
type Drawer interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
	// Die returns a value in [1, sides]. Sides must be positive.
	Die(sides int) int
	// Range returns a value in [min, max].
	Range(min, max int) int
	// Shuffle returns a shuffled copy of n indices permuted in place via swap.
	Shuffle(n int, swap func(i, j int))
}

// Source is a seeded deterministic Drawer.
type Source struct {
	rand *rand.Rand
}

// NewSource creates a deterministic source from a seed.
func NewSource(seed int64) *Source {
	return &Source{rand: rand.New(rand.NewSource(seed))}
}

// Float64 returns a value in [0.0, 1.0).
func (s *Source) Float64() float64 {
	return s.rand.Float64()
}

// Die returns a value in [1, sides].
func (s *Source) Die(sides int) int {
	if sides <= 0 {
		return 0
	}
	return s.rand.Intn(sides) + 1
}

// Range returns a value in [min, max].
func (s *Source) Range(min, max int) int {
	if max < min {
		min, max = max, min
	}
	return min + s.rand.Intn(max-min+1)
}

// Shuffle permutes n elements via the swap callback.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	s.rand.Shuffle(n, swap)
}

// Probe wraps a Drawer and records whether any draw happened. The optimistic
// client uses it to autodetect nondeterministic commands: a command whose
// pipeline run touched the random source must not keep its local prediction.
type Probe struct {
	base Drawer
	used bool
}

// NewProbe wraps base in a usage-tracking probe.
func NewProbe(base Drawer) *Probe {
	return &Probe{base: base}
}

// Used reports whether any draw happened since the last Reset.
func (p *Probe) Used() bool {
	return p.used
}

// Reset clears the usage flag.
func (p *Probe) Reset() {
	p.used = false
}

func (p *Probe) Float64() float64 {
	p.used = true
	return p.base.Float64()
}

func (p *Probe) Die(sides int) int {
	p.used = true
	return p.base.Die(sides)
}

func (p *Probe) Range(min, max int) int {
	p.used = true
	return p.base.Range(min, max)
}

func (p *Probe) Shuffle(n int, swap func(i, j int)) {
	p.used = true
	p.base.Shuffle(n, swap)
}
