package core

import (
	"math/rand"
	"sync"
)

// HauntPolicy concentrates every probabilistic decision the engine makes so
// production randomness stays swappable for a deterministic seed in tests.
type HauntPolicy interface {
	// Disturb decides whether an emitted event gets the disturbance flag
	// and with what intensity.
	Disturb() (bool, float64)
	// DrawHaunt decides whether a plugin with the given weight opts into
	// spontaneous emission.
	DrawHaunt(weight float64) bool
}

type randHauntPolicy struct {
	mu            sync.Mutex
	rng           *rand.Rand
	disturbChance float64
}

// NewHauntPolicy returns the production policy with a random seed and the
// default disturbance injection chance.
func NewHauntPolicy() HauntPolicy {
	return NewSeededHauntPolicy(rand.Int63())
}

// NewSeededHauntPolicy returns a policy whose draws are reproducible for the
// given seed. Intended for tests.
func NewSeededHauntPolicy(seed int64) HauntPolicy {
	return &randHauntPolicy{rng: rand.New(rand.NewSource(seed)), disturbChance: 0.05}
}

func (p *randHauntPolicy) Disturb() (bool, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rng.Float64() >= p.disturbChance {
		return false, 0
	}
	return true, p.rng.Float64()
}

func (p *randHauntPolicy) DrawHaunt(weight float64) bool {
	if weight <= 0 {
		return false
	}
	if weight >= 1 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() < weight
}

// QuietPolicy never injects disturbances and never draws a haunt. It is the
// contract-compatible "probabilistic behavior disabled" policy.
type QuietPolicy struct{}

// Disturb never flags an event.
func (QuietPolicy) Disturb() (bool, float64) { return false, 0 }

// DrawHaunt never opts a plugin in.
func (QuietPolicy) DrawHaunt(float64) bool { return false }

// EagerPolicy opts every positively weighted plugin into spontaneous emission
// and never injects disturbances. Intended for tests and demos.
type EagerPolicy struct{}

// Disturb never flags an event.
func (EagerPolicy) Disturb() (bool, float64) { return false, 0 }

// DrawHaunt opts in any plugin with a positive weight.
func (EagerPolicy) DrawHaunt(weight float64) bool { return weight > 0 }
