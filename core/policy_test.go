package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeededPolicyIsDeterministic(t *testing.T) {
	a := NewSeededHauntPolicy(42)
	b := NewSeededHauntPolicy(42)

	for i := 0; i < 100; i++ {
		gotA, intensityA := a.Disturb()
		gotB, intensityB := b.Disturb()
		assert.Equal(t, gotA, gotB)
		assert.Equal(t, intensityA, intensityB)
	}
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.DrawHaunt(0.5), b.DrawHaunt(0.5))
	}
}

func TestDrawHauntBoundaryWeights(t *testing.T) {
	p := NewSeededHauntPolicy(1)

	assert.False(t, p.DrawHaunt(0))
	assert.False(t, p.DrawHaunt(-1))
	assert.True(t, p.DrawHaunt(1))
	assert.True(t, p.DrawHaunt(1.5))
}

func TestDisturbIntensityRange(t *testing.T) {
	p := NewSeededHauntPolicy(7)

	for i := 0; i < 1000; i++ {
		disturbed, intensity := p.Disturb()
		if !disturbed {
			assert.Zero(t, intensity)
			continue
		}
		assert.GreaterOrEqual(t, intensity, 0.0)
		assert.Less(t, intensity, 1.0)
	}
}

func TestQuietPolicy(t *testing.T) {
	p := QuietPolicy{}

	disturbed, intensity := p.Disturb()
	assert.False(t, disturbed)
	assert.Zero(t, intensity)
	assert.False(t, p.DrawHaunt(1))
}

func TestEagerPolicy(t *testing.T) {
	p := EagerPolicy{}

	disturbed, _ := p.Disturb()
	assert.False(t, disturbed)
	assert.True(t, p.DrawHaunt(0.1))
	assert.False(t, p.DrawHaunt(0))
}
