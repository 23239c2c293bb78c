package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifetime_LinearFade(t *testing.T) {
	l := NewLifetime(5, 1)
	require.NotNil(t, l)

	assert.False(t, l.Tick(2.5))
	assert.InDelta(t, 0.5, l.Opacity(), 1e-9)

	assert.True(t, l.Tick(2.5))
	assert.Equal(t, 0.0, l.Remaining)
	assert.Equal(t, 0.0, l.Opacity())
}

func TestLifetime_Monotonic(t *testing.T) {
	l := NewLifetime(3, 1)
	prev := l.Remaining
	for _, dt := range []float64{0.5, -1, 0, 2, 10} {
		l.Tick(dt)
		assert.LessOrEqual(t, l.Remaining, prev, "остаток не растёт (dt=%v)", dt)
		assert.GreaterOrEqual(t, l.Remaining, 0.0)
		prev = l.Remaining
	}
}

func TestLifetime_DisabledForNonPositiveTotal(t *testing.T) {
	assert.Nil(t, NewLifetime(0, 1))
	assert.Nil(t, NewLifetime(-2, 1))
}
