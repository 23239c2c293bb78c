package grid

import (
	"testing"

	"github.com/annel0/gridextend/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoord_LayerSeparatesCells(t *testing.T) {
	a := New(1, 2, 3, 0)
	b := New(1, 2, 3, 1)

	assert.NotEqual(t, a, b, "одинаковые XYZ в разных слоях — разные клетки")
	assert.NotEqual(t, a.Hash(), b.Hash())
	assert.Equal(t, a.Hash(), New(1, 2, 3, 0).Hash(), "хеш структурный")
}

func TestCoord_Offset(t *testing.T) {
	root := New(0, 0, 0, 2)

	c, err := root.Offset(vec.AxisPosX, 3)
	require.NoError(t, err)
	assert.Equal(t, New(3, 0, 0, 2), c)

	c, err = root.Offset(vec.AxisNegY, 2)
	require.NoError(t, err)
	assert.Equal(t, New(0, -2, 0, 2), c)

	_, err = root.Offset(vec.Vec3{X: 1, Y: 1}, 1)
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestCoord_FromWorldRounds(t *testing.T) {
	c := FromWorld(vec.Vec3Float{X: 0.49, Y: 1.5, Z: -2.6}, 0)
	assert.Equal(t, New(0, 2, -3, 0), c)
}
