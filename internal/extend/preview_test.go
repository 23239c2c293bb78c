package extend

import (
	"testing"

	"github.com/annel0/gridextend/internal/grid"
	"github.com/annel0/gridextend/internal/vec"
	"github.com/annel0/gridextend/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Занятая клетка (3,0,0), запрос 5 по +X — свободный отрезок длины 2
func TestPreview_StopsAtFirstOccupied(t *testing.T) {
	w, anchor := newWorld(t, grid.New(3, 0, 0, 0), grid.New(5, 0, 0, 0))
	p := NewPreviewer(w, 16, nil)

	res, ok := p.Preview(anchor, vec.AxisPosX, 5)
	require.True(t, ok)
	assert.Equal(t, 2, res.ValidLength)
	assert.Equal(t, 5, res.Requested)
	assert.True(t, res.Truncated())
	assert.Equal(t, []grid.Coord{grid.New(1, 0, 0, 0), grid.New(2, 0, 0, 0)}, res.Cells)

	assert.Equal(t, 3, w.Index().Len(), "предпросмотр не меняет индекс")
	assert.Equal(t, 3, w.Len())
}

func TestPreview_EdgeCases(t *testing.T) {
	w, anchor := newWorld(t)
	p := NewPreviewer(w, 16, nil)

	t.Run("нулевая длина", func(t *testing.T) {
		res, ok := p.Preview(anchor, vec.AxisPosY, 0)
		require.True(t, ok)
		assert.Equal(t, 0, res.ValidLength)
	})

	t.Run("отрицательная длина", func(t *testing.T) {
		res, ok := p.Preview(anchor, vec.AxisPosY, -3)
		require.True(t, ok)
		assert.Equal(t, 0, res.ValidLength)
	})

	t.Run("неосевое направление", func(t *testing.T) {
		_, ok := p.Preview(anchor, vec.Vec3{X: 1, Z: 1}, 4)
		assert.False(t, ok)
		_, ok = p.Preview(anchor, vec.Vec3{X: 2}, 4)
		assert.False(t, ok)
	})

	t.Run("лимит якоря", func(t *testing.T) {
		res, ok := p.Preview(anchor, vec.AxisNegZ, 50)
		require.True(t, ok)
		assert.Equal(t, 10, res.Limit, "min(16, 10)")
		assert.Equal(t, 10, res.ValidLength)
	})

	t.Run("лимит конфигурации", func(t *testing.T) {
		short := NewPreviewer(w, 4, nil)
		res, ok := short.Preview(anchor, vec.AxisNegZ, 50)
		require.True(t, ok)
		assert.Equal(t, 4, res.ValidLength)
	})

	t.Run("якорь не выбран", func(t *testing.T) {
		require.NoError(t, w.Select(block.Nil))
		defer func() { require.NoError(t, w.Select(anchor)) }()
		_, ok := p.Preview(anchor, vec.AxisPosX, 3)
		assert.False(t, ok)
	})
}

func TestPreview_OtherLayerDoesNotBlock(t *testing.T) {
	w, anchor := newWorld(t, grid.New(1, 0, 0, 1))
	res, ok := NewPreviewer(w, 16, nil).Preview(anchor, vec.AxisPosX, 3)
	require.True(t, ok)
	assert.Equal(t, 3, res.ValidLength)
}

func TestPreview_RespectsFootGuardAndClaims(t *testing.T) {
	w, anchor := newWorld(t)
	foot := &FootGuard{}
	foot.SetFoot(grid.New(0, 1, 0, 0))
	p := NewPreviewer(w, 16, foot)

	// (0,2,0) — над ступнями игрока
	res, ok := p.Preview(anchor, vec.AxisPosY, 5)
	require.True(t, ok)
	assert.Equal(t, 1, res.ValidLength)

	require.True(t, w.Claim(grid.New(0, 0, 2, 0)))
	res, _ = p.Preview(anchor, vec.AxisPosZ, 5)
	assert.Equal(t, 1, res.ValidLength)
}
