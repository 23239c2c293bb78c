package extend

import (
	"testing"

	"github.com/annel0/gridextend/internal/grid"
	"github.com/annel0/gridextend/internal/vec"
	"github.com/annel0/gridextend/internal/world"
	"github.com/annel0/gridextend/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extendChain(t *testing.T, w *world.World, anchor block.Handle, dir vec.Vec3, length, id int) {
	t.Helper()
	res := NewExecutor(w, defaultSettings(), nil).Execute(Request{Anchor: anchor, Direction: dir, Length: length, ChainID: id})
	require.Equal(t, length, res.Created)
	settle(t, w)
}

func activeChains(t *testing.T, w *world.World, anchor block.Handle) int {
	t.Helper()
	a, _, ok := w.AnchorOf(anchor)
	require.True(t, ok)
	return a.ActiveChains
}

func TestRetract_WholeChain(t *testing.T) {
	w, anchor := newWorld(t)
	extendChain(t, w, anchor, vec.AxisPosX, 4, 7)
	extendChain(t, w, anchor, vec.AxisPosZ, 2, 8)
	require.Equal(t, 2, activeChains(t, w, anchor))

	r := NewRetractor(w)
	res := r.Retract(7)
	assert.Equal(t, 4, res.Destroyed)
	assert.False(t, res.Partial)
	assert.Equal(t, anchor, res.Root)
	assert.Equal(t, 1, res.ActiveChains, "счётчик уменьшен на 1, а не на число сегментов")

	settle(t, w)
	for i := int32(1); i <= 4; i++ {
		assert.False(t, w.Occupied(grid.New(i, 0, 0, 0)))
	}
	_, ok := w.Chain(7)
	assert.False(t, ok)
	assert.Len(t, chainIndices(t, w, 8), 2, "другая цепочка не тронута")
}

func TestRetract_TwiceIsNoop(t *testing.T) {
	w, anchor := newWorld(t)
	extendChain(t, w, anchor, vec.AxisPosX, 3, 1)
	extendChain(t, w, anchor, vec.AxisNegX, 3, 2)

	r := NewRetractor(w)
	first := r.Retract(1)
	second := r.Retract(1) // в том же тике, до применения команд
	assert.Equal(t, 3, first.Destroyed)
	assert.Equal(t, 0, second.Destroyed)
	assert.Equal(t, 1, activeChains(t, w, anchor))

	settle(t, w)
	third := r.Retract(1)
	assert.Equal(t, 0, third.Destroyed)
	assert.Equal(t, 1, activeChains(t, w, anchor))
	assert.Equal(t, 4, w.Len(), "якорь и три сегмента второй цепочки")
}

func TestRetract_ToLengthKeepsPrefix(t *testing.T) {
	w, anchor := newWorld(t)
	extendChain(t, w, anchor, vec.AxisPosY, 5, 3)

	r := NewRetractor(w)
	res := r.RetractToLength(3, 2)
	assert.True(t, res.Partial)
	assert.Equal(t, 3, res.Destroyed)
	assert.Equal(t, 1, res.ActiveChains, "частичное втягивание не меняет счётчик")
	settle(t, w)

	got := chainIndices(t, w, 3)
	assert.Equal(t, map[int]grid.Coord{1: grid.New(0, 1, 0, 0), 2: grid.New(0, 2, 0, 0)}, got)

	// После частичного втягивания цепочку можно продолжить с её нового конца
	more := NewExecutor(w, defaultSettings(), nil).Execute(Request{Anchor: anchor, Direction: vec.AxisPosY, Length: 1, ResumeOffset: 2, ChainID: 3})
	assert.Equal(t, 1, more.Created)

	whole := r.RetractToLength(3, 0)
	assert.False(t, whole.Partial)
	assert.Equal(t, 3, whole.Destroyed)
	assert.Equal(t, 0, whole.ActiveChains)
}

func TestRetract_AllOfRoot(t *testing.T) {
	w, anchor := newWorld(t)
	extendChain(t, w, anchor, vec.AxisPosX, 2, 1)
	extendChain(t, w, anchor, vec.AxisNegY, 3, 2)

	results := NewRetractor(w).Apply(RetractRequest{Mode: RetractAllOf, Root: anchor})
	require.Len(t, results, 2)
	assert.Equal(t, 5, results[0].Destroyed+results[1].Destroyed)
	assert.Equal(t, 0, activeChains(t, w, anchor))

	settle(t, w)
	assert.Equal(t, 1, w.Len())
	assert.Empty(t, w.ChainsOf(anchor))
}

func TestRetract_UnknownChain(t *testing.T) {
	w, anchor := newWorld(t)
	extendChain(t, w, anchor, vec.AxisPosX, 1, 1)

	res := NewRetractor(w).Apply(RetractRequest{ChainID: 99})
	require.Len(t, res, 1)
	assert.Equal(t, 0, res[0].Destroyed)
	assert.Equal(t, 1, activeChains(t, w, anchor))
}
