package extend

import (
	"math"
	"testing"

	"github.com/annel0/gridextend/internal/vec"
	"github.com/annel0/gridextend/internal/world"
	"github.com/annel0/gridextend/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spawnTimed(t *testing.T, total float64) (*world.World, block.Handle) {
	t.Helper()
	w, anchor := newWorld(t)
	s := Settings{MaxExtendLength: 16, DefaultLifetimeSeconds: total, DefaultOpacity: 1}
	res := NewExecutor(w, s, nil).Execute(Request{Anchor: anchor, Direction: vec.AxisPosX, Length: 1, ChainID: 1})
	require.Equal(t, 1, res.Created)
	settle(t, w)
	return w, res.Handles[0]
}

func viewOf(w *world.World, h block.Handle) (world.View, bool) {
	for _, v := range w.Snapshot() {
		if v.Handle == h {
			return v, true
		}
	}
	return world.View{}, false
}

func TestLifetime_FadesAndExpires(t *testing.T) {
	w, h := spawnTimed(t, 5)
	lw := NewLifetimeWorker(w)

	stats := lw.Run(2.5)
	assert.Empty(t, stats.Expired)
	v, ok := viewOf(w, h)
	require.True(t, ok)
	assert.InDelta(t, 0.5, v.Opacity, 1e-9)
	assert.InDelta(t, 2.5, v.Remaining, 1e-9)

	stats = lw.Run(2.5)
	assert.Equal(t, []block.Handle{h}, stats.Expired)

	changes := w.Playback()
	require.Len(t, changes, 1)
	assert.Equal(t, world.ReasonExpired, changes[0].Reason)
	assert.False(t, w.Alive(h))
	assert.Equal(t, 1, w.Reconcile())
}

func TestLifetime_DestroyedExactlyOnce(t *testing.T) {
	w, h := spawnTimed(t, 1)
	lw := NewLifetimeWorker(w)

	first := lw.Run(3)
	second := lw.Run(3) // команда ещё не применена
	assert.Equal(t, []block.Handle{h}, first.Expired)
	assert.Empty(t, second.Expired)

	require.Len(t, w.Playback(), 1)
	assert.Empty(t, lw.Run(3).Expired)
}

func TestLifetime_RemainingNeverIncreases(t *testing.T) {
	w, h := spawnTimed(t, 4)
	lw := NewLifetimeWorker(w)

	prev := 4.0
	for _, dt := range []float64{0.5, -2, 0, math.NaN(), 1, -0.1, 0.25} {
		lw.Run(dt)
		v, ok := viewOf(w, h)
		require.True(t, ok)
		assert.LessOrEqual(t, v.Remaining, prev, "dt=%v", dt)
		prev = v.Remaining
	}
	assert.InDelta(t, 2.25, prev, 1e-9)
}

func TestLifetime_DisabledNeverExpires(t *testing.T) {
	w, h := spawnTimed(t, 0)
	stats := NewLifetimeWorker(w).Run(1000)
	assert.Zero(t, stats.Ticked)
	assert.Empty(t, stats.Expired)
	assert.True(t, w.Alive(h))
}
