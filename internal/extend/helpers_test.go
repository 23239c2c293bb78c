package extend

import (
	"context"
	"testing"

	"github.com/annel0/gridextend/internal/grid"
	"github.com/annel0/gridextend/internal/world"
	"github.com/annel0/gridextend/internal/world/block"
	"github.com/stretchr/testify/require"
)

var origin = grid.New(0, 0, 0, 0)

// newWorld создаёт мир с якорем в начале координат и статическими блоками в obstacles
func newWorld(t *testing.T, obstacles ...grid.Coord) (*world.World, block.Handle) {
	t.Helper()
	w := world.NewWorld(world.Options{})
	anchor := w.SpawnStatic(origin, block.AnchorTypeID)
	for _, c := range obstacles {
		w.SpawnStatic(c, block.DefaultTypeID)
	}
	settle(t, w)
	require.NoError(t, w.Select(anchor))
	return w, anchor
}

// settle применяет команды, регистрирует блоки и сбрасывает закрепления, как конец тика
func settle(t *testing.T, w *world.World) {
	t.Helper()
	w.Playback()
	_, err := world.NewRegistrar(w, 2).Run(context.Background())
	require.NoError(t, err)
	w.ClearClaims()
}

func defaultSettings() Settings {
	return Settings{MaxExtendLength: 16, DefaultOpacity: 1}
}

func chainIndices(t *testing.T, w *world.World, chainID int) map[int]grid.Coord {
	t.Helper()
	out := map[int]grid.Coord{}
	info, ok := w.Chain(chainID)
	if !ok {
		return out
	}
	for _, m := range info.Members {
		_, dup := out[m.Index]
		require.False(t, dup, "индекс %d повторяется", m.Index)
		out[m.Index] = m.Cell
	}
	return out
}
