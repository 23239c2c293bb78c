package extend

import (
	"sync"

	"github.com/annel0/gridextend/internal/grid"
)

// footOffsets высоты над клеткой ступней игрока, куда нельзя ставить сегменты
var footOffsets = [...]int32{1, 2}

// FootGuard не даёт цепочке замуровать игрока.
// Защищённые клетки считаются препятствием: цепочка на них останавливается.
type FootGuard struct {
	mu   sync.RWMutex
	foot grid.Coord
	set  bool
}

// SetFoot задаёт клетку под ступнями игрока
func (g *FootGuard) SetFoot(c grid.Coord) {
	g.mu.Lock()
	g.foot = c
	g.set = true
	g.mu.Unlock()
}

// Clear снимает защиту
func (g *FootGuard) Clear() {
	g.mu.Lock()
	g.set = false
	g.mu.Unlock()
}

// Blocks сообщает, защищена ли клетка
func (g *FootGuard) Blocks(c grid.Coord) bool {
	if g == nil {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.set || c.Layer != g.foot.Layer || c.X != g.foot.X || c.Z != g.foot.Z {
		return false
	}
	for _, dy := range footOffsets {
		if c.Y == g.foot.Y+dy {
			return true
		}
	}
	return false
}
