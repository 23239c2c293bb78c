package extend

import (
	"github.com/annel0/gridextend/internal/logging"
	"github.com/annel0/gridextend/internal/world"
	"github.com/annel0/gridextend/internal/world/block"
)

// LifetimeStats итог прохода истечения
type LifetimeStats struct {
	Ticked  int
	Expired []block.Handle
}

// LifetimeWorker уменьшает остаток жизни блоков и уничтожает истёкшие
type LifetimeWorker struct {
	world  *world.World
	logger *logging.Logger
}

// NewLifetimeWorker создаёт воркер истечения
func NewLifetimeWorker(w *world.World) *LifetimeWorker {
	return &LifetimeWorker{world: w, logger: logging.GetLifetimeLogger()}
}

// Run выполняет один проход. Отрицательный или NaN dt считается нулём:
// остаток никогда не растёт. Блок уничтожается один раз, в тике, где остаток впервые ≤ 0.
func (lw *LifetimeWorker) Run(dt float64) LifetimeStats {
	if !(dt > 0) {
		if dt < 0 {
			lw.logger.Debug("отрицательный dt=%v заменён на 0", dt)
		}
		dt = 0
	}

	var stats LifetimeStats
	lw.world.Arena().UpdateEach(func(h block.Handle, b *world.Block) {
		if b.Lifetime == nil {
			return
		}
		stats.Ticked++
		if b.Lifetime.Tick(dt) {
			stats.Expired = append(stats.Expired, h)
		}
	})

	// Уничтожение вне блокировки арены; помеченные блоки UpdateEach больше не посещает
	destroyed := stats.Expired[:0]
	for _, h := range stats.Expired {
		if lw.world.Destroy(h, world.ReasonExpired) {
			destroyed = append(destroyed, h)
		}
	}
	stats.Expired = destroyed
	return stats
}
