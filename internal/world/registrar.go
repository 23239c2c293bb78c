package world

import (
	"context"
	"runtime"

	"github.com/annel0/gridextend/internal/grid"
	"github.com/annel0/gridextend/internal/logging"
	"github.com/annel0/gridextend/internal/world/block"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// RegistrationStats итог одного прохода регистрации
type RegistrationStats struct {
	Attempted  int
	Registered int
	Contended  int // проиграли гонку за клетку, повтор в следующем тике
	Reconciled int // удалено устаревших записей индекса
	Grown      bool
}

// Registrar вставляет незарегистрированные блоки в индекс занятости
type Registrar struct {
	world   *World
	workers int
	logger  *logging.Logger
}

// NewRegistrar создаёт воркер регистрации; workers ≤ 0: по числу CPU
func NewRegistrar(w *World, workers int) *Registrar {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Registrar{world: w, workers: workers, logger: logging.GetIndexLogger()}
}

type candidate struct {
	handle block.Handle
	cell   grid.Coord
}

// Run выполняет один проход: вставка кандидатов параллельно, затем сверка индекса
func (r *Registrar) Run(ctx context.Context) (RegistrationStats, error) {
	var stats RegistrationStats

	var candidates []candidate
	r.world.arena.Each(func(h block.Handle, b Block, st SlotState) bool {
		if st == StateAlive && !b.Registered {
			candidates = append(candidates, candidate{handle: h, cell: grid.FromWorld(b.WorldPos, b.Layer)})
		}
		return true
	})
	stats.Attempted = len(candidates)

	idx := r.world.index
	stats.Grown = idx.EnsureCapacity(len(candidates))
	if stats.Grown {
		r.logger.Debug("индекс вырос до %d (live=%d)", idx.Capacity(), idx.Len())
	}

	var registered, contended atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, c := range candidates {
		c := c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if !idx.TryInsert(c.cell, c.handle) {
				contended.Inc()
				return nil
			}
			r.world.arena.Update(c.handle, func(b *Block) {
				b.GridPos = c.cell
				b.Registered = true
			})
			registered.Inc()
			return nil
		})
	}

	err := g.Wait()
	stats.Registered = int(registered.Load())
	stats.Contended = int(contended.Load())
	if err != nil {
		return stats, err
	}

	stats.Reconciled = r.world.Reconcile()
	if stats.Contended > 0 {
		r.logger.Debug("регистрация: %d блоков ждут освобождения клетки", stats.Contended)
	}
	return stats, nil
}
