package extend

import (
	"github.com/annel0/gridextend/internal/logging"
	"github.com/annel0/gridextend/internal/world"
	"github.com/annel0/gridextend/internal/world/block"
)

// RetractMode выбирает вариант втягивания
type RetractMode string

const (
	RetractWhole    RetractMode = "whole"     // вся цепочка, счётчик якоря уменьшается
	RetractToLength RetractMode = "to_length" // оставить первые Keep сегментов
	RetractAllOf    RetractMode = "all_of"    // все цепочки корня
)

// RetractRequest запрос втягивания
type RetractRequest struct {
	Mode    RetractMode  `json:"mode"`
	ChainID int          `json:"chain_id,omitempty"`
	Keep    int          `json:"keep,omitempty"`
	Root    block.Handle `json:"root,omitempty"`
}

// RetractResult итог втягивания одной цепочки
type RetractResult struct {
	ChainID      int            `json:"chain_id"`
	Root         block.Handle   `json:"root"`
	Destroyed    int            `json:"destroyed"`
	Partial      bool           `json:"partial"`
	ActiveChains int            `json:"active_chains"` // у корня после втягивания
	Handles      []block.Handle `json:"handles,omitempty"`
}

// Retractor уничтожает сегменты цепочек
type Retractor struct {
	world  *world.World
	logger *logging.Logger
}

// NewRetractor создаёт движок втягивания
func NewRetractor(w *world.World) *Retractor {
	return &Retractor{world: w, logger: logging.GetExtendLogger()}
}

// Retract уничтожает все сегменты цепочки и уменьшает счётчик корня на 1.
// Цепочка без сегментов не меняется, повторное втягивание ничего не меняет.
func (r *Retractor) Retract(chainID int) RetractResult {
	return r.retract(chainID, 0)
}

// RetractToLength уничтожает сегменты с индексом > keep; счётчик корня не меняется.
// keep ≤ 0 эквивалентно втягиванию всей цепочки.
func (r *Retractor) RetractToLength(chainID, keep int) RetractResult {
	if keep <= 0 {
		return r.Retract(chainID)
	}
	return r.retract(chainID, keep)
}

// RetractAllOf втягивает все цепочки корня
func (r *Retractor) RetractAllOf(root block.Handle) []RetractResult {
	var results []RetractResult
	for _, id := range r.world.ChainsOf(root) {
		if res := r.Retract(id); res.Destroyed > 0 {
			results = append(results, res)
		}
	}
	return results
}

// Apply исполняет запрос в выбранном режиме
func (r *Retractor) Apply(req RetractRequest) []RetractResult {
	switch req.Mode {
	case RetractAllOf:
		return r.RetractAllOf(req.Root)
	case RetractToLength:
		return []RetractResult{r.RetractToLength(req.ChainID, req.Keep)}
	default:
		return []RetractResult{r.Retract(req.ChainID)}
	}
}

func (r *Retractor) retract(chainID, keep int) RetractResult {
	res := RetractResult{ChainID: chainID, Partial: keep > 0}

	info, ok := r.world.Chain(chainID)
	if !ok {
		r.logger.Debug("втягивание цепочки %d: сегментов нет", chainID)
		return res
	}
	res.Root = info.Root

	for _, m := range info.Members {
		if m.Index <= keep {
			continue
		}
		if r.world.Destroy(m.Handle, world.ReasonRetracted) {
			res.Destroyed++
			res.Handles = append(res.Handles, m.Handle)
		}
	}

	if anchor, _, ok := r.world.AnchorOf(info.Root); ok {
		res.ActiveChains = anchor.ActiveChains
	}
	if res.Destroyed > 0 && !res.Partial {
		res.ActiveChains, _ = r.world.AdjustActiveChains(info.Root, -1)
	}
	return res
}
