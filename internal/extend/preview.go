package extend

import (
	"github.com/annel0/gridextend/internal/grid"
	"github.com/annel0/gridextend/internal/logging"
	"github.com/annel0/gridextend/internal/vec"
	"github.com/annel0/gridextend/internal/world"
	"github.com/annel0/gridextend/internal/world/block"
)

// PreviewResult спекулятивная длина цепочки
type PreviewResult struct {
	Anchor      block.Handle `json:"anchor"`
	Direction   vec.Vec3     `json:"direction"`
	Requested   int          `json:"requested"`
	Limit       int          `json:"limit"` // min(конфиг, якорь)
	ValidLength int          `json:"valid_length"`
	Cells       []grid.Coord `json:"cells,omitempty"`
}

// Truncated сообщает, что свободный отрезок короче запрошенного
func (r PreviewResult) Truncated() bool {
	return r.ValidLength < r.Requested
}

// Previewer считает длину свободного отрезка от якоря, не меняя мир
type Previewer struct {
	world     *world.World
	maxLength int
	foot      *FootGuard
	logger    *logging.Logger
}

// NewPreviewer создаёт движок предпросмотра
func NewPreviewer(w *world.World, maxLength int, foot *FootGuard) *Previewer {
	return &Previewer{world: w, maxLength: maxLength, foot: foot, logger: logging.GetExtendLogger()}
}

// Preview проходит клетки 1..L от якоря и останавливается на первой занятой.
// ok=false: якорь не выбран, не является якорем или направление не осевое.
func (p *Previewer) Preview(anchor block.Handle, dir vec.Vec3, length int) (PreviewResult, bool) {
	res := PreviewResult{Anchor: anchor, Direction: dir, Requested: length}

	if p.world.Selected() != anchor {
		return res, false
	}
	if !dir.IsAxisUnit() {
		p.logger.Debug("предпросмотр %s: неосевое направление %s", anchor, dir)
		return res, false
	}

	a, root, ok := p.world.AnchorOf(anchor)
	if !ok {
		return res, false
	}

	res.Limit = effectiveLimit(p.maxLength, a.MaxExtendLength)
	if length > res.Limit {
		length = res.Limit
	}
	if length <= 0 {
		return res, true
	}

	for i := 1; i <= length; i++ {
		c := root.Add(dir.Scale(int32(i)))
		if p.blocked(c) {
			break
		}
		res.Cells = append(res.Cells, c)
		res.ValidLength = i
	}
	return res, true
}

func (p *Previewer) blocked(c grid.Coord) bool {
	return p.world.Occupied(c) || p.world.Claimed(c) || p.foot.Blocks(c)
}

// effectiveLimit = min(конфиг, якорь); нулевой лимит якоря не ограничивает
func effectiveLimit(configMax, anchorMax int) int {
	if anchorMax > 0 && anchorMax < configMax {
		return anchorMax
	}
	return configMax
}
