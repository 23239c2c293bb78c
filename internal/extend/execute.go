package extend

import (
	"github.com/annel0/gridextend/internal/grid"
	"github.com/annel0/gridextend/internal/logging"
	"github.com/annel0/gridextend/internal/vec"
	"github.com/annel0/gridextend/internal/world"
	"github.com/annel0/gridextend/internal/world/block"
)

// RefuseReason объясняет, почему запрос не создал ни одного сегмента до обхода клеток
type RefuseReason string

const (
	RefuseNone          RefuseReason = ""
	RefuseInvalid       RefuseReason = "invalid_request"
	RefuseNotAnchor     RefuseReason = "not_an_anchor"
	RefuseChainConflict RefuseReason = "chain_conflict"   // id занят или продолжение не совпадает с цепочкой
	RefuseSingleChain   RefuseReason = "single_chain_cap" // якорь допускает только одну цепочку
	RefuseLimit         RefuseReason = "length_limit"
)

// Request подтверждённый запрос вытягивания
type Request struct {
	Anchor       block.Handle `json:"anchor"`
	Direction    vec.Vec3     `json:"direction"`
	Length       int          `json:"length"`
	ResumeOffset int          `json:"resume_offset"` // 0: новая цепочка
	ChainID      int          `json:"chain_id"`
	// LifetimeSeconds переопределяет время жизни из конфигурации (0 берёт значение конфигурации, < 0 отключает истечение)
	LifetimeSeconds float64 `json:"lifetime_seconds,omitempty"`
}

// Result итог вытягивания. Остановка на препятствии считается успехом с усечением.
type Result struct {
	Request    Request        `json:"request"`
	Created    int            `json:"created"`
	Handles    []block.Handle `json:"handles,omitempty"`
	Stopped    bool           `json:"stopped"` // встретили занятую клетку
	StopCell   *grid.Coord    `json:"stop_cell,omitempty"`
	Refused    RefuseReason   `json:"refused,omitempty"`
	NextOffset int            `json:"next_offset"` // смещение для следующего продолжения
}

// Truncated сообщает, что создано меньше запрошенного
func (r Result) Truncated() bool {
	return r.Refused == RefuseNone && r.Created < r.Request.Length
}

// Settings параметры исполнения из конфигурации
type Settings struct {
	MaxExtendLength        int
	DefaultLifetimeSeconds float64
	DefaultOpacity         float64
}

// Executor создаёт сегменты цепочек через отложенные команды мира
type Executor struct {
	world    *world.World
	settings Settings
	foot     *FootGuard
	logger   *logging.Logger
}

// NewExecutor создаёт движок исполнения
func NewExecutor(w *world.World, s Settings, foot *FootGuard) *Executor {
	return &Executor{world: w, settings: s, foot: foot, logger: logging.GetExtendLogger()}
}

// Execute создаёт сегменты S+1..S+L, останавливаясь на первой занятой клетке.
// Проверка занятости здесь авторитетна: предпросмотр мог устареть.
func (e *Executor) Execute(req Request) Result {
	res := Result{Request: req, NextOffset: req.ResumeOffset}

	if !req.Direction.IsAxisUnit() || req.ResumeOffset < 0 || req.ChainID <= 0 {
		e.logger.Debug("отклонён запрос %+v: некорректные параметры", req)
		res.Refused = RefuseInvalid
		return res
	}
	if req.Length <= 0 {
		return res
	}

	anchor, root, ok := e.world.AnchorOf(req.Anchor)
	if !ok {
		e.logger.Debug("отклонён запрос: %s не якорь", req.Anchor)
		res.Refused = RefuseNotAnchor
		return res
	}

	if reason := e.checkChain(req, anchor); reason != RefuseNone {
		e.logger.Debug("отклонён запрос цепочки %d: %s", req.ChainID, reason)
		res.Refused = reason
		return res
	}

	// Общая длина цепочки не превышает лимит якоря и конфигурации
	length := req.Length
	if room := effectiveLimit(e.settings.MaxExtendLength, anchor.MaxExtendLength) - req.ResumeOffset; length > room {
		length = room
	}
	if length <= 0 {
		res.Refused = RefuseLimit
		return res
	}

	lifetime := e.settings.DefaultLifetimeSeconds
	if req.LifetimeSeconds != 0 {
		lifetime = req.LifetimeSeconds
	}

	for i := req.ResumeOffset + 1; i <= req.ResumeOffset+length; i++ {
		c := root.Add(req.Direction.Scale(int32(i)))
		if e.world.Occupied(c) || e.foot.Blocks(c) || !e.world.Claim(c) {
			stop := c
			res.Stopped = true
			res.StopCell = &stop
			break
		}

		b := world.NewExtendedBlock(c, world.ChainMembership{
			Root:      req.Anchor,
			Direction: req.Direction,
			Index:     i,
			ChainID:   req.ChainID,
		})
		b.Opacity = e.settings.DefaultOpacity
		b.Lifetime = world.NewLifetime(lifetime, e.settings.DefaultOpacity)

		res.Handles = append(res.Handles, e.world.Spawn(b))
		res.Created++
	}
	res.NextOffset = req.ResumeOffset + res.Created

	if req.ResumeOffset == 0 && res.Created > 0 {
		e.world.AdjustActiveChains(req.Anchor, 1)
	}
	return res
}

// checkChain проверяет согласованность id цепочки со смещением продолжения
func (e *Executor) checkChain(req Request, anchor world.Anchor) RefuseReason {
	info, exists := e.world.Chain(req.ChainID)

	if req.ResumeOffset == 0 {
		if exists {
			return RefuseChainConflict
		}
		// Решают живые сегменты, а не счётчик: истёкшая цепочка счётчик не уменьшает
		if !anchor.AllowMultipleChains && len(e.world.ChainsOf(req.Anchor)) > 0 {
			return RefuseSingleChain
		}
		return RefuseNone
	}

	// Продолжение начинается ровно с конца существующей цепочки, иначе индексы разорвутся
	if !exists || info.Root != req.Anchor || !info.Direction.Equals(req.Direction) || info.Length != req.ResumeOffset {
		return RefuseChainConflict
	}
	return RefuseNone
}
