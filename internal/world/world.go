package world

import (
	"fmt"
	"sync"

	"github.com/annel0/gridextend/internal/grid"
	"github.com/annel0/gridextend/internal/logging"
	"github.com/annel0/gridextend/internal/vec"
	"github.com/annel0/gridextend/internal/world/block"
	"go.uber.org/atomic"
)

// StrictInvariants включает панику при нарушении инвариантов индекса (для тестов)
var StrictInvariants = false

// ProxyReleaser освобождает вторичный прокси коллизий уничтожаемого блока
type ProxyReleaser interface {
	Release(h block.Handle)
}

// Options задаёт параметры мира
type Options struct {
	IndexCapacity int
	Proxies       ProxyReleaser
	Logger        *logging.Logger
}

// World владеет ареной блоков, индексом занятости и буфером команд одного уровня
type World struct {
	arena    *Arena
	index    *grid.OccupancyIndex
	commands *CommandBuffer
	proxies  ProxyReleaser
	logger   *logging.Logger

	claimsMu sync.Mutex
	claims   map[grid.Coord]struct{}

	selMu    sync.RWMutex
	selected block.Handle

	violations atomic.Uint64
}

// View снимок живого блока для внешних потребителей (рендер, физика)
type View struct {
	Handle     block.Handle  `json:"handle"`
	Cell       grid.Coord    `json:"cell"`
	WorldPos   vec.Vec3Float `json:"world_pos"`
	Kind       string        `json:"kind"`
	TypeID     block.TypeID  `json:"type_id"`
	Opacity    float64       `json:"opacity"`
	ChainID    int           `json:"chain_id,omitempty"`
	Registered bool          `json:"registered"`
	Remaining  float64       `json:"remaining,omitempty"`
	Anchor     *Anchor       `json:"anchor,omitempty"`
}

// Member сегмент цепочки
type Member struct {
	Handle block.Handle
	Index  int
	Cell   grid.Coord
}

// ChainInfo описывает существующую цепочку
type ChainInfo struct {
	ChainID   int
	Root      block.Handle
	Direction vec.Vec3
	Length    int // наибольший индекс среди сегментов
	Members   []Member
}

// NewWorld создаёт мир уровня
func NewWorld(opts Options) *World {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetWorldLogger()
	}

	arena := NewArena(opts.IndexCapacity)
	return &World{
		arena:    arena,
		index:    grid.NewOccupancyIndex(opts.IndexCapacity, arena.Alive),
		commands: NewCommandBuffer(arena),
		proxies:  opts.Proxies,
		logger:   logger,
		claims:   make(map[grid.Coord]struct{}),
	}
}

// Index возвращает индекс занятости
func (w *World) Index() *grid.OccupancyIndex {
	return w.index
}

// Arena возвращает арену блоков
func (w *World) Arena() *Arena {
	return w.arena
}

// SetProxies задаёт получатель освобождений прокси
func (w *World) SetProxies(p ProxyReleaser) {
	w.proxies = p
}

// Spawn откладывает создание блока и сразу возвращает его Handle
func (w *World) Spawn(b Block) block.Handle {
	return w.commands.Spawn(b)
}

// SpawnStatic создаёт статический блок; тип с флагом Extendable получает атрибут якоря
func (w *World) SpawnStatic(c grid.Coord, typeID block.TypeID) block.Handle {
	b := NewStaticBlock(c, typeID)
	if t, ok := block.Get(typeID); ok {
		b.Anchor = AnchorFromType(t)
	}
	return w.commands.Spawn(b)
}

// Destroy откладывает уничтожение блока; повторный вызов возвращает false
func (w *World) Destroy(h block.Handle, reason DestroyReason) bool {
	return w.commands.Destroy(h, reason)
}

// Playback применяет отложенные команды
func (w *World) Playback() []Change {
	changes := w.commands.Playback(w.proxies)
	if len(changes) > 0 {
		w.logger.Trace("применено %d изменений", len(changes))
	}
	return changes
}

// PendingCommands возвращает число неприменённых команд
func (w *World) PendingCommands() int {
	return w.commands.Pending()
}

// Alive сообщает, что блок существует в арене
func (w *World) Alive(h block.Handle) bool {
	return w.arena.Alive(h)
}

// Get возвращает копию блока
func (w *World) Get(h block.Handle) (Block, bool) {
	b, st, ok := w.arena.Get(h)
	if !ok || st == StateDying {
		return Block{}, false
	}
	return b, true
}

// Occupied проверяет клетку по индексу занятости
func (w *World) Occupied(c grid.Coord) bool {
	return w.index.Contains(c)
}

// Claim закрепляет клетку за созданием в текущем тике.
// Возвращает false, если клетку уже закрепил другой вызов.
func (w *World) Claim(c grid.Coord) bool {
	w.claimsMu.Lock()
	defer w.claimsMu.Unlock()

	if _, taken := w.claims[c]; taken {
		return false
	}
	w.claims[c] = struct{}{}
	return true
}

// Claimed проверяет закрепление без его создания
func (w *World) Claimed(c grid.Coord) bool {
	w.claimsMu.Lock()
	defer w.claimsMu.Unlock()
	_, taken := w.claims[c]
	return taken
}

// ClearClaims сбрасывает закрепления в конце тика
func (w *World) ClearClaims() {
	w.claimsMu.Lock()
	w.claims = make(map[grid.Coord]struct{})
	w.claimsMu.Unlock()
}

// Select выбирает якорь; Nil снимает выбор
func (w *World) Select(h block.Handle) error {
	if !h.IsNil() {
		b, ok := w.Get(h)
		if !ok {
			return fmt.Errorf("select %s: block not found", h)
		}
		if b.Anchor == nil {
			return fmt.Errorf("select %s: block is not extendable", h)
		}
	}

	w.selMu.Lock()
	w.selected = h
	w.selMu.Unlock()
	return nil
}

// Selected возвращает выбранный якорь
func (w *World) Selected() block.Handle {
	w.selMu.RLock()
	defer w.selMu.RUnlock()
	return w.selected
}

// AnchorOf возвращает атрибут якоря и клетку корня
func (w *World) AnchorOf(h block.Handle) (Anchor, grid.Coord, bool) {
	b, ok := w.Get(h)
	if !ok || b.Anchor == nil {
		return Anchor{}, grid.Coord{}, false
	}
	return *b.Anchor, b.Cell(), true
}

// AdjustActiveChains меняет счётчик активных цепочек якоря, не опуская его ниже нуля
func (w *World) AdjustActiveChains(root block.Handle, delta int) (int, bool) {
	current := 0
	found := false
	w.arena.Update(root, func(b *Block) {
		if b.Anchor == nil {
			return
		}
		b.Anchor.ActiveChains += delta
		if b.Anchor.ActiveChains < 0 {
			b.Anchor.ActiveChains = 0
		}
		current = b.Anchor.ActiveChains
		found = true
	})
	return current, found
}

// Chain находит живые сегменты цепочки; помеченные на уничтожение не учитываются
func (w *World) Chain(chainID int) (ChainInfo, bool) {
	info := ChainInfo{ChainID: chainID}
	if chainID == 0 {
		return info, false
	}

	w.arena.Each(func(h block.Handle, b Block, st SlotState) bool {
		if st == StateDying || b.Chain == nil || b.Chain.ChainID != chainID {
			return true
		}
		info.Root = b.Chain.Root
		info.Direction = b.Chain.Direction
		if b.Chain.Index > info.Length {
			info.Length = b.Chain.Index
		}
		info.Members = append(info.Members, Member{Handle: h, Index: b.Chain.Index, Cell: b.Cell()})
		return true
	})
	return info, len(info.Members) > 0
}

// ChainsOf возвращает id всех живых цепочек, растущих от корня
func (w *World) ChainsOf(root block.Handle) []int {
	seen := make(map[int]struct{})
	var ids []int
	w.arena.Each(func(_ block.Handle, b Block, st SlotState) bool {
		if st == StateDying || b.Chain == nil || b.Chain.Root != root {
			return true
		}
		if _, ok := seen[b.Chain.ChainID]; !ok {
			seen[b.Chain.ChainID] = struct{}{}
			ids = append(ids, b.Chain.ChainID)
		}
		return true
	})
	return ids
}

// Snapshot перечисляет живые блоки
func (w *World) Snapshot() []View {
	views := make([]View, 0, w.arena.Len())
	w.arena.Each(func(h block.Handle, b Block, st SlotState) bool {
		if st != StateAlive {
			return true
		}
		v := View{
			Handle:     h,
			Cell:       b.Cell(),
			WorldPos:   b.WorldPos,
			Kind:       b.Kind.String(),
			TypeID:     b.TypeID,
			Opacity:    b.DisplayOpacity(),
			ChainID:    b.ChainID(),
			Registered: b.Registered,
			Anchor:     b.Anchor,
		}
		if b.Lifetime != nil {
			v.Remaining = b.Lifetime.Remaining
		}
		views = append(views, v)
		return true
	})
	return views
}

// Reconcile удаляет из индекса записи уничтоженных блоков
func (w *World) Reconcile() int {
	return w.index.Reconcile(w.arena.Alive)
}

// Verify сверяет зарегистрированные блоки с индексом.
// Возвращает число нарушений: клетка принадлежит другому живому блоку или отсутствует в индексе.
func (w *World) Verify() int {
	type entry struct {
		h block.Handle
		c grid.Coord
	}
	var registered []entry
	w.arena.Each(func(h block.Handle, b Block, st SlotState) bool {
		if st == StateAlive && b.Registered {
			registered = append(registered, entry{h: h, c: b.GridPos})
		}
		return true
	})

	violations := 0
	for _, e := range registered {
		owner, ok := w.index.Lookup(e.c)
		switch {
		case !ok:
			w.reportViolation("блок %s зарегистрирован в %s, но отсутствует в индексе", e.h, e.c)
			violations++
		case owner != e.h && w.arena.Alive(owner):
			w.reportViolation("клетку %s держат два живых блока: %s и %s", e.c, owner, e.h)
			violations++
		}
	}
	return violations
}

func (w *World) reportViolation(format string, args ...interface{}) {
	w.violations.Inc()
	w.logger.Error("нарушение инварианта индекса: "+format, args...)
	if StrictInvariants {
		panic(fmt.Sprintf(format, args...))
	}
}

// Violations возвращает число обнаруженных нарушений
func (w *World) Violations() uint64 {
	return w.violations.Load()
}

// Len возвращает число блоков в арене
func (w *World) Len() int {
	return w.arena.Len()
}
