package grid

import (
	"fmt"
	"sync"

	"github.com/annel0/gridextend/internal/world/block"
	"go.uber.org/atomic"
)

const (
	// MinCapacity нижняя граница ёмкости после роста
	MinCapacity = 4096
	// growSlack добавляется к ёмкости при каждом росте
	growSlack = 1024

	shardCount = 64
)

// OccupancyIndex конкурентная карта клетка → блок.
//
// Записи разнесены по шардам, шард выбирается по xxhash координаты.
// Писатели держат разделяемую блокировку resize, рост берёт её эксклюзивно,
// копирует записи в новое хранилище и атомарно подменяет указатель.
// Читатели блокировку resize не берут: они видят либо старое, либо новое хранилище целиком.
type OccupancyIndex struct {
	resize sync.RWMutex
	cur    atomic.Pointer[store]

	live  atomic.Int64
	grows atomic.Uint64

	// alive сообщает, существует ли ещё блок; мёртвые записи TryInsert перезаписывает
	alive func(block.Handle) bool
}

type store struct {
	capacity int
	shards   [shardCount]shard
}

type shard struct {
	mu      sync.RWMutex
	entries map[Coord]block.Handle
}

// Stats сводка состояния индекса
type Stats struct {
	Live     int    `json:"live"`
	Capacity int    `json:"capacity"`
	Shards   int    `json:"shards"`
	MaxShard int    `json:"max_shard"`
	Grows    uint64 `json:"grows"`
}

func (s Stats) String() string {
	return fmt.Sprintf("OccupancyIndex: live=%d, capacity=%d, shards=%d, max_shard=%d, grows=%d",
		s.Live, s.Capacity, s.Shards, s.MaxShard, s.Grows)
}

// NewOccupancyIndex создаёт индекс с начальной ёмкостью capacity.
// alive может быть nil: тогда любая существующая запись считается живой.
func NewOccupancyIndex(capacity int, alive func(block.Handle) bool) *OccupancyIndex {
	if capacity <= 0 {
		capacity = MinCapacity
	}
	idx := &OccupancyIndex{alive: alive}
	idx.cur.Store(newStore(capacity))
	return idx
}

func newStore(capacity int) *store {
	s := &store{capacity: capacity}
	hint := capacity / shardCount
	for i := range s.shards {
		s.shards[i].entries = make(map[Coord]block.Handle, hint)
	}
	return s
}

func (s *store) shardFor(c Coord) *shard {
	return &s.shards[c.Hash()%shardCount]
}

// TryInsert занимает клетку за блоком h.
// Возвращает false, если клетку уже держит живой блок; из конкурентных вызовов
// для одной клетки успешен ровно один.
func (idx *OccupancyIndex) TryInsert(c Coord, h block.Handle) bool {
	if h.IsNil() {
		return false
	}

	idx.resize.RLock()
	s := idx.cur.Load()
	sh := s.shardFor(c)

	sh.mu.Lock()
	inserted := false
	if existing, ok := sh.entries[c]; ok {
		// Запись от уничтоженного блока ещё не прошла сверку
		if existing != h && idx.alive != nil && !idx.alive(existing) {
			sh.entries[c] = h
			inserted = true
		}
	} else {
		sh.entries[c] = h
		idx.live.Inc()
		inserted = true
	}
	sh.mu.Unlock()
	idx.resize.RUnlock()

	if inserted {
		idx.maybeGrow(0)
	}
	return inserted
}

// Lookup возвращает блок, занимающий клетку
func (idx *OccupancyIndex) Lookup(c Coord) (block.Handle, bool) {
	sh := idx.cur.Load().shardFor(c)
	sh.mu.RLock()
	h, ok := sh.entries[c]
	sh.mu.RUnlock()
	return h, ok
}

// Contains проверяет, занята ли клетка
func (idx *OccupancyIndex) Contains(c Coord) bool {
	_, ok := idx.Lookup(c)
	return ok
}

// Remove освобождает клетку
func (idx *OccupancyIndex) Remove(c Coord) {
	idx.removeMatching(c, func(block.Handle) bool { return true })
}

// RemoveIf освобождает клетку, только если она всё ещё принадлежит h
func (idx *OccupancyIndex) RemoveIf(c Coord, h block.Handle) bool {
	return idx.removeMatching(c, func(existing block.Handle) bool { return existing == h })
}

func (idx *OccupancyIndex) removeMatching(c Coord, match func(block.Handle) bool) bool {
	idx.resize.RLock()
	defer idx.resize.RUnlock()

	sh := idx.cur.Load().shardFor(c)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	existing, ok := sh.entries[c]
	if !ok || !match(existing) {
		return false
	}
	delete(sh.entries, c)
	idx.live.Dec()
	return true
}

// Reconcile удаляет записи, чьи блоки не проходят isAlive. Возвращает число удалённых.
func (idx *OccupancyIndex) Reconcile(isAlive func(block.Handle) bool) int {
	idx.resize.RLock()
	defer idx.resize.RUnlock()

	s := idx.cur.Load()
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for c, h := range sh.entries {
			if !isAlive(h) {
				delete(sh.entries, c)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	idx.live.Sub(int64(removed))
	return removed
}

// EnsureCapacity растит индекс заранее, если после добавления n записей
// будет превышен порог 2/3 ёмкости
func (idx *OccupancyIndex) EnsureCapacity(n int) bool {
	if n < 0 {
		n = 0
	}
	return idx.maybeGrow(n)
}

// maybeGrow выполняет рост, если live+pending ≥ 2/3 ёмкости
func (idx *OccupancyIndex) maybeGrow(pending int) bool {
	if !needsGrow(int(idx.live.Load())+pending, idx.cur.Load().capacity) {
		return false
	}

	idx.resize.Lock()
	defer idx.resize.Unlock()

	old := idx.cur.Load()
	need := int(idx.live.Load()) + pending
	// Пока ждали блокировку, рост мог выполнить другой писатель
	if !needsGrow(need, old.capacity) {
		return false
	}

	next := newStore(grownCapacity(need))
	for i := range old.shards {
		src := &old.shards[i]
		src.mu.RLock()
		for c, h := range src.entries {
			next.shardFor(c).entries[c] = h
		}
		src.mu.RUnlock()
	}

	idx.cur.Store(next)
	idx.grows.Inc()
	return true
}

func needsGrow(live, capacity int) bool {
	return live*3 >= capacity*2
}

// grownCapacity возвращает max(4096, live*1.5 + 1024)
func grownCapacity(live int) int {
	c := live + live/2 + growSlack
	if c < MinCapacity {
		return MinCapacity
	}
	return c
}

// Len возвращает число записей
func (idx *OccupancyIndex) Len() int {
	return int(idx.live.Load())
}

// Capacity возвращает текущую ёмкость хранилища
func (idx *OccupancyIndex) Capacity() int {
	return idx.cur.Load().capacity
}

// Grows возвращает число выполненных ростов
func (idx *OccupancyIndex) Grows() uint64 {
	return idx.grows.Load()
}

// Range обходит копию записей каждого шарда; fn возвращает false для остановки
func (idx *OccupancyIndex) Range(fn func(Coord, block.Handle) bool) {
	s := idx.cur.Load()
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		batch := make(map[Coord]block.Handle, len(sh.entries))
		for c, h := range sh.entries {
			batch[c] = h
		}
		sh.mu.RUnlock()

		for c, h := range batch {
			if !fn(c, h) {
				return
			}
		}
	}
}

// Stats возвращает статистику индекса
func (idx *OccupancyIndex) Stats() Stats {
	s := idx.cur.Load()
	maxShard := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		if n := len(sh.entries); n > maxShard {
			maxShard = n
		}
		sh.mu.RUnlock()
	}
	return Stats{
		Live:     idx.Len(),
		Capacity: s.capacity,
		Shards:   shardCount,
		MaxShard: maxShard,
		Grows:    idx.grows.Load(),
	}
}
