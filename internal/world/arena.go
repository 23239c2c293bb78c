package world

import (
	"sync"

	"github.com/annel0/gridextend/internal/world/block"
)

// SlotState состояние слота арены
type SlotState uint8

const (
	StateFree    SlotState = iota
	StatePending           // зарезервирован командой спавна, ещё не применён
	StateAlive
	StateDying // помечен на уничтожение, освобождается при применении команд
)

type slot struct {
	gen   uint32
	state SlotState
	block Block
}

// Arena хранит записи блоков, адресуемые Handle с проверкой поколения
type Arena struct {
	mu    sync.RWMutex
	slots []slot
	free  []uint32
	live  int
}

// NewArena создаёт арену с заданной начальной ёмкостью
func NewArena(capacity int) *Arena {
	if capacity < 0 {
		capacity = 0
	}
	return &Arena{slots: make([]slot, 0, capacity)}
}

// Reserve занимает слот под блок в состоянии Pending
func (a *Arena) Reserve(b Block) block.Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot{})
	}

	s := &a.slots[idx]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.state = StatePending
	s.block = b
	a.live++
	return block.Handle{Index: idx, Gen: s.gen}
}

// slot возвращает слот, если поколение совпадает и слот занят. Вызывать под блокировкой.
func (a *Arena) slot(h block.Handle) *slot {
	if h.IsNil() || int(h.Index) >= len(a.slots) {
		return nil
	}
	s := &a.slots[h.Index]
	if s.gen != h.Gen || s.state == StateFree {
		return nil
	}
	return s
}

// Commit переводит зарезервированный блок в Alive
func (a *Arena) Commit(h block.Handle) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.slot(h)
	if s == nil || s.state != StatePending {
		return false
	}
	s.state = StateAlive
	return true
}

// MarkDying помечает блок на уничтожение. Успешен только один раз для блока.
func (a *Arena) MarkDying(h block.Handle) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.slot(h)
	if s == nil || s.state == StateDying {
		return false
	}
	s.state = StateDying
	return true
}

// Release освобождает слот помеченного блока
func (a *Arena) Release(h block.Handle) (Block, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.slot(h)
	if s == nil || s.state != StateDying {
		return Block{}, false
	}
	b := s.block
	s.state = StateFree
	s.block = Block{}
	a.free = append(a.free, h.Index)
	a.live--
	return b, true
}

// Get возвращает копию блока и его состояние
func (a *Arena) Get(h block.Handle) (Block, SlotState, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := a.slot(h)
	if s == nil {
		return Block{}, StateFree, false
	}
	return s.block.Clone(), s.state, true
}

// Alive сообщает, что блок применён и ещё не освобождён (Alive или Dying)
func (a *Arena) Alive(h block.Handle) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := a.slot(h)
	return s != nil && (s.state == StateAlive || s.state == StateDying)
}

// Update изменяет блок на месте. fn не должен обращаться к арене.
func (a *Arena) Update(h block.Handle, fn func(*Block)) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.slot(h)
	if s == nil {
		return false
	}
	fn(&s.block)
	return true
}

// Each обходит копии всех занятых слотов; fn возвращает false для остановки
func (a *Arena) Each(fn func(h block.Handle, b Block, st SlotState) bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for i := range a.slots {
		s := &a.slots[i]
		if s.state == StateFree {
			continue
		}
		if !fn(block.Handle{Index: uint32(i), Gen: s.gen}, s.block.Clone(), s.state) {
			return
		}
	}
}

// UpdateEach изменяет на месте каждый блок в состоянии Alive. fn не должен обращаться к арене.
func (a *Arena) UpdateEach(fn func(h block.Handle, b *Block)) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.slots {
		s := &a.slots[i]
		if s.state != StateAlive {
			continue
		}
		fn(block.Handle{Index: uint32(i), Gen: s.gen}, &s.block)
	}
}

// Len возвращает число занятых слотов
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.live
}
