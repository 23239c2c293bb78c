package level

import "sync"

// Spawner выдаёт статические клетки партиями, чтобы загрузка большой раскладки
// растягивалась на несколько тиков
type Spawner struct {
	mu      sync.Mutex
	queue   []Cell
	perTick int
}

// NewSpawner создаёт очередь; perTick ≤ 0: всё за один тик
func NewSpawner(perTick int) *Spawner {
	return &Spawner{perTick: perTick}
}

// Enqueue добавляет клетки в очередь
func (s *Spawner) Enqueue(cells []Cell) {
	s.mu.Lock()
	s.queue = append(s.queue, cells...)
	s.mu.Unlock()
}

// Next извлекает очередную партию
func (s *Spawner) Next() []Cell {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.queue)
	if s.perTick > 0 && n > s.perTick {
		n = s.perTick
	}
	if n == 0 {
		return nil
	}
	batch := make([]Cell, n)
	copy(batch, s.queue[:n])
	s.queue = s.queue[n:]
	if len(s.queue) == 0 {
		s.queue = nil
	}
	return batch
}

// Pending возвращает число клеток в очереди
func (s *Spawner) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
