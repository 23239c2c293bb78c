package storage

import (
	"context"
	"sync"
	"time"

	"github.com/annel0/gridextend/internal/grid"
)

// MemoryPositionRepo реализует PositionRepo в памяти.
// Используется, когда Redis не настроен, и в тестах.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryPositionRepo struct {
	mu   sync.RWMutex
	data map[string]PlayerPosition
	now  func() time.Time
}

// NewMemoryPositionRepo создает новый репозиторий позиций в памяти.
func NewMemoryPositionRepo() *MemoryPositionRepo {
	return &MemoryPositionRepo{
		data: make(map[string]PlayerPosition),
		now:  time.Now,
	}
}

// Save сохраняет позицию игрока в памяти.
func (r *MemoryPositionRepo) Save(ctx context.Context, playerID string, foot grid.Coord) error {
	if playerID == "" {
		return ErrInvalidPlayer
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[playerID] = PlayerPosition{PlayerID: playerID, Foot: foot, UpdatedAt: r.now()}
	return nil
}

// Load загружает позицию игрока из памяти.
func (r *MemoryPositionRepo) Load(ctx context.Context, playerID string) (PlayerPosition, bool, error) {
	if playerID == "" {
		return PlayerPosition{}, false, ErrInvalidPlayer
	}
	if err := ctx.Err(); err != nil {
		return PlayerPosition{}, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, exists := r.data[playerID]
	return pos, exists, nil
}

// Delete удаляет сохраненную позицию игрока из памяти.
func (r *MemoryPositionRepo) Delete(ctx context.Context, playerID string) error {
	if playerID == "" {
		return ErrInvalidPlayer
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.data[playerID]; !exists {
		return ErrNotFound
	}
	delete(r.data, playerID)
	return nil
}

// BatchSave сохраняет позиции нескольких игроков в памяти.
// Пакет применяется целиком или не применяется вовсе.
func (r *MemoryPositionRepo) BatchSave(ctx context.Context, positions map[string]grid.Coord) error {
	if len(positions) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for playerID := range positions {
		if playerID == "" {
			return ErrInvalidPlayer
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for playerID, foot := range positions {
		r.data[playerID] = PlayerPosition{PlayerID: playerID, Foot: foot, UpdatedAt: now}
	}
	return nil
}

// Len возвращает число сохранённых позиций
func (r *MemoryPositionRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

func (r *MemoryPositionRepo) Close() error { return nil }
