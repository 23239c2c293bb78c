package storage

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/gridextend/internal/grid"
)

var (
	// ErrInvalidPlayer возвращается для пустого идентификатора игрока
	ErrInvalidPlayer = errors.New("storage: empty player id")
	// ErrNotFound возвращается при удалении отсутствующей позиции
	ErrNotFound = errors.New("storage: position not found")
)

// PlayerPosition клетка под ступнями игрока
type PlayerPosition struct {
	PlayerID  string     `json:"player_id"`
	Foot      grid.Coord `json:"foot"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// PositionRepo хранит позиции игроков для защиты от замуровывания.
// Позиция переживает перезапуск сервера, если хранилище внешнее.
type PositionRepo interface {
	// Save сохраняет позицию игрока
	Save(ctx context.Context, playerID string, foot grid.Coord) error
	// Load возвращает позицию; found=false, если игрок ещё не сообщал позицию
	Load(ctx context.Context, playerID string) (PlayerPosition, bool, error)
	// Delete удаляет позицию игрока
	Delete(ctx context.Context, playerID string) error
	// BatchSave сохраняет позиции нескольких игроков одним вызовом
	BatchSave(ctx context.Context, positions map[string]grid.Coord) error
	Close() error
}
