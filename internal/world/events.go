package world

import (
	"github.com/annel0/gridextend/internal/grid"
	"github.com/annel0/gridextend/internal/world/block"
)

// ChangeType определяет тип структурного изменения мира
type ChangeType uint8

const (
	ChangeSpawned   ChangeType = iota // Блок применён в арене
	ChangeDestroyed                   // Блок уничтожен и слот освобождён
)

func (t ChangeType) String() string {
	switch t {
	case ChangeSpawned:
		return "spawned"
	case ChangeDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// DestroyReason объясняет, почему блок уничтожен
type DestroyReason uint8

const (
	ReasonNone DestroyReason = iota
	ReasonRetracted
	ReasonExpired
	ReasonRemoved
)

func (r DestroyReason) String() string {
	switch r {
	case ReasonRetracted:
		return "retracted"
	case ReasonExpired:
		return "expired"
	case ReasonRemoved:
		return "removed"
	default:
		return "none"
	}
}

// Change запись об изменении, возвращаемая при применении команд
type Change struct {
	Type    ChangeType
	Handle  block.Handle
	Cell    grid.Coord
	Kind    block.Kind
	ChainID int
	Reason  DestroyReason
}
