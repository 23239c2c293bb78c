package world

import (
	"github.com/annel0/gridextend/internal/grid"
	"github.com/annel0/gridextend/internal/vec"
	"github.com/annel0/gridextend/internal/world/block"
)

// Block представляет собой запись блока в арене мира
type Block struct {
	WorldPos   vec.Vec3Float // Непрерывная позиция, из неё вычисляется клетка
	GridPos    grid.Coord    // Клетка в индексе; неизменна после регистрации
	Layer      int32         // Слой (стадия) уровня
	Kind       block.Kind
	TypeID     block.TypeID
	Registered bool    // Блок занимает клетку в индексе занятости
	Opacity    float64 // Базовая непрозрачность без учёта времени жизни

	Chain    *ChainMembership // Членство в цепочке, если блок её сегмент
	Lifetime *Lifetime        // Конечное время жизни
	Anchor   *Anchor          // Блок может быть корнем цепочек
}

// NewStaticBlock создаёт статический блок в клетке
func NewStaticBlock(c grid.Coord, typeID block.TypeID) Block {
	return Block{
		WorldPos: c.Vec().ToFloat(),
		GridPos:  c,
		Layer:    c.Layer,
		Kind:     block.KindStatic,
		TypeID:   typeID,
		Opacity:  1,
	}
}

// NewExtendedBlock создаёт сегмент цепочки в клетке
func NewExtendedBlock(c grid.Coord, membership ChainMembership) Block {
	return Block{
		WorldPos: c.Vec().ToFloat(),
		GridPos:  c,
		Layer:    c.Layer,
		Kind:     block.KindExtended,
		TypeID:   block.ExtendedTypeID,
		Opacity:  1,
		Chain:    &membership,
	}
}

// Cell возвращает клетку блока: зарегистрированную или вычисленную из мировой позиции
func (b Block) Cell() grid.Coord {
	if b.Registered {
		return b.GridPos
	}
	return grid.FromWorld(b.WorldPos, b.Layer)
}

// DisplayOpacity возвращает отображаемую непрозрачность с учётом угасания
func (b Block) DisplayOpacity() float64 {
	if b.Lifetime != nil {
		return b.Lifetime.Opacity()
	}
	return b.Opacity
}

// ChainID возвращает id цепочки или 0 для блока вне цепочки
func (b Block) ChainID() int {
	if b.Chain == nil {
		return 0
	}
	return b.Chain.ChainID
}

// Clone создаёт копию блока, не разделяющую необязательные атрибуты
func (b Block) Clone() Block {
	if b.Chain != nil {
		c := *b.Chain
		b.Chain = &c
	}
	if b.Lifetime != nil {
		l := *b.Lifetime
		b.Lifetime = &l
	}
	if b.Anchor != nil {
		a := *b.Anchor
		b.Anchor = &a
	}
	return b
}
