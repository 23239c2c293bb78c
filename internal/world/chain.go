package world

import (
	"github.com/annel0/gridextend/internal/vec"
	"github.com/annel0/gridextend/internal/world/block"
)

// ChainMembership связывает сегмент с якорем.
// Индексы внутри одной цепочки непрерывны с 1 и равны смещению от корня.
type ChainMembership struct {
	Root      block.Handle `json:"root"`
	Direction vec.Vec3     `json:"direction"`
	Index     int          `json:"index"`
	ChainID   int          `json:"chain_id"`
}

// Anchor атрибут блока, от которого можно тянуть цепочки
type Anchor struct {
	MaxExtendLength     int  `json:"max_extend_length"`
	ActiveChains        int  `json:"active_chains"`
	AllowMultipleChains bool `json:"allow_multiple_chains"`
}

// AnchorFromType строит атрибут якоря по типу блока
func AnchorFromType(t block.Type) *Anchor {
	if !t.Extendable {
		return nil
	}
	return &Anchor{
		MaxExtendLength:     t.MaxExtendLength,
		AllowMultipleChains: t.AllowMultipleChains,
	}
}

// Lifetime конечное время жизни с линейным угасанием
type Lifetime struct {
	Remaining       float64 `json:"remaining"`
	Total           float64 `json:"total"`
	OriginalOpacity float64 `json:"original_opacity"`
}

// NewLifetime возвращает nil для total ≤ 0: время жизни отключено
func NewLifetime(total, opacity float64) *Lifetime {
	if total <= 0 {
		return nil
	}
	return &Lifetime{Remaining: total, Total: total, OriginalOpacity: opacity}
}

// Opacity = original * remaining/total
func (l Lifetime) Opacity() float64 {
	if l.Total <= 0 {
		return 0
	}
	return l.OriginalOpacity * (l.Remaining / l.Total)
}

// Tick уменьшает остаток на dt и сообщает, истекло ли время.
// Отрицательный dt не продлевает жизнь.
func (l *Lifetime) Tick(dt float64) bool {
	if dt > 0 {
		l.Remaining -= dt
	}
	if l.Remaining < 0 {
		l.Remaining = 0
	}
	if l.Remaining > l.Total {
		l.Remaining = l.Total
	}
	return l.Remaining <= 0
}

// Expired сообщает, что остаток исчерпан
func (l Lifetime) Expired() bool {
	return l.Remaining <= 0
}
