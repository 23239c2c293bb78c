package physics

import (
	"github.com/annel0/gridextend/internal/vec"
)

// BoxCollider представляет выровненный по осям параллелепипед
type BoxCollider struct {
	Min vec.Vec3Float
	Max vec.Vec3Float
}

// UnitBox возвращает коллайдер единичного блока с центром в клетке
func UnitBox(center vec.Vec3Float) BoxCollider {
	half := vec.Vec3Float{X: 0.5, Y: 0.5, Z: 0.5}
	return BoxCollider{Min: center.Sub(half), Max: center.Add(half)}
}

// NewBoxCollider создаёт коллайдер по центру и размерам
func NewBoxCollider(center, size vec.Vec3Float) BoxCollider {
	half := size.Mul(0.5)
	return BoxCollider{Min: center.Sub(half), Max: center.Add(half)}
}

// Center возвращает центр коллайдера
func (b BoxCollider) Center() vec.Vec3Float {
	return b.Min.Add(b.Max).Mul(0.5)
}

// IsPointInside проверяет, находится ли точка внутри коллайдера
func (b BoxCollider) IsPointInside(p vec.Vec3Float) bool {
	return p.X >= b.Min.X && p.X < b.Max.X &&
		p.Y >= b.Min.Y && p.Y < b.Max.Y &&
		p.Z >= b.Min.Z && p.Z < b.Max.Z
}

// CheckBoxCollision проверяет пересечение двух коллайдеров; касание гранями не считается
func CheckBoxCollision(a, b BoxCollider) bool {
	return a.Max.X > b.Min.X && a.Min.X < b.Max.X &&
		a.Max.Y > b.Min.Y && a.Min.Y < b.Max.Y &&
		a.Max.Z > b.Min.Z && a.Min.Z < b.Max.Z
}
