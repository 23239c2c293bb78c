package vec

import "fmt"

// Vec3 представляет трехмерный вектор с целочисленными координатами решётки
type Vec3 struct {
	X int32
	Y int32
	Z int32
}

// Осевые единичные направления
var (
	AxisPosX = Vec3{X: 1}
	AxisNegX = Vec3{X: -1}
	AxisPosY = Vec3{Y: 1}
	AxisNegY = Vec3{Y: -1}
	AxisPosZ = Vec3{Z: 1}
	AxisNegZ = Vec3{Z: -1}
)

// Axes возвращает все шесть осевых направлений
func Axes() []Vec3 {
	return []Vec3{AxisPosX, AxisNegX, AxisPosY, AxisNegY, AxisPosZ, AxisNegZ}
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Scale умножает вектор на целое число
func (v Vec3) Scale(n int32) Vec3 {
	return Vec3{X: v.X * n, Y: v.Y * n, Z: v.Z * n}
}

// IsZero возвращает true для нулевого вектора
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// IsAxisUnit проверяет, что вектор является одним из шести осевых единичных направлений
func (v Vec3) IsAxisUnit() bool {
	nonZero := 0
	for _, c := range [3]int32{v.X, v.Y, v.Z} {
		switch c {
		case 0:
		case 1, -1:
			nonZero++
		default:
			return false
		}
	}
	return nonZero == 1
}

// ToFloat преобразует в вектор с плавающей точкой
func (v Vec3) ToFloat() Vec3Float {
	return Vec3Float{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

// DistanceSq возвращает квадрат расстояния до другого вектора
func (v Vec3) DistanceSq(other Vec3) int64 {
	dx := int64(v.X - other.X)
	dy := int64(v.Y - other.Y)
	dz := int64(v.Z - other.Z)
	return dx*dx + dy*dy + dz*dz
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z)
}
