package vec

import "math"

// Vec3Float представляет непрерывную мировую позицию
type Vec3Float struct {
	X float64
	Y float64
	Z float64
}

// Round округляет каждую компоненту до ближайшего целого (половины от нуля)
func (v Vec3Float) Round() Vec3 {
	return Vec3{
		X: int32(math.Round(v.X)),
		Y: int32(math.Round(v.Y)),
		Z: int32(math.Round(v.Z)),
	}
}

// Add складывает два вектора
func (v Vec3Float) Add(other Vec3Float) Vec3Float {
	return Vec3Float{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub вычитает вектор
func (v Vec3Float) Sub(other Vec3Float) Vec3Float {
	return Vec3Float{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Mul умножает вектор на скаляр
func (v Vec3Float) Mul(scalar float64) Vec3Float {
	return Vec3Float{X: v.X * scalar, Y: v.Y * scalar, Z: v.Z * scalar}
}

// LengthSq возвращает квадрат длины вектора
func (v Vec3Float) LengthSq() float64 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec3Float) DistanceTo(other Vec3Float) float64 {
	return math.Sqrt(v.Sub(other).LengthSq())
}
