package grid

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/annel0/gridextend/internal/vec"
	"github.com/cespare/xxhash/v2"
)

// ErrInvalidDirection возвращается для направления, не совпадающего ни с одной осью
var ErrInvalidDirection = errors.New("direction must be an axis-aligned unit vector")

// Coord адрес одной клетки решётки.
// Layer разделяет независимые области (стадии) с одинаковым диапазоном XYZ.
type Coord struct {
	X     int32 `json:"x" yaml:"x"`
	Y     int32 `json:"y" yaml:"y"`
	Z     int32 `json:"z" yaml:"z"`
	Layer int32 `json:"layer" yaml:"layer"`
}

// New создаёт координату
func New(x, y, z, layer int32) Coord {
	return Coord{X: x, Y: y, Z: z, Layer: layer}
}

// FromVec создаёт координату из целочисленного вектора
func FromVec(v vec.Vec3, layer int32) Coord {
	return Coord{X: v.X, Y: v.Y, Z: v.Z, Layer: layer}
}

// FromWorld округляет непрерывную позицию до ближайшей клетки
func FromWorld(p vec.Vec3Float, layer int32) Coord {
	return FromVec(p.Round(), layer)
}

// Vec возвращает XYZ без слоя
func (c Coord) Vec() vec.Vec3 {
	return vec.Vec3{X: c.X, Y: c.Y, Z: c.Z}
}

// Add сдвигает координату на вектор в том же слое
func (c Coord) Add(v vec.Vec3) Coord {
	return Coord{X: c.X + v.X, Y: c.Y + v.Y, Z: c.Z + v.Z, Layer: c.Layer}
}

// Offset возвращает клетку root + dir*n
func (c Coord) Offset(dir vec.Vec3, n int32) (Coord, error) {
	if !dir.IsAxisUnit() {
		return c, fmt.Errorf("offset %s: %w", dir, ErrInvalidDirection)
	}
	return c.Add(dir.Scale(n)), nil
}

// Hash возвращает структурный хеш координаты
func (c Coord) Hash() uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(c.X))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(c.Y))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(c.Z))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(c.Layer))
	return xxhash.Sum64(buf[:])
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)@%d", c.X, c.Y, c.Z, c.Layer)
}
