package level

import (
	"fmt"
	"math/rand"

	"github.com/annel0/gridextend/internal/util"
	"github.com/annel0/gridextend/internal/world/block"
)

// Generator строит детерминированную раскладку по карте высот Перлина
type Generator struct {
	Seed         int64
	Width        int     // по X
	Depth        int     // по Z
	MaxHeight    int     // высота столбца в блоках при шуме 1
	NoiseScale   float64 // масштаб шума (сглаженность рельефа)
	AnchorChance float64 // доля верхних блоков, становящихся якорями
	Layer        int32
}

// NewGenerator создаёт генератор с настройками по умолчанию
func NewGenerator(seed int64, width, depth, maxHeight int) *Generator {
	return &Generator{
		Seed:         seed,
		Width:        width,
		Depth:        depth,
		MaxHeight:    maxHeight,
		NoiseScale:   0.08,
		AnchorChance: 0.05,
	}
}

// Generate возвращает раскладку: столбцы от y=0 до высоты рельефа
func (g *Generator) Generate() *Layout {
	noise := util.NewNoise(g.Seed)
	rng := rand.New(rand.NewSource(g.Seed))

	maxHeight := g.MaxHeight
	if maxHeight < 1 {
		maxHeight = 1
	}

	l := &Layout{
		Name:  fmt.Sprintf("perlin-%d", g.Seed),
		Layer: g.Layer,
	}
	for x := 0; x < g.Width; x++ {
		for z := 0; z < g.Depth; z++ {
			h := 1 + int(noise.Noise2D(float64(x)*g.NoiseScale, float64(z)*g.NoiseScale)*float64(maxHeight-1)+0.5)
			if h > maxHeight {
				h = maxHeight
			}
			for y := 0; y < h; y++ {
				typ := block.DefaultTypeID
				// Якорем может стать только верхний блок столбца
				if y == h-1 && rng.Float64() < g.AnchorChance {
					typ = block.AnchorTypeID
				}
				l.Cells = append(l.Cells, Cell{X: int32(x), Y: int32(y), Z: int32(z), Type: typ})
			}
		}
	}
	return l
}
