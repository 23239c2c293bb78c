package level

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/annel0/gridextend/internal/grid"
	"github.com/annel0/gridextend/internal/vec"
	"github.com/annel0/gridextend/internal/world/block"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

// compressedExt раскладки с этим суффиксом хранятся сжатыми zstd
const compressedExt = ".zst"

// Cell статический блок раскладки
type Cell struct {
	X     int32        `yaml:"x" json:"x"`
	Y     int32        `yaml:"y" json:"y"`
	Z     int32        `yaml:"z" json:"z"`
	Layer int32        `yaml:"layer,omitempty" json:"layer,omitempty"`
	Type  block.TypeID `yaml:"type" json:"type"`
}

// Coord возвращает клетку блока
func (c Cell) Coord() grid.Coord {
	return grid.New(c.X, c.Y, c.Z, c.Layer)
}

// ShouldBeAnchor сообщает, получит ли блок атрибут якоря при спавне
func ShouldBeAnchor(c Cell) bool {
	t, ok := block.Get(c.Type)
	return ok && t.Extendable
}

// Layout раскладка статических блоков уровня
type Layout struct {
	Name   string   `yaml:"name"`
	Layer  int32    `yaml:"layer"`
	Origin vec.Vec3 `yaml:"origin"`
	Cells  []Cell   `yaml:"cells"`
}

// Resolve возвращает клетки в координатах мира: сдвиг на Origin и слой раскладки
func (l *Layout) Resolve() []Cell {
	out := make([]Cell, len(l.Cells))
	for i, c := range l.Cells {
		c.X += l.Origin.X
		c.Y += l.Origin.Y
		c.Z += l.Origin.Z
		if c.Layer == 0 {
			c.Layer = l.Layer
		}
		out[i] = c
	}
	return out
}

// Validate проверяет типы блоков и уникальность клеток
func (l *Layout) Validate() error {
	seen := make(map[grid.Coord]struct{}, len(l.Cells))
	for i, c := range l.Resolve() {
		if !block.IsValidTypeID(c.Type) {
			return fmt.Errorf("cell %d %s: unknown block type %d", i, c.Coord(), c.Type)
		}
		if _, dup := seen[c.Coord()]; dup {
			return fmt.Errorf("cell %d: duplicate coordinate %s", i, c.Coord())
		}
		seen[c.Coord()] = struct{}{}
	}
	return nil
}

// Anchors возвращает число клеток, которые станут якорями
func (l *Layout) Anchors() int {
	n := 0
	for _, c := range l.Cells {
		if ShouldBeAnchor(c) {
			n++
		}
	}
	return n
}

// Load читает раскладку из YAML (или YAML, сжатого zstd, для *.zst)
func Load(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout %s: %w", path, err)
	}

	if strings.HasSuffix(path, compressedExt) {
		dec, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open zstd layout %s: %w", path, err)
		}
		defer dec.Close()
		if data, err = io.ReadAll(dec); err != nil {
			return nil, fmt.Errorf("decompress layout %s: %w", path, err)
		}
	}

	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse layout %s: %w", path, err)
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("layout %s: %w", path, err)
	}
	return &l, nil
}

// Save пишет раскладку в YAML, для *.zst сжатой zstd
func (l *Layout) Save(path string) error {
	data, err := yaml.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal layout: %w", err)
	}

	if strings.HasSuffix(path, compressedExt) {
		var buf bytes.Buffer
		enc, err := zstd.NewWriter(&buf)
		if err != nil {
			return fmt.Errorf("create zstd writer: %w", err)
		}
		if _, err := enc.Write(data); err != nil {
			enc.Close()
			return fmt.Errorf("compress layout: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("compress layout: %w", err)
		}
		data = buf.Bytes()
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write layout %s: %w", path, err)
	}
	return nil
}
