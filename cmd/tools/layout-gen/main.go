package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/annel0/gridextend/internal/level"
)

func main() {
	var (
		out          = flag.String("out", "level.yml", "Output path (.yml or .yml.zst)")
		seed         = flag.Int64("seed", 1, "Noise seed")
		width        = flag.Int("width", 32, "Width along X")
		depth        = flag.Int("depth", 32, "Depth along Z")
		height       = flag.Int("height", 6, "Max column height")
		scale        = flag.Float64("scale", 0.08, "Noise scale")
		anchorChance = flag.Float64("anchors", 0.05, "Chance for a column top to become an anchor")
		layer        = flag.Int("layer", 0, "Layer of the generated layout")
		name         = flag.String("name", "", "Layout name (default perlin-<seed>)")
	)
	flag.Parse()

	if *width <= 0 || *depth <= 0 {
		log.Fatalf("❌ width and depth must be positive")
	}

	g := level.NewGenerator(*seed, *width, *depth, *height)
	g.NoiseScale = *scale
	g.AnchorChance = *anchorChance
	g.Layer = int32(*layer)

	layout := g.Generate()
	if *name != "" {
		layout.Name = *name
	}
	if err := layout.Validate(); err != nil {
		log.Fatalf("❌ Generated layout is invalid: %v", err)
	}
	if err := layout.Save(*out); err != nil {
		log.Fatalf("❌ Failed to save layout: %v", err)
	}

	fmt.Printf("✅ %s: %d blocks, %d anchors → %s\n", layout.Name, len(layout.Cells), layout.Anchors(), *out)
}
