package tools

import (
	"github.com/NERVsystems/osmgrid/pkg/grid"
	"github.com/NERVsystems/osmgrid/pkg/tile"
)

// RenderHint is the presentation of a tile type for renderers: a fill
// colour, an extrusion height in metres and a one-character glyph.
type RenderHint struct {
	Color  string  `json:"color"`
	Height float64 `json:"height"`
	Glyph  string  `json:"glyph"`
}

var renderHints = map[tile.Type]RenderHint{
	tile.Empty:       {"#f2efe9", 0, "."},
	tile.Road:        {"#808080", 0.1, "="},
	tile.Building:    {"#c8a07a", 10, "#"},
	tile.Water:       {"#4a90d9", 0, "~"},
	tile.GreenSpace:  {"#6bbf59", 0.2, "\""},
	tile.Railway:     {"#5a5a5a", 0.3, "+"},
	tile.Parking:     {"#b0b0c8", 0.05, "P"},
	tile.Amenity:     {"#e0704a", 4, "A"},
	tile.Tourism:     {"#d64ad6", 4, "T"},
	tile.Industrial:  {"#a08ca0", 8, "I"},
	tile.Residential: {"#e0d0b0", 6, "r"},
	tile.Commercial:  {"#e8b0b0", 8, "c"},
	tile.PowerLine:   {"#404040", 15, "|"},
	tile.Boundary:    {"#9060a0", 0, ":"},
	tile.Landuse:     {"#d8e0b8", 0.1, ","},
	tile.Custom:      {"#ff00ff", 1, "?"},
}

// HintFor returns the render hint of t. Unknown types render as empty.
func HintFor(t tile.Type) RenderHint {
	if h, ok := renderHints[t]; ok {
		return h
	}
	return renderHints[tile.Empty]
}

// LegendEntry describes one tile type in a tool result.
type LegendEntry struct {
	Type tile.Type `json:"type"`
	RenderHint
	Cells int `json:"cells"`
}

// legend lists every tile type present in g, in enumeration order.
func legend(g *grid.TileGrid) []LegendEntry {
	counts := g.Counts()
	empty := g.Width() * g.Height()
	for _, n := range counts {
		empty -= n
	}
	var out []LegendEntry
	for _, t := range tile.All() {
		n := counts[t]
		if t == tile.Empty {
			n = empty
		}
		if n == 0 {
			continue
		}
		out = append(out, LegendEntry{Type: t, RenderHint: HintFor(t), Cells: n})
	}
	return out
}

// PreviewColumns is the widest ASCII preview produced.
const PreviewColumns = 64

// preview renders g as rows of glyphs, northern row first. Grids wider or
// taller than maxCols are downsampled into square blocks, each shown as its
// most frequent non-empty type; ties go to the higher priority type.
func preview(g *grid.TileGrid, maxCols int) []string {
	w, h := g.Width(), g.Height()
	if w == 0 || h == 0 || maxCols < 1 {
		return nil
	}
	block := 1
	for (w+block-1)/block > maxCols || (h+block-1)/block > maxCols {
		block++
	}

	rows := make([]string, 0, (h+block-1)/block)
	counts := make(map[tile.Type]int)
	for r0 := 0; r0 < h; r0 += block {
		line := make([]byte, 0, (w+block-1)/block)
		for c0 := 0; c0 < w; c0 += block {
			clear(counts)
			for r := r0; r < min(r0+block, h); r++ {
				for c := c0; c < min(c0+block, w); c++ {
					if t := g.At(c, r); t != tile.Empty {
						counts[t]++
					}
				}
			}
			line = append(line, HintFor(dominant(counts)).Glyph...)
		}
		rows = append(rows, string(line))
	}
	return rows
}

func dominant(counts map[tile.Type]int) tile.Type {
	best, bestN := tile.Empty, 0
	for t, n := range counts {
		if n > bestN || (n == bestN && t.Priority() > best.Priority()) {
			best, bestN = t, n
		}
	}
	return best
}
