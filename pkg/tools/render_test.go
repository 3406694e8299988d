package tools

import (
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/NERVsystems/osmgrid/pkg/config"
	"github.com/NERVsystems/osmgrid/pkg/element"
	"github.com/NERVsystems/osmgrid/pkg/grid"
	"github.com/NERVsystems/osmgrid/pkg/tile"
)

func TestRenderHintsCoverTaxonomy(t *testing.T) {
	glyphs := make(map[string]tile.Type)
	for _, ty := range tile.All() {
		h, ok := renderHints[ty]
		if !ok {
			t.Errorf("no render hint for %s", ty)
			continue
		}
		if len(h.Glyph) != 1 {
			t.Errorf("%s glyph %q is not one character", ty, h.Glyph)
		}
		if prev, dup := glyphs[h.Glyph]; dup {
			t.Errorf("%s and %s share glyph %q", prev, ty, h.Glyph)
		}
		glyphs[h.Glyph] = ty
	}
	if HintFor(tile.Type(200)) != renderHints[tile.Empty] {
		t.Error("unknown type should render as empty")
	}
}

func waterGrid(t *testing.T, res int) *grid.TileGrid {
	t.Helper()
	cfg := config.Config{Region: config.BBoxRegion(0, 0, 1, 1), GridResolution: res, Features: config.Urban()}
	lake := element.NewArea(1, []orb.Point{{0, 0}, {0.5, 0}, {0.5, 1}, {0, 1}}, map[string]string{"natural": "water"})
	g, err := grid.Generate([]grid.Classified{{Element: lake, Type: tile.Water, Priority: tile.Water.Priority()}}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestPreview(t *testing.T) {
	g := waterGrid(t, 8)
	rows := preview(g, PreviewColumns)
	if len(rows) != 8 {
		t.Fatalf("got %d rows", len(rows))
	}
	for i, row := range rows {
		if row != "~~~~...." {
			t.Errorf("row %d = %q", i, row)
		}
	}
}

func TestPreviewDownsamples(t *testing.T) {
	g := waterGrid(t, 200)
	rows := preview(g, PreviewColumns)
	if len(rows) > PreviewColumns {
		t.Fatalf("got %d rows", len(rows))
	}
	for _, row := range rows {
		if len(row) > PreviewColumns {
			t.Fatalf("row of %d columns", len(row))
		}
		if !strings.HasPrefix(row, "~") || !strings.HasSuffix(row, ".") {
			t.Errorf("row %q lost the lake outline", row)
		}
	}
}

func TestLegend(t *testing.T) {
	g := waterGrid(t, 8)
	entries := legend(g)
	if len(entries) != 2 {
		t.Fatalf("legend = %+v", entries)
	}
	if entries[0].Type != tile.Empty || entries[0].Cells != 32 {
		t.Errorf("empty entry = %+v", entries[0])
	}
	if entries[1].Type != tile.Water || entries[1].Cells != 32 || entries[1].Glyph != "~" {
		t.Errorf("water entry = %+v", entries[1])
	}
}

func TestDominant(t *testing.T) {
	if got := dominant(map[tile.Type]int{}); got != tile.Empty {
		t.Errorf("empty block = %s", got)
	}
	if got := dominant(map[tile.Type]int{tile.Road: 3, tile.Building: 1}); got != tile.Road {
		t.Errorf("majority = %s", got)
	}
	if got := dominant(map[tile.Type]int{tile.Road: 2, tile.Building: 2}); got != tile.Building {
		t.Errorf("tie = %s, want higher priority building", got)
	}
}
