package grid

import (
	"time"

	"github.com/NERVsystems/osmgrid/pkg/geo"
	"github.com/NERVsystems/osmgrid/pkg/tile"
)

// Metadata describes how a grid was produced.
type Metadata struct {
	GeneratedAt       time.Time     `json:"generatedAt"`
	Duration          time.Duration `json:"duration"`
	ElementsProcessed int           `json:"elementsProcessed"`
	CellsClassified   int           `json:"cellsClassified"`
	Algorithm         string        `json:"algorithm"`
	TieBreak          TieBreak      `json:"tieBreak"`
	Workers           int           `json:"workers"`
}

// Diagnostics counts the elements that contributed no cells.
type Diagnostics struct {
	// SkippedElements were malformed or carried an invalid tile type.
	SkippedElements int `json:"skippedElements"`
	// OutsideElements lay entirely outside the region.
	OutsideElements int            `json:"outsideElements"`
	SkipReasons     map[string]int `json:"skipReasons,omitempty"`
}

func (d *Diagnostics) skip(reason string) {
	d.SkippedElements++
	if d.SkipReasons == nil {
		d.SkipReasons = make(map[string]int)
	}
	d.SkipReasons[reason]++
}

// Cell addresses one grid cell. Row 0 is the northern edge of the region.
type Cell struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// Statistics summarises a grid's contents.
type Statistics struct {
	TotalCells    int               `json:"totalCells"`
	NonEmptyCells int               `json:"nonEmptyCells"`
	Coverage      float64           `json:"coverage"`
	Counts        map[tile.Type]int `json:"counts"`
}

// TileGrid is a dense row-major grid of tile types covering a region.
// It is immutable; every accessor returns copies.
type TileGrid struct {
	width, height int
	region        geo.BoundingBox
	cellLat       float64
	cellLon       float64
	cells         []tile.Type
	meta          Metadata
	diag          Diagnostics
}

func newTileGrid(region geo.BoundingBox, width, height int, cells []tile.Type) *TileGrid {
	return &TileGrid{
		width:   width,
		height:  height,
		region:  region,
		cellLat: region.Height() / float64(height),
		cellLon: region.Width() / float64(width),
		cells:   cells,
	}
}

// Width returns the number of columns.
func (g *TileGrid) Width() int { return g.width }

// Height returns the number of rows.
func (g *TileGrid) Height() int { return g.height }

// Region returns the bounding box the grid covers.
func (g *TileGrid) Region() geo.BoundingBox { return g.region }

// CellSize returns the cell size in degrees of latitude and longitude.
func (g *TileGrid) CellSize() (lat, lon float64) { return g.cellLat, g.cellLon }

// Metadata returns the generation metadata.
func (g *TileGrid) Metadata() Metadata { return g.meta }

// Diagnostics returns the skipped element counters.
func (g *TileGrid) Diagnostics() Diagnostics {
	d := g.diag
	if g.diag.SkipReasons != nil {
		d.SkipReasons = make(map[string]int, len(g.diag.SkipReasons))
		for k, v := range g.diag.SkipReasons {
			d.SkipReasons[k] = v
		}
	}
	return d
}

// InBounds reports whether (col, row) addresses a cell.
func (g *TileGrid) InBounds(col, row int) bool {
	return col >= 0 && col < g.width && row >= 0 && row < g.height
}

// At returns the tile at (col, row), or Empty outside the grid.
func (g *TileGrid) At(col, row int) tile.Type {
	if !g.InBounds(col, row) {
		return tile.Empty
	}
	return g.cells[row*g.width+col]
}

// Row returns a copy of one row.
func (g *TileGrid) Row(row int) []tile.Type {
	if row < 0 || row >= g.height {
		return nil
	}
	return append([]tile.Type(nil), g.cells[row*g.width:(row+1)*g.width]...)
}

// Area returns a copy of the width x height block whose top-left cell is
// (col, row), indexed [row][col]. ok is false when the block does not lie
// entirely inside the grid.
func (g *TileGrid) Area(col, row, width, height int) (area [][]tile.Type, ok bool) {
	if width < 0 || height < 0 || col < 0 || row < 0 || col+width > g.width || row+height > g.height {
		return nil, false
	}
	area = make([][]tile.Type, height)
	for y := range height {
		start := (row+y)*g.width + col
		area[y] = append([]tile.Type(nil), g.cells[start:start+width]...)
	}
	return area, true
}

// Cells returns a copy of all cells in row-major order.
func (g *TileGrid) Cells() []tile.Type {
	return append([]tile.Type(nil), g.cells...)
}

// Equal reports whether two grids have the same region, dimensions and
// cell contents. Metadata is ignored.
func (g *TileGrid) Equal(o *TileGrid) bool {
	if g == nil || o == nil {
		return g == o
	}
	if g.width != o.width || g.height != o.height || g.region != o.region {
		return false
	}
	for i := range g.cells {
		if g.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}

// GeoToCell returns the cell containing a coordinate, with the same
// transform used during generation.
func (g *TileGrid) GeoToCell(lat, lon float64) (Cell, bool) {
	if !g.region.Contains(lat, lon) {
		return Cell{}, false
	}
	tr := newTransform(g.region, g.width, g.height)
	x, y := tr.toCell(geo.Location{Latitude: lat, Longitude: lon}.Point())
	return Cell{Col: tr.col(x), Row: tr.row(y)}, true
}

// CellCenter returns the coordinate of a cell's centre.
func (g *TileGrid) CellCenter(c Cell) (lat, lon float64, ok bool) {
	if !g.InBounds(c.Col, c.Row) {
		return 0, 0, false
	}
	lat = g.region.North() - (float64(c.Row)+0.5)*g.cellLat
	lon = g.region.West() + (float64(c.Col)+0.5)*g.cellLon
	return lat, lon, true
}

// Counts returns the number of cells of each non-empty type.
func (g *TileGrid) Counts() map[tile.Type]int {
	counts := make(map[tile.Type]int)
	for _, t := range g.cells {
		if t != tile.Empty {
			counts[t]++
		}
	}
	return counts
}

// Statistics summarises the grid.
func (g *TileGrid) Statistics() Statistics {
	counts := g.Counts()
	nonEmpty := 0
	for _, n := range counts {
		nonEmpty += n
	}
	total := len(g.cells)
	s := Statistics{TotalCells: total, NonEmptyCells: nonEmpty, Counts: counts}
	if total > 0 {
		s.Coverage = float64(nonEmpty) / float64(total)
	}
	return s
}

// TilesOfType returns the cells holding t in row-major order.
func (g *TileGrid) TilesOfType(t tile.Type) []Cell {
	var out []Cell
	for i, c := range g.cells {
		if c == t {
			out = append(out, Cell{Col: i % g.width, Row: i / g.width})
		}
	}
	return out
}

func (g *TileGrid) countNonEmpty() int {
	n := 0
	for _, t := range g.cells {
		if t != tile.Empty {
			n++
		}
	}
	return n
}
