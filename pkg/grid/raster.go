package grid

import (
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/NERVsystems/osmgrid/pkg/element"
	"github.com/NERVsystems/osmgrid/pkg/geo"
)

// transform maps geographic coordinates to continuous cell space where
// cell (c, r) covers [c, c+1) x [r, r+1). Row 0 is the northern edge.
// Spans and scale are derived once per run.
type transform struct {
	west, north      float64
	spanLon, spanLat float64
	width, height    int
	fw, fh           float64
}

func newTransform(b geo.BoundingBox, width, height int) transform {
	return transform{
		west:    b.West(),
		north:   b.North(),
		spanLon: b.East() - b.West(),
		spanLat: b.North() - b.South(),
		width:   width,
		height:  height,
		fw:      float64(width),
		fh:      float64(height),
	}
}

// toCell returns the continuous cell-space position of a point.
func (t transform) toCell(p orb.Point) (x, y float64) {
	x = (p[0] - t.west) / t.spanLon * t.fw
	y = (t.north - p[1]) / t.spanLat * t.fh
	return x, y
}

// inside reports whether a cell-space position lies within the region,
// boundary included.
func (t transform) inside(x, y float64) bool {
	return x >= 0 && x <= t.fw && y >= 0 && y <= t.fh
}

func (t transform) col(x float64) int {
	return clampIndex(math.Floor(x), t.width)
}

func (t transform) row(y float64) int {
	return clampIndex(math.Floor(y), t.height)
}

func clampIndex(v float64, n int) int {
	if v < 0 {
		return 0
	}
	if v >= float64(n) {
		return n - 1
	}
	return int(v)
}

// span is a run of cells [x0, x1] on one row.
type span struct {
	row, x0, x1 int32
}

// footprint accumulates the spans covered by one element.
type footprint struct {
	spans []span
}

func (f *footprint) reset() {
	f.spans = f.spans[:0]
}

// addCell appends a single cell, merging with the previous span when the
// cell extends it on the same row.
func (f *footprint) addCell(col, row int) {
	if n := len(f.spans); n > 0 {
		last := &f.spans[n-1]
		if int(last.row) == row && int(last.x1)+1 == col {
			last.x1 = int32(col)
			return
		}
		if int(last.row) == row && int(last.x1) == col {
			return
		}
	}
	f.spans = append(f.spans, span{row: int32(row), x0: int32(col), x1: int32(col)})
}

func (f *footprint) addSpan(row, x0, x1 int) {
	f.spans = append(f.spans, span{row: int32(row), x0: int32(x0), x1: int32(x1)})
}

// rasterize computes the footprint of el into fp. It returns false when no
// part of the element lies inside the region.
func (t transform) rasterize(el element.Element, fp *footprint) bool {
	fp.reset()
	switch el.Kind {
	case element.Point:
		x, y := t.toCell(el.Coordinates[0])
		if !t.inside(x, y) {
			return false
		}
		fp.addCell(t.col(x), t.row(y))
	case element.Line:
		for i := 0; i+1 < len(el.Coordinates); i++ {
			x0, y0 := t.toCell(el.Coordinates[i])
			x1, y1 := t.toCell(el.Coordinates[i+1])
			t.walkSegment(x0, y0, x1, y1, fp)
		}
	case element.Area:
		t.fillPolygon(el.Rings(), fp)
	}
	return len(fp.spans) > 0
}

// clipSegment clips a cell-space segment to [0,w]x[0,h] (Liang-Barsky).
func (t transform) clipSegment(x0, y0, x1, y1 float64) (ax, ay, bx, by float64, ok bool) {
	dx, dy := x1-x0, y1-y0
	t0, t1 := 0.0, 1.0
	p := [4]float64{-dx, dx, -dy, dy}
	q := [4]float64{x0, t.fw - x0, y0, t.fh - y0}
	for i := range p {
		if p[i] == 0 {
			if q[i] < 0 {
				return 0, 0, 0, 0, false
			}
			continue
		}
		r := q[i] / p[i]
		if p[i] < 0 {
			if r > t1 {
				return 0, 0, 0, 0, false
			}
			if r > t0 {
				t0 = r
			}
		} else {
			if r < t0 {
				return 0, 0, 0, 0, false
			}
			if r < t1 {
				t1 = r
			}
		}
	}
	return x0 + t0*dx, y0 + t0*dy, x0 + t1*dx, y0 + t1*dy, true
}

// walkSegment adds every cell the segment passes through, walking cell by
// cell (Amanatides-Woo). Diagonal corner crossings step along x first, so
// consecutive cells always share an edge.
func (t transform) walkSegment(x0, y0, x1, y1 float64, fp *footprint) {
	x0, y0, x1, y1, ok := t.clipSegment(x0, y0, x1, y1)
	if !ok {
		return
	}

	cx, cy := t.col(x0), t.row(y0)
	ex, ey := t.col(x1), t.row(y1)
	dx, dy := x1-x0, y1-y0

	stepX, tMaxX, tDeltaX := axisStep(x0, dx, cx)
	stepY, tMaxY, tDeltaY := axisStep(y0, dy, cy)

	fp.addCell(cx, cy)
	n := abs(ex-cx) + abs(ey-cy)
	for i := 0; i < n; i++ {
		switch {
		case cx == ex:
			cy += stepY
			tMaxY += tDeltaY
		case cy == ey:
			cx += stepX
			tMaxX += tDeltaX
		case tMaxX <= tMaxY:
			cx += stepX
			tMaxX += tDeltaX
		default:
			cy += stepY
			tMaxY += tDeltaY
		}
		fp.addCell(cx, cy)
	}
}

// axisStep returns the step direction, the parameter at which the first
// cell boundary is crossed and the parameter distance between boundaries.
func axisStep(origin, delta float64, cell int) (step int, tMax, tDelta float64) {
	switch {
	case delta > 0:
		return 1, (float64(cell+1) - origin) / delta, 1 / delta
	case delta < 0:
		return -1, (origin - float64(cell)) / -delta, 1 / -delta
	default:
		return 0, math.Inf(1), math.Inf(1)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// fillPolygon adds every cell whose centre lies inside the rings under the
// even-odd rule. The first ring is the outer boundary, the rest are holes.
// Candidates are limited to the rows and columns of the rings' bounds.
func (t transform) fillPolygon(rings []orb.Ring, fp *footprint) {
	type edge struct{ ax, ay, bx, by float64 }

	var (
		edges                  []edge
		minX, minY, maxX, maxY = math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)
	)
	for _, ring := range rings {
		for i := 0; i+1 < len(ring); i++ {
			ax, ay := t.toCell(ring[i])
			bx, by := t.toCell(ring[i+1])
			edges = append(edges, edge{ax, ay, bx, by})
			minX, maxX = math.Min(minX, math.Min(ax, bx)), math.Max(maxX, math.Max(ax, bx))
			minY, maxY = math.Min(minY, math.Min(ay, by)), math.Max(maxY, math.Max(ay, by))
		}
	}
	if len(edges) == 0 || maxX < 0 || maxY < 0 || minX > t.fw || minY > t.fh {
		return
	}

	rowStart := clampIndex(math.Floor(minY), t.height)
	rowEnd := clampIndex(math.Floor(maxY), t.height)
	colMin := clampIndex(math.Floor(minX), t.width)
	colMax := clampIndex(math.Floor(maxX), t.width)

	xs := make([]float64, 0, 8)
	for r := rowStart; r <= rowEnd; r++ {
		yc := float64(r) + 0.5
		xs = xs[:0]
		for _, e := range edges {
			if (e.ay > yc) != (e.by > yc) {
				xs = append(xs, e.ax+(yc-e.ay)*(e.bx-e.ax)/(e.by-e.ay))
			}
		}
		if len(xs) < 2 {
			continue
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			// Cells whose centre c+0.5 lies in [xa, xb).
			c0 := int(math.Ceil(xs[i] - 0.5))
			c1 := int(math.Ceil(xs[i+1]-0.5)) - 1
			c0 = max(c0, colMin)
			c1 = min(c1, colMax)
			if c0 <= c1 {
				fp.addSpan(r, c0, c1)
			}
		}
	}
}
