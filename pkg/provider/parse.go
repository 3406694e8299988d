package provider

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	posm "github.com/paulmach/osm"

	"github.com/NERVsystems/osmgrid/pkg/element"
	"github.com/NERVsystems/osmgrid/pkg/osm"
)

// linearKeys mark closed ways that are still lines, such as a roundabout
// or a ring railway, unless area=yes says otherwise.
var linearKeys = []string{"highway", "railway", "barrier", "waterway", "power", "boundary"}

type elementKey struct {
	typ posm.Type
	id  int64
}

// convertElements turns "out geom" Overpass elements into elements. Ways
// and relations without geometry and untagged nodes are dropped. Relation
// members are not emitted separately.
func convertElements(in []osm.OverpassElement) []element.Element {
	out := make([]element.Element, 0, len(in))
	for _, oe := range in {
		switch oe.Type {
		case "node":
			if len(oe.Tags) == 0 {
				continue
			}
			el := element.NewPoint(oe.ID, oe.Lat, oe.Lon, oe.Tags)
			out = append(out, el)
		case "way":
			if el, ok := convertWay(oe.ID, oe.Geometry, oe.Tags); ok {
				out = append(out, el)
			}
		case "relation":
			out = append(out, convertRelation(oe)...)
		}
	}
	return out
}

func convertWay(id int64, geom []osm.LatLon, tags map[string]string) (element.Element, bool) {
	pts := toPoints(geom)
	if len(pts) < 2 {
		return element.Element{}, false
	}
	if isClosed(pts) && len(pts) >= 4 && !isLinear(tags) {
		return element.NewArea(id, pts[:len(pts)-1], tags), true
	}
	return element.NewLine(id, pts, tags), true
}

func isLinear(tags map[string]string) bool {
	if tags["area"] == "yes" {
		return false
	}
	if tags["area"] == "no" {
		return true
	}
	for _, k := range linearKeys {
		if _, ok := tags[k]; ok {
			return true
		}
	}
	return false
}

// convertRelation emits one area per outer ring of a multipolygon, with
// the inner rings it contains as holes. Other relations contribute their
// way members as lines carrying the relation's tags.
func convertRelation(oe osm.OverpassElement) []element.Element {
	if oe.Tags["type"] != "multipolygon" {
		var out []element.Element
		for _, m := range oe.Members {
			if m.Type != "way" {
				continue
			}
			if el, ok := convertWay(oe.ID, m.Geometry, oe.Tags); ok {
				el.Origin = posm.TypeRelation
				out = append(out, el)
			}
		}
		return out
	}

	var outerSegs, innerSegs [][]orb.Point
	for _, m := range oe.Members {
		if m.Type != "way" {
			continue
		}
		pts := toPoints(m.Geometry)
		if len(pts) < 2 {
			continue
		}
		if m.Role == "inner" {
			innerSegs = append(innerSegs, pts)
		} else {
			outerSegs = append(outerSegs, pts)
		}
	}

	outers := assembleRings(outerSegs)
	inners := assembleRings(innerSegs)
	holes := make([][]orb.Ring, len(outers))
	for _, in := range inners {
		for i, o := range outers {
			if planar.RingContains(o, in[0]) {
				holes[i] = append(holes[i], in[:len(in)-1])
				break
			}
		}
	}

	out := make([]element.Element, 0, len(outers))
	for i, o := range outers {
		el := element.NewArea(oe.ID, o[:len(o)-1], oe.Tags, holes[i]...)
		el.Origin = posm.TypeRelation
		out = append(out, el)
	}
	return out
}

// assembleRings joins way segments end to end into closed rings. Segments
// that never close are discarded.
func assembleRings(segs [][]orb.Point) []orb.Ring {
	used := make([]bool, len(segs))
	var rings []orb.Ring
	for i := range segs {
		if used[i] {
			continue
		}
		used[i] = true
		ring := append(orb.Ring(nil), segs[i]...)
		for !isClosed(ring) {
			extended := false
			tail := ring[len(ring)-1]
			for j := range segs {
				if used[j] {
					continue
				}
				s := segs[j]
				switch {
				case s[0] == tail:
					ring = append(ring, s[1:]...)
				case s[len(s)-1] == tail:
					for k := len(s) - 2; k >= 0; k-- {
						ring = append(ring, s[k])
					}
				default:
					continue
				}
				used[j] = true
				extended = true
				break
			}
			if !extended {
				break
			}
		}
		if isClosed(ring) && len(ring) >= 4 {
			rings = append(rings, ring)
		}
	}
	return rings
}

func toPoints(geom []osm.LatLon) []orb.Point {
	pts := make([]orb.Point, 0, len(geom))
	for _, g := range geom {
		pts = append(pts, element.LatLon(g.Lat, g.Lon))
	}
	return pts
}

func isClosed(pts []orb.Point) bool {
	return len(pts) > 1 && pts[0] == pts[len(pts)-1]
}

// dedupe drops repeated (origin, id) pairs keeping the first occurrence.
// Multipolygon relations may legitimately produce several areas with the
// same id; they arrive together and are all kept.
func dedupe(els []element.Element, seen map[elementKey]int, batch int) []element.Element {
	out := els[:0]
	for _, el := range els {
		k := elementKey{typ: el.Origin, id: el.ID}
		if first, ok := seen[k]; ok && first != batch {
			continue
		}
		seen[k] = batch
		out = append(out, el)
	}
	return out
}
