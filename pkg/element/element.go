// Package element models a parsed geographic feature: its geometry kind,
// its coordinates and its OSM tags.
package element

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// Kind is the geometric kind of an element.
type Kind uint8

const (
	Point Kind = iota + 1
	Line
	Area
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Point:
		return "point"
	case Line:
		return "line"
	case Area:
		return "area"
	default:
		return "unknown"
	}
}

// MinCoordinates returns the smallest coordinate count valid for the kind.
func (k Kind) MinCoordinates() int {
	switch k {
	case Point:
		return 1
	case Line:
		return 2
	case Area:
		return 3
	default:
		return math.MaxInt
	}
}

// Element is one geographic feature. Coordinates are orb points, that is
// (lon, lat) pairs. Areas are implicitly closed; Holes only apply to areas.
//
// Elements are values handed between pipeline stages and must not be
// mutated once built. The constructors copy their inputs.
type Element struct {
	ID          int64
	Origin      osm.Type
	Kind        Kind
	Coordinates []orb.Point
	Holes       []orb.Ring
	Tags        osm.Tags
}

// LatLon builds an orb point from a latitude/longitude pair.
func LatLon(lat, lon float64) orb.Point {
	return orb.Point{lon, lat}
}

// NewPoint creates a point element.
func NewPoint(id int64, lat, lon float64, tags map[string]string) Element {
	return Element{
		ID:          id,
		Origin:      osm.TypeNode,
		Kind:        Point,
		Coordinates: []orb.Point{LatLon(lat, lon)},
		Tags:        TagsFromMap(tags),
	}
}

// NewLine creates a polyline element.
func NewLine(id int64, coords []orb.Point, tags map[string]string) Element {
	return Element{
		ID:          id,
		Origin:      osm.TypeWay,
		Kind:        Line,
		Coordinates: append([]orb.Point(nil), coords...),
		Tags:        TagsFromMap(tags),
	}
}

// NewArea creates a polygon element from its outer ring and optional holes.
func NewArea(id int64, outer []orb.Point, tags map[string]string, holes ...orb.Ring) Element {
	copied := make([]orb.Ring, len(holes))
	for i, h := range holes {
		copied[i] = append(orb.Ring(nil), h...)
	}
	if len(copied) == 0 {
		copied = nil
	}
	return Element{
		ID:          id,
		Origin:      osm.TypeWay,
		Kind:        Area,
		Coordinates: append([]orb.Point(nil), outer...),
		Holes:       copied,
		Tags:        TagsFromMap(tags),
	}
}

// TagsFromMap converts a tag map into osm.Tags sorted by key, so that equal
// maps always produce identical tag slices.
func TagsFromMap(m map[string]string) osm.Tags {
	if len(m) == 0 {
		return nil
	}
	tags := make(osm.Tags, 0, len(m))
	for k, v := range m {
		tags = append(tags, osm.Tag{Key: k, Value: v})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Key < tags[j].Key })
	return tags
}

// Tag returns the value of key and whether it is present.
func (e Element) Tag(key string) (string, bool) {
	for _, t := range e.Tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// HasTag reports whether the element carries key.
func (e Element) HasTag(key string) bool {
	_, ok := e.Tag(key)
	return ok
}

// Bound returns the bounding box of the element's coordinates.
func (e Element) Bound() orb.Bound {
	return orb.MultiPoint(e.Coordinates).Bound()
}

// Ring returns the outer ring of an area, closed.
func (e Element) Ring() orb.Ring {
	return closeRing(e.Coordinates)
}

// Rings returns the outer ring followed by the holes, all closed.
func (e Element) Rings() []orb.Ring {
	rings := make([]orb.Ring, 0, 1+len(e.Holes))
	rings = append(rings, e.Ring())
	for _, h := range e.Holes {
		rings = append(rings, closeRing(h))
	}
	return rings
}

func closeRing(pts []orb.Point) orb.Ring {
	ring := append(orb.Ring(nil), pts...)
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}

// MalformedError reports an element that cannot be rasterized. It is
// recovered by skipping the element.
type MalformedError struct {
	ID     int64
	Kind   Kind
	Reason string
}

// Error implements the error interface.
func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s element %d: %s", e.Kind, e.ID, e.Reason)
}

// Skip reasons reported by Validate.
const (
	ReasonUnknownKind     = "unknown kind"
	ReasonTooFewPoints    = "too few coordinates"
	ReasonNonFinite       = "non-finite coordinate"
	ReasonOutOfRange      = "coordinate out of range"
	ReasonEmptyTagKey     = "empty tag key"
	ReasonDuplicateTagKey = "duplicate tag key"
	ReasonDegenerateHole  = "hole with fewer than 3 coordinates"
	ReasonHoleOnNonArea   = "holes on a non-area element"
)

// Validate checks the element's structural invariants.
func (e Element) Validate() error {
	if e.Kind < Point || e.Kind > Area {
		return &MalformedError{ID: e.ID, Kind: e.Kind, Reason: ReasonUnknownKind}
	}
	if len(e.Coordinates) < e.Kind.MinCoordinates() {
		return &MalformedError{ID: e.ID, Kind: e.Kind, Reason: ReasonTooFewPoints}
	}
	if reason := checkPoints(e.Coordinates); reason != "" {
		return &MalformedError{ID: e.ID, Kind: e.Kind, Reason: reason}
	}
	if len(e.Holes) > 0 && e.Kind != Area {
		return &MalformedError{ID: e.ID, Kind: e.Kind, Reason: ReasonHoleOnNonArea}
	}
	for _, h := range e.Holes {
		if len(h) < 3 {
			return &MalformedError{ID: e.ID, Kind: e.Kind, Reason: ReasonDegenerateHole}
		}
		if reason := checkPoints(h); reason != "" {
			return &MalformedError{ID: e.ID, Kind: e.Kind, Reason: reason}
		}
	}

	seen := make(map[string]struct{}, len(e.Tags))
	for _, t := range e.Tags {
		if t.Key == "" {
			return &MalformedError{ID: e.ID, Kind: e.Kind, Reason: ReasonEmptyTagKey}
		}
		if _, dup := seen[t.Key]; dup {
			return &MalformedError{ID: e.ID, Kind: e.Kind, Reason: ReasonDuplicateTagKey}
		}
		seen[t.Key] = struct{}{}
	}
	return nil
}

func checkPoints(pts []orb.Point) string {
	for _, p := range pts {
		lon, lat := p[0], p[1]
		if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
			return ReasonNonFinite
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return ReasonOutOfRange
		}
	}
	return ""
}
