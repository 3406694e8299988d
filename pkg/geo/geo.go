// Package geo provides geographic primitives shared by the grid engine:
// locations, bounding boxes and distance helpers on WGS84 coordinates.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// EarthRadius is the mean Earth radius in meters.
const EarthRadius = orb.EarthRadius

// Location is a latitude/longitude pair in decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Point returns the location as an orb point (lon, lat).
func (l Location) Point() orb.Point {
	return orb.Point{l.Longitude, l.Latitude}
}

// BoundingBox is an axis-aligned box in degrees. South/west are the Min
// fields, north/east the Max fields.
type BoundingBox struct {
	MinLat float64 `json:"minLat"`
	MinLon float64 `json:"minLon"`
	MaxLat float64 `json:"maxLat"`
	MaxLon float64 `json:"maxLon"`
}

// NewBoundingBox creates an empty bounding box ready to be extended.
func NewBoundingBox() *BoundingBox {
	return &BoundingBox{
		MinLat: math.Inf(1),
		MinLon: math.Inf(1),
		MaxLat: math.Inf(-1),
		MaxLon: math.Inf(-1),
	}
}

// BBox builds a bounding box from south, west, north, east.
func BBox(south, west, north, east float64) BoundingBox {
	return BoundingBox{MinLat: south, MinLon: west, MaxLat: north, MaxLon: east}
}

// ExtendWithPoint grows the box to include the given coordinate.
func (b *BoundingBox) ExtendWithPoint(lat, lon float64) {
	b.MinLat = math.Min(b.MinLat, lat)
	b.MinLon = math.Min(b.MinLon, lon)
	b.MaxLat = math.Max(b.MaxLat, lat)
	b.MaxLon = math.Max(b.MaxLon, lon)
}

// IsEmpty reports whether nothing has been added to the box.
func (b BoundingBox) IsEmpty() bool {
	return b.MinLat > b.MaxLat || b.MinLon > b.MaxLon
}

// South returns the southern edge.
func (b BoundingBox) South() float64 { return b.MinLat }

// West returns the western edge.
func (b BoundingBox) West() float64 { return b.MinLon }

// North returns the northern edge.
func (b BoundingBox) North() float64 { return b.MaxLat }

// East returns the eastern edge.
func (b BoundingBox) East() float64 { return b.MaxLon }

// Width returns the longitudinal span in degrees.
func (b BoundingBox) Width() float64 { return b.MaxLon - b.MinLon }

// Height returns the latitudinal span in degrees.
func (b BoundingBox) Height() float64 { return b.MaxLat - b.MinLat }

// Center returns the midpoint of the box.
func (b BoundingBox) Center() Location {
	return Location{
		Latitude:  (b.MinLat + b.MaxLat) / 2,
		Longitude: (b.MinLon + b.MaxLon) / 2,
	}
}

// Contains reports whether the coordinate lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Intersects reports whether two boxes overlap, touching edges included.
func (b BoundingBox) Intersects(o BoundingBox) bool {
	return b.MinLat <= o.MaxLat && o.MinLat <= b.MaxLat &&
		b.MinLon <= o.MaxLon && o.MinLon <= b.MaxLon
}

// Bound converts the box to an orb.Bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// FromBound converts an orb.Bound to a BoundingBox.
func FromBound(bound orb.Bound) BoundingBox {
	return BoundingBox{
		MinLat: bound.Min.Lat(),
		MinLon: bound.Min.Lon(),
		MaxLat: bound.Max.Lat(),
		MaxLon: bound.Max.Lon(),
	}
}

// AreaKm2 approximates the surface covered by the box in square kilometers,
// measuring both spans through the box center.
func (b BoundingBox) AreaKm2() float64 {
	c := b.Center()
	widthM := orbgeo.Distance(orb.Point{b.MinLon, c.Latitude}, orb.Point{b.MaxLon, c.Latitude})
	heightM := orbgeo.Distance(orb.Point{c.Longitude, b.MinLat}, orb.Point{c.Longitude, b.MaxLat})
	return (widthM / 1000) * (heightM / 1000)
}

// String formats the box in Overpass order: south,west,north,east.
func (b BoundingBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}

// Key formats the box losslessly in Overpass order, so two boxes share a
// key only when every coordinate is equal.
func (b BoundingBox) Key() string {
	return JoinFloats(b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}

// JoinFloats formats values with the shortest representation that parses
// back to the same float64, separated by commas.
func JoinFloats(vs ...float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// AroundPoint returns the box enclosing a circle of radiusKm around the center.
func AroundPoint(lat, lon, radiusKm float64) BoundingBox {
	return FromBound(orbgeo.NewBoundAroundPoint(orb.Point{lon, lat}, radiusKm*1000))
}

// HaversineDistance calculates the great-circle distance in meters between two points.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	return orbgeo.DistanceHaversine(orb.Point{lon1, lat1}, orb.Point{lon2, lat2})
}

// ValidateCoords validates latitude and longitude values.
func ValidateCoords(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("invalid latitude: %f (must be between -90 and 90)", lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return fmt.Errorf("invalid longitude: %f (must be between -180 and 180)", lon)
	}
	return nil
}
