package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/NERVsystems/osmgrid/pkg/geo"
)

// RegionKind discriminates the ways a region can be given.
type RegionKind uint8

const (
	RegionBBox RegionKind = iota + 1
	RegionPlace
	RegionCenterRadius
)

// String returns the kind name.
func (k RegionKind) String() string {
	switch k {
	case RegionBBox:
		return "bbox"
	case RegionPlace:
		return "place"
	case RegionCenterRadius:
		return "center_radius"
	default:
		return "unknown"
	}
}

// Region is the geographic area of interest: an explicit bounding box, a
// named place resolved by a provider, or a centre point with a radius.
type Region struct {
	Kind     RegionKind      `json:"kind"`
	BBox     geo.BoundingBox `json:"bbox,omitempty"`
	Place    string          `json:"place,omitempty"`
	Center   geo.Location    `json:"center,omitempty"`
	RadiusKm float64         `json:"radiusKm,omitempty"`
}

// BBoxRegion builds a region from south, west, north and east in degrees.
func BBoxRegion(south, west, north, east float64) Region {
	return Region{Kind: RegionBBox, BBox: geo.BBox(south, west, north, east)}
}

// PlaceRegion builds a region from a place name.
func PlaceRegion(name string) Region {
	return Region{Kind: RegionPlace, Place: name}
}

// CenterRadiusRegion builds a region around a point.
func CenterRadiusRegion(lat, lon, radiusKm float64) Region {
	return Region{Kind: RegionCenterRadius, Center: geo.Location{Latitude: lat, Longitude: lon}, RadiusKm: radiusKm}
}

// Resolved returns the bounding box of the region when it can be computed
// without a provider.
func (r Region) Resolved() (geo.BoundingBox, bool) {
	switch r.Kind {
	case RegionBBox:
		return r.BBox, true
	case RegionCenterRadius:
		return geo.AroundPoint(r.Center.Latitude, r.Center.Longitude, r.RadiusKm), true
	default:
		return geo.BoundingBox{}, false
	}
}

// Validate checks the region. Place regions only need a name.
func (r Region) Validate() error {
	switch r.Kind {
	case RegionBBox:
		return validateBBox(r.BBox)
	case RegionPlace:
		if strings.TrimSpace(r.Place) == "" {
			return &Error{Code: ErrEmptyPlace, Field: "region.place", Message: "place name must not be empty"}
		}
		return nil
	case RegionCenterRadius:
		if err := validateLatLon("region.center", r.Center.Latitude, r.Center.Longitude); err != nil {
			return err
		}
		if math.IsNaN(r.RadiusKm) || math.IsInf(r.RadiusKm, 0) || r.RadiusKm <= 0 {
			return &Error{Code: ErrInvalidRadius, Field: "region.radiusKm", Value: fmt.Sprint(r.RadiusKm), Message: "radius must be positive"}
		}
		return validateBBox(geo.AroundPoint(r.Center.Latitude, r.Center.Longitude, r.RadiusKm))
	default:
		return &Error{Code: ErrUnresolvedRegion, Field: "region", Message: "no region specified"}
	}
}

func validateBBox(b geo.BoundingBox) error {
	if err := validateLatLon("region.south/west", b.South(), b.West()); err != nil {
		return err
	}
	if err := validateLatLon("region.north/east", b.North(), b.East()); err != nil {
		return err
	}
	if !(b.South() < b.North()) || !(b.West() < b.East()) {
		return &Error{
			Code:    ErrDegenerateRegion,
			Field:   "region.bbox",
			Value:   b.String(),
			Message: "bounding box must satisfy south < north and west < east",
		}
	}
	return nil
}

func validateLatLon(field string, lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return &Error{Code: ErrInvalidLatitude, Field: field, Value: fmt.Sprint(lat), Message: "latitude out of range"}
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return &Error{Code: ErrInvalidLongitude, Field: field, Value: fmt.Sprint(lon), Message: "longitude out of range"}
	}
	return nil
}

// Key returns a canonical identifier for the region.
func (r Region) Key() string {
	switch r.Kind {
	case RegionBBox:
		return "bbox:" + r.BBox.Key()
	case RegionPlace:
		return "place:" + normalizePlace(r.Place)
	case RegionCenterRadius:
		return "center:" + geo.JoinFloats(r.Center.Latitude, r.Center.Longitude, r.RadiusKm) + "km"
	default:
		return "none"
	}
}

// Equal reports whether r and o describe the same area. Place names are
// compared after normalisation, coordinates exactly.
func (r Region) Equal(o Region) bool {
	if r.Kind != o.Kind {
		return false
	}
	switch r.Kind {
	case RegionBBox:
		return r.BBox == o.BBox
	case RegionPlace:
		return normalizePlace(r.Place) == normalizePlace(o.Place)
	case RegionCenterRadius:
		return r.Center == o.Center && r.RadiusKm == o.RadiusKm
	default:
		return true
	}
}

func normalizePlace(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// String implements fmt.Stringer.
func (r Region) String() string {
	return r.Key()
}
