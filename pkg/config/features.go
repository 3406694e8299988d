package config

import (
	"fmt"
	"strings"

	"github.com/NERVsystems/osmgrid/pkg/element"
	"github.com/NERVsystems/osmgrid/pkg/tile"
)

// Feature is a semantic feature category. The declaration order is the
// order in which the classifier evaluates enabled categories.
type Feature uint8

const (
	// Transportation
	Roads Feature = iota
	Highways
	Footpaths
	Railways

	// Buildings and structures
	Buildings
	Residential
	Commercial
	Industrial

	// Natural features
	Water
	Rivers
	Lakes
	Forests
	Parks
	Grassland

	// Urban features
	Parking
	Amenities
	Tourism

	// Infrastructure
	PowerLines
	Boundaries
	Landuse

	numFeatures
)

// TagQuery matches elements carrying Key, and Value when HasValue is set.
type TagQuery struct {
	Key      string `json:"key"`
	Value    string `json:"value,omitempty"`
	HasValue bool   `json:"hasValue"`
}

// Any returns a query matching every value of key.
func Any(key string) TagQuery {
	return TagQuery{Key: key}
}

// Eq returns a query matching key=value.
func Eq(key, value string) TagQuery {
	return TagQuery{Key: key, Value: value, HasValue: true}
}

// ParseTagQuery parses "key" or "key=value".
func ParseTagQuery(s string) (TagQuery, error) {
	key, value, hasValue := strings.Cut(strings.TrimSpace(s), "=")
	key = strings.TrimSpace(key)
	if key == "" {
		return TagQuery{}, fmt.Errorf("tag query %q has an empty key", s)
	}
	if !hasValue {
		return Any(key), nil
	}
	value = strings.TrimSpace(value)
	if value == "" || value == "*" {
		return Any(key), nil
	}
	return Eq(key, value), nil
}

// Matches reports whether at least one tag of el satisfies the query.
func (q TagQuery) Matches(el element.Element) bool {
	v, ok := el.Tag(q.Key)
	if !ok {
		return false
	}
	return !q.HasValue || v == q.Value
}

// String renders the query as key or key=value.
func (q TagQuery) String() string {
	if q.HasValue {
		return q.Key + "=" + q.Value
	}
	return q.Key
}

type featureDef struct {
	name        string
	description string
	tileType    tile.Type
	rules       []TagQuery
}

var features = [numFeatures]featureDef{
	Roads: {"roads", "Local roads and streets", tile.Road, []TagQuery{
		Eq("highway", "primary"), Eq("highway", "secondary"), Eq("highway", "tertiary"),
		Eq("highway", "residential"), Eq("highway", "unclassified"),
	}},
	Highways: {"highways", "Major highways and motorways", tile.Road, []TagQuery{
		Eq("highway", "motorway"), Eq("highway", "trunk"), Eq("highway", "primary"),
	}},
	Footpaths: {"footpaths", "Walking paths and pedestrian areas", tile.Road, []TagQuery{
		Eq("highway", "footway"), Eq("highway", "path"), Eq("highway", "pedestrian"), Eq("highway", "steps"),
	}},
	Railways: {"railways", "Railway lines and stations", tile.Railway, []TagQuery{
		Any("railway"),
	}},
	Buildings: {"buildings", "All building structures", tile.Building, []TagQuery{
		Any("building"),
	}},
	Residential: {"residential", "Residential buildings and areas", tile.Residential, []TagQuery{
		Eq("building", "residential"), Eq("landuse", "residential"),
	}},
	Commercial: {"commercial", "Commercial buildings and retail areas", tile.Commercial, []TagQuery{
		Eq("building", "commercial"), Eq("landuse", "commercial"), Eq("building", "retail"),
	}},
	Industrial: {"industrial", "Industrial buildings and zones", tile.Industrial, []TagQuery{
		Eq("building", "industrial"), Eq("landuse", "industrial"),
	}},
	Water: {"water", "All water features", tile.Water, []TagQuery{
		Eq("natural", "water"), Any("waterway"),
	}},
	Rivers: {"rivers", "Rivers and streams", tile.Water, []TagQuery{
		Eq("waterway", "river"), Eq("waterway", "stream"),
	}},
	Lakes: {"lakes", "Lakes and ponds", tile.Water, []TagQuery{
		Eq("natural", "water"), Eq("water", "lake"),
	}},
	Forests: {"forests", "Forests and wooded areas", tile.GreenSpace, []TagQuery{
		Eq("natural", "wood"), Eq("landuse", "forest"),
	}},
	Parks: {"parks", "Parks and recreational areas", tile.GreenSpace, []TagQuery{
		Eq("leisure", "park"), Eq("leisure", "garden"),
	}},
	Grassland: {"grassland", "Grass and meadow areas", tile.GreenSpace, []TagQuery{
		Eq("landuse", "grass"), Eq("natural", "grassland"),
	}},
	Parking: {"parking", "Parking areas and lots", tile.Parking, []TagQuery{
		Eq("amenity", "parking"), Eq("landuse", "parking"),
	}},
	Amenities: {"amenities", "Public amenities and services", tile.Amenity, []TagQuery{
		Any("amenity"),
	}},
	Tourism: {"tourism", "Tourist attractions and facilities", tile.Tourism, []TagQuery{
		Any("tourism"),
	}},
	PowerLines: {"power_lines", "Power lines and electrical infrastructure", tile.PowerLine, []TagQuery{
		Eq("power", "line"), Eq("power", "tower"),
	}},
	Boundaries: {"boundaries", "Administrative and other boundaries", tile.Boundary, []TagQuery{
		Any("boundary"),
	}},
	Landuse: {"landuse", "General land use classifications", tile.Landuse, []TagQuery{
		Any("landuse"),
	}},
}

// AllFeatures returns every category in evaluation order.
func AllFeatures() []Feature {
	out := make([]Feature, numFeatures)
	for i := range out {
		out[i] = Feature(i)
	}
	return out
}

// ParseFeature looks a category up by its snake_case name.
func ParseFeature(name string) (Feature, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, def := range features {
		if def.name == name {
			return Feature(i), nil
		}
	}
	return 0, &Error{Code: ErrUnknownFeature, Field: "features", Value: name, Message: "unknown feature category"}
}

// Valid reports whether f is a known category.
func (f Feature) Valid() bool {
	return f < numFeatures
}

// String returns the category name.
func (f Feature) String() string {
	if !f.Valid() {
		return fmt.Sprintf("feature(%d)", uint8(f))
	}
	return features[f].name
}

// Description returns a human readable description.
func (f Feature) Description() string {
	if !f.Valid() {
		return ""
	}
	return features[f].description
}

// TileType returns the tile type elements of this category classify to.
func (f Feature) TileType() tile.Type {
	if !f.Valid() {
		return tile.Empty
	}
	return features[f].tileType
}

// Priority returns the static overlap priority of the category.
func (f Feature) Priority() int {
	return f.TileType().Priority()
}

// Rules returns a copy of the category's tag rules, in evaluation order.
func (f Feature) Rules() []TagQuery {
	if !f.Valid() {
		return nil
	}
	return append([]TagQuery(nil), features[f].rules...)
}

// MarshalText implements encoding.TextMarshaler.
func (f Feature) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid feature %d", uint8(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Feature) UnmarshalText(b []byte) error {
	v, err := ParseFeature(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
