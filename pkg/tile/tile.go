// Package tile defines the closed taxonomy of cell classifications produced
// by the grid engine.
//
// A Type carries only its discriminant and an overlap priority. Presentation
// data such as colors or extrusion heights belong to the consumer.
package tile

import (
	"fmt"
	"math"
)

// Type is the classification of a grid cell.
type Type uint8

const (
	Empty Type = iota
	Road
	Building
	Water
	GreenSpace
	Railway
	Parking
	Amenity
	Tourism
	Industrial
	Residential
	Commercial
	PowerLine
	Boundary
	Landuse
	Custom

	numTypes
)

// LowestPriority is the priority of an unclaimed cell. Every classified
// element can claim a cell holding it.
const LowestPriority = math.MinInt32

var names = [numTypes]string{
	Empty:       "empty",
	Road:        "road",
	Building:    "building",
	Water:       "water",
	GreenSpace:  "green_space",
	Railway:     "railway",
	Parking:     "parking",
	Amenity:     "amenity",
	Tourism:     "tourism",
	Industrial:  "industrial",
	Residential: "residential",
	Commercial:  "commercial",
	PowerLine:   "power_line",
	Boundary:    "boundary",
	Landuse:     "landuse",
	Custom:      "custom",
}

// priorities rank types for overlap resolution. Area-filling land cover sits
// at the bottom, linear infrastructure above it, point-like features on top.
var priorities = [numTypes]int{
	Empty:       LowestPriority,
	Boundary:    5,
	Landuse:     10,
	GreenSpace:  20,
	Water:       30,
	Residential: 40,
	Commercial:  50,
	Industrial:  60,
	Parking:     70,
	Road:        80,
	Railway:     90,
	PowerLine:   95,
	Building:    100,
	Amenity:     110,
	Tourism:     120,
	Custom:      1,
}

// String returns the snake_case name of the type.
func (t Type) String() string {
	if t < numTypes {
		return names[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Priority returns the overlap priority of the type.
func (t Type) Priority() int {
	if t < numTypes {
		return priorities[t]
	}
	return LowestPriority
}

// Navigable reports whether an agent can move through a cell of this type.
func (t Type) Navigable() bool {
	return t == Empty || t == Road || t == Parking
}

// Structure reports whether the type is a built structure.
func (t Type) Structure() bool {
	return t == Building || t == Amenity || t == Tourism
}

// Valid reports whether t is a member of the enumeration.
func (t Type) Valid() bool {
	return t < numTypes
}

// MarshalText encodes the type by name.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid tile type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Parse looks up a type by its name.
func Parse(name string) (Type, error) {
	for i, n := range names {
		if n == name {
			return Type(i), nil
		}
	}
	return Empty, fmt.Errorf("unknown tile type %q", name)
}

// All returns every type in enumeration order.
func All() []Type {
	all := make([]Type, numTypes)
	for i := range all {
		all[i] = Type(i)
	}
	return all
}
