package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/NERVsystems/osmgrid/pkg/tile"
)

// DefaultCustomPriority is the priority of a custom query built without an
// explicit one. It is below every built-in category, so built-in
// classification wins unless the caller raises it.
const DefaultCustomPriority = 0

// CustomQuery is a caller-supplied tag match with its own classification.
type CustomQuery struct {
	Query    TagQuery  `json:"query"`
	TileType tile.Type `json:"tileType"`
	Priority int       `json:"priority"`
}

// InferTileType guesses the tile type of a custom query from its key.
func InferTileType(q TagQuery) tile.Type {
	switch q.Key {
	case "amenity":
		if q.HasValue && q.Value == "parking" {
			return tile.Parking
		}
		return tile.Amenity
	case "building":
		return tile.Building
	case "highway":
		return tile.Road
	case "railway":
		return tile.Railway
	case "waterway", "water":
		return tile.Water
	case "natural":
		switch q.Value {
		case "water":
			return tile.Water
		case "wood", "grassland", "scrub", "heath":
			return tile.GreenSpace
		}
		return tile.Landuse
	case "leisure":
		return tile.GreenSpace
	case "tourism":
		return tile.Tourism
	case "power":
		return tile.PowerLine
	case "boundary":
		return tile.Boundary
	case "landuse":
		return tile.Landuse
	default:
		return tile.Custom
	}
}

// FeatureSet selects the categories and custom queries used for fetching
// and classification. The zero value selects nothing. A FeatureSet is
// immutable; build one with NewFeatureSetBuilder or a preset.
type FeatureSet struct {
	enabled uint32
	custom  []CustomQuery
}

// Contains reports whether category f is enabled.
func (fs FeatureSet) Contains(f Feature) bool {
	return f.Valid() && fs.enabled&(1<<f) != 0
}

// Features returns the enabled categories in evaluation order.
func (fs FeatureSet) Features() []Feature {
	var out []Feature
	for f := Feature(0); f < numFeatures; f++ {
		if fs.Contains(f) {
			out = append(out, f)
		}
	}
	return out
}

// CustomQueries returns a copy of the custom queries in insertion order.
func (fs FeatureSet) CustomQueries() []CustomQuery {
	return append([]CustomQuery(nil), fs.custom...)
}

// IsEmpty reports whether nothing is selected.
func (fs FeatureSet) IsEmpty() bool {
	return fs.enabled == 0 && len(fs.custom) == 0
}

// Len returns the number of categories plus custom queries.
func (fs FeatureSet) Len() int {
	return len(fs.Features()) + len(fs.custom)
}

// TagQueries returns every tag query of the set, deduplicated and sorted by
// key then value.
func (fs FeatureSet) TagQueries() []TagQuery {
	seen := make(map[TagQuery]struct{})
	var out []TagQuery
	add := func(q TagQuery) {
		if _, ok := seen[q]; ok {
			return
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	for _, f := range fs.Features() {
		for _, q := range features[f].rules {
			add(q)
		}
	}
	for _, c := range fs.custom {
		add(c.Query)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		if out[i].HasValue != out[j].HasValue {
			return !out[i].HasValue
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// Key returns a canonical string identifying the set. Two sets with the
// same key classify every element identically.
func (fs FeatureSet) Key() string {
	names := make([]string, 0, numFeatures)
	for _, f := range fs.Features() {
		names = append(names, f.String())
	}
	key := "features=" + strings.Join(names, ",")
	if len(fs.custom) > 0 {
		parts := make([]string, len(fs.custom))
		for i, c := range fs.custom {
			parts[i] = fmt.Sprintf("%s:%s:%d", c.Query, c.TileType, c.Priority)
		}
		key += ";custom=" + strings.Join(parts, ",")
	}
	return key
}

// String implements fmt.Stringer.
func (fs FeatureSet) String() string {
	return fs.Key()
}

// FeatureSetBuilder assembles a FeatureSet.
type FeatureSetBuilder struct {
	enabled uint32
	custom  []CustomQuery
}

// NewFeatureSetBuilder returns an empty builder.
func NewFeatureSetBuilder() *FeatureSetBuilder {
	return &FeatureSetBuilder{}
}

// From starts from the contents of an existing set.
func (b *FeatureSetBuilder) From(fs FeatureSet) *FeatureSetBuilder {
	b.enabled |= fs.enabled
	b.custom = append(b.custom, fs.custom...)
	return b
}

// With enables categories. Unknown values are ignored.
func (b *FeatureSetBuilder) With(fs ...Feature) *FeatureSetBuilder {
	for _, f := range fs {
		if f.Valid() {
			b.enabled |= 1 << f
		}
	}
	return b
}

// Without disables categories.
func (b *FeatureSetBuilder) Without(fs ...Feature) *FeatureSetBuilder {
	for _, f := range fs {
		if f.Valid() {
			b.enabled &^= 1 << f
		}
	}
	return b
}

// WithCustomQuery adds a custom query with an inferred tile type and the
// default priority.
func (b *FeatureSetBuilder) WithCustomQuery(q TagQuery) *FeatureSetBuilder {
	return b.WithCustomQueryAs(q, InferTileType(q), DefaultCustomPriority)
}

// WithCustomQueryAs adds a custom query with an explicit tile type and
// priority.
func (b *FeatureSetBuilder) WithCustomQueryAs(q TagQuery, t tile.Type, priority int) *FeatureSetBuilder {
	b.custom = append(b.custom, CustomQuery{Query: q, TileType: t, Priority: priority})
	return b
}

// Build returns the immutable set.
func (b *FeatureSetBuilder) Build() FeatureSet {
	return FeatureSet{
		enabled: b.enabled,
		custom:  append([]CustomQuery(nil), b.custom...),
	}
}

// Preset names
const (
	PresetUrban          = "urban"
	PresetTransportation = "transportation"
	PresetNatural        = "natural"
	PresetComprehensive  = "comprehensive"
)

var presets = map[string][]Feature{
	PresetUrban:          {Roads, Buildings, Parks, Water},
	PresetTransportation: {Roads, Highways, Railways, Parking},
	PresetNatural:        {Water, Forests, Parks, Grassland},
	PresetComprehensive:  AllFeatures(),
}

// PresetNames returns the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns the named feature set.
func Preset(name string) (FeatureSet, error) {
	fs, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return FeatureSet{}, &Error{Code: ErrUnknownPreset, Field: "preset", Value: name, Message: "unknown feature preset"}
	}
	return NewFeatureSetBuilder().With(fs...).Build(), nil
}

// Urban selects roads, buildings, parks and water.
func Urban() FeatureSet { return mustPreset(PresetUrban) }

// Transportation selects roads, highways, railways and parking.
func Transportation() FeatureSet { return mustPreset(PresetTransportation) }

// Natural selects water, forests, parks and grassland.
func Natural() FeatureSet { return mustPreset(PresetNatural) }

// Comprehensive selects every known category.
func Comprehensive() FeatureSet { return mustPreset(PresetComprehensive) }

func mustPreset(name string) FeatureSet {
	fs, err := Preset(name)
	if err != nil {
		panic(err)
	}
	return fs
}
