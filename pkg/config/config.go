// Package config holds the immutable configuration of a grid generation
// run: the region, the grid resolution and the feature set.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/NERVsystems/osmgrid/pkg/geo"
)

const (
	// DefaultGridResolution is the number of cells per side when none is set.
	DefaultGridResolution = 100

	// PerformanceSensitiveResolution is the resolution above which
	// generation is logged as expensive. Larger values are still accepted.
	PerformanceSensitiveResolution = 10000

	// DefaultPlace is the region used when none is set.
	DefaultPlace = "Berlin"
)

// Config describes one generation run.
type Config struct {
	Region         Region     `json:"region"`
	GridResolution int        `json:"gridResolution"`
	Features       FeatureSet `json:"-"`
}

// Validate checks the configuration. Every failure is a *Error.
func (c Config) Validate() error {
	if c.GridResolution < 1 {
		return (&Error{
			Code:    ErrInvalidResolution,
			Field:   "gridResolution",
			Value:   strconv.Itoa(c.GridResolution),
			Message: "grid resolution must be at least 1",
		}).withContext(c.Region, c.GridResolution)
	}
	if err := c.Region.Validate(); err != nil {
		var cerr *Error
		if errors.As(err, &cerr) {
			return cerr.withContext(c.Region, c.GridResolution)
		}
		return err
	}
	return nil
}

// PerformanceSensitive reports whether the resolution is above the
// documented safe range.
func (c Config) PerformanceSensitive() bool {
	return c.GridResolution > PerformanceSensitiveResolution
}

// Bounds returns the resolved bounding box of the region, or an
// UNRESOLVED_REGION error when the region is a place name.
func (c Config) Bounds() (geo.BoundingBox, error) {
	b, ok := c.Region.Resolved()
	if !ok {
		return geo.BoundingBox{}, (&Error{
			Code:    ErrUnresolvedRegion,
			Field:   "region",
			Value:   c.Region.Place,
			Message: "region must be resolved to a bounding box before generation",
		}).withContext(c.Region, c.GridResolution)
	}
	return b, nil
}

// WithRegion returns a copy of c using region r.
func (c Config) WithRegion(r Region) Config {
	c.Region = r
	return c
}

// Key returns the cache key of the configuration: equal keys produce
// identical grids from identical data.
func (c Config) Key() string {
	return fmt.Sprintf("%s|res=%d|%s", c.Region.Key(), c.GridResolution, c.Features.Key())
}

// Matches reports whether c and o request the same grid: equal region,
// resolution and feature set.
func (c Config) Matches(o Config) bool {
	return c.GridResolution == o.GridResolution &&
		c.Region.Equal(o.Region) &&
		c.Features.Key() == o.Features.Key()
}

// LogValue implements slog.LogValuer.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("region", c.Region.String()),
		slog.Int("resolution", c.GridResolution),
		slog.String("features", c.Features.Key()),
	)
}

// Builder assembles a Config.
type Builder struct {
	region     *Region
	resolution int
	features   *FeatureSetBuilder
	err        error
}

// NewBuilder returns a builder with no region, default resolution and no
// features selected.
func NewBuilder() *Builder {
	return &Builder{
		resolution: DefaultGridResolution,
		features:   NewFeatureSetBuilder(),
	}
}

// Region sets the region.
func (b *Builder) Region(r Region) *Builder {
	b.region = &r
	return b
}

// BBox sets an explicit bounding box.
func (b *Builder) BBox(south, west, north, east float64) *Builder {
	return b.Region(BBoxRegion(south, west, north, east))
}

// Place sets a named place.
func (b *Builder) Place(name string) *Builder {
	return b.Region(PlaceRegion(name))
}

// CenterRadius sets a centre point and radius in kilometres.
func (b *Builder) CenterRadius(lat, lon, radiusKm float64) *Builder {
	return b.Region(CenterRadiusRegion(lat, lon, radiusKm))
}

// GridResolution sets the number of cells per side.
func (b *Builder) GridResolution(n int) *Builder {
	b.resolution = n
	return b
}

// FeatureSet replaces the selected features.
func (b *Builder) FeatureSet(fs FeatureSet) *Builder {
	b.features = NewFeatureSetBuilder().From(fs)
	return b
}

// Preset replaces the selected features with a named preset.
func (b *Builder) Preset(name string) *Builder {
	fs, err := Preset(name)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return b
	}
	return b.FeatureSet(fs)
}

// With enables categories.
func (b *Builder) With(fs ...Feature) *Builder {
	b.features.With(fs...)
	return b
}

// Without disables categories.
func (b *Builder) Without(fs ...Feature) *Builder {
	b.features.Without(fs...)
	return b
}

// CustomQuery adds a custom query with the default priority.
func (b *Builder) CustomQuery(q TagQuery) *Builder {
	b.features.WithCustomQuery(q)
	return b
}

// Build validates and returns the configuration. An empty feature set
// falls back to the urban preset and a missing region to DefaultPlace.
func (b *Builder) Build() (Config, error) {
	if b.err != nil {
		return Config{}, b.err
	}
	region := PlaceRegion(DefaultPlace)
	if b.region != nil {
		region = *b.region
	}
	fs := b.features.Build()
	if fs.IsEmpty() {
		fs = Urban()
	}
	cfg := Config{Region: region, GridResolution: b.resolution, Features: fs}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if cfg.PerformanceSensitive() {
		slog.Default().Warn("grid resolution above supported range, generation may be slow",
			"resolution", cfg.GridResolution,
			"limit", PerformanceSensitiveResolution)
	}
	return cfg, nil
}

// ForGaming selects visual features at a moderate resolution.
func ForGaming() *Builder {
	return NewBuilder().Preset(PresetUrban).With(Amenities, Tourism).GridResolution(200)
}

// ForNavigation selects transportation plus buildings and amenities.
func ForNavigation() *Builder {
	return NewBuilder().Preset(PresetTransportation).With(Footpaths, Buildings, Amenities).GridResolution(150)
}

// ForUrbanPlanning selects everything at a high resolution.
func ForUrbanPlanning() *Builder {
	return NewBuilder().Preset(PresetComprehensive).GridResolution(300)
}

// ForEnvironment selects natural features and land use.
func ForEnvironment() *Builder {
	return NewBuilder().Preset(PresetNatural).With(Rivers, Lakes, Landuse).GridResolution(100)
}
