// Package provider supplies geographic elements for a region and a feature
// set. The Overpass provider queries the public OSM service, the mock
// provider synthesises a reproducible layout and the file provider serves a
// local GeoJSON document.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/NERVsystems/osmgrid/pkg/config"
	"github.com/NERVsystems/osmgrid/pkg/element"
	"github.com/NERVsystems/osmgrid/pkg/geo"
)

// Provider names accepted by New.
const (
	NameOverpass = "overpass"
	NameMock     = "mock"
	NameFile     = "file"
)

// Provider fetches the elements of a region. Implementations must be safe
// for concurrent use.
type Provider interface {
	// Name identifies the provider in logs, metrics and errors.
	Name() string

	// Capabilities describes what the provider can do.
	Capabilities() Capabilities

	// ResolveRegion turns any region into a bounding box.
	ResolveRegion(ctx context.Context, region config.Region) (geo.BoundingBox, error)

	// Fetch returns the elements of region matching the feature set.
	Fetch(ctx context.Context, region config.Region, fs config.FeatureSet) ([]element.Element, error)

	// Ping reports whether the provider is currently usable.
	Ping(ctx context.Context) error
}

// Capabilities describes a provider.
type Capabilities struct {
	Network        bool    `json:"network"`
	ResolvesPlaces bool    `json:"resolvesPlaces"`
	Deterministic  bool    `json:"deterministic"`
	MaxAreaKm2     float64 `json:"maxAreaKm2,omitempty"` // 0 means unlimited
}

// Settings carries the values New needs to construct any provider.
type Settings struct {
	OverpassURL   string
	NominatimURL  string
	GeoJSONPath   string
	QueryTimeout  int
	BatchSize     int
	PlaceCacheTTL time.Duration
	Logger        *slog.Logger
}

// ErrUnknownProvider is returned by New for an unsupported name.
var ErrUnknownProvider = errors.New("unknown provider")

// Available returns the provider names accepted by New, sorted.
func Available() []string {
	names := []string{NameOverpass, NameMock, NameFile}
	sort.Strings(names)
	return names
}

// New constructs a provider by name.
func New(name string, s Settings) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameOverpass:
		opts := []OverpassOption{WithOverpassLogger(s.Logger)}
		if s.OverpassURL != "" {
			opts = append(opts, WithOverpassURL(s.OverpassURL))
		}
		if s.QueryTimeout > 0 {
			opts = append(opts, WithQueryTimeout(s.QueryTimeout))
		}
		if s.BatchSize > 0 {
			opts = append(opts, WithBatchSize(s.BatchSize))
		}
		var ropts []NominatimOption
		if s.NominatimURL != "" {
			ropts = append(ropts, WithNominatimURL(s.NominatimURL))
		}
		if s.PlaceCacheTTL > 0 {
			ropts = append(ropts, WithPlaceCacheTTL(s.PlaceCacheTTL))
		}
		opts = append(opts, WithResolver(NewNominatimResolver(ropts...)))
		return NewOverpassProvider(opts...), nil
	case NameMock:
		return NewMockProvider(), nil
	case NameFile:
		if s.GeoJSONPath == "" {
			return nil, fmt.Errorf("file provider requires a GeoJSON path")
		}
		return LoadFileProvider(s.GeoJSONPath, s.Logger)
	default:
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownProvider, name, strings.Join(Available(), ", "))
	}
}

// Resolver turns a place name into a bounding box.
type Resolver interface {
	Resolve(ctx context.Context, place string) (geo.BoundingBox, error)
}

// resolveCommon handles the region kinds every provider resolves the same
// way, and reports false for place regions.
func resolveCommon(region config.Region) (geo.BoundingBox, bool, error) {
	if err := region.Validate(); err != nil {
		return geo.BoundingBox{}, false, err
	}
	bbox, ok := region.Resolved()
	return bbox, ok, nil
}
