package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/NERVsystems/osmgrid/pkg/element"
	"github.com/NERVsystems/osmgrid/pkg/tile"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		code  ErrorCode
		field string
	}{
		{
			name: "valid bbox",
			cfg:  Config{Region: BBoxRegion(52.5, 13.3, 52.6, 13.5), GridResolution: 100},
		},
		{
			name:  "zero resolution",
			cfg:   Config{Region: BBoxRegion(52.5, 13.3, 52.6, 13.5), GridResolution: 0},
			code:  ErrInvalidResolution,
			field: "gridResolution",
		},
		{
			name:  "negative resolution",
			cfg:   Config{Region: BBoxRegion(52.5, 13.3, 52.6, 13.5), GridResolution: -4},
			code:  ErrInvalidResolution,
			field: "gridResolution",
		},
		{
			name: "degenerate latitude span",
			cfg:  Config{Region: BBoxRegion(52.5, 13.3, 52.5, 13.5), GridResolution: 10},
			code: ErrDegenerateRegion,
		},
		{
			name: "inverted longitude span",
			cfg:  Config{Region: BBoxRegion(52.5, 13.5, 52.6, 13.3), GridResolution: 10},
			code: ErrDegenerateRegion,
		},
		{
			name: "latitude out of range",
			cfg:  Config{Region: BBoxRegion(-91, 0, 10, 10), GridResolution: 10},
			code: ErrInvalidLatitude,
		},
		{
			name: "empty place",
			cfg:  Config{Region: PlaceRegion("  "), GridResolution: 10},
			code: ErrEmptyPlace,
		},
		{
			name: "non-positive radius",
			cfg:  Config{Region: CenterRadiusRegion(52.5, 13.4, 0), GridResolution: 10},
			code: ErrInvalidRadius,
		},
		{
			name: "missing region",
			cfg:  Config{GridResolution: 10},
			code: ErrUnresolvedRegion,
		},
		{
			name: "large resolution accepted",
			cfg:  Config{Region: BBoxRegion(0, 0, 1, 1), GridResolution: 20000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.code == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if cerr.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, cerr.Code)
			}
			if tt.field != "" && cerr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, cerr.Field)
			}
			if cerr.Resolution != tt.cfg.GridResolution {
				t.Errorf("expected resolution %d in error, got %d", tt.cfg.GridResolution, cerr.Resolution)
			}
			if cerr.Region == "" {
				t.Errorf("expected region context in error")
			}
		})
	}
}

func TestBuilderDefaults(t *testing.T) {
	cfg, err := NewBuilder().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cfg.GridResolution != DefaultGridResolution {
		t.Errorf("expected default resolution %d, got %d", DefaultGridResolution, cfg.GridResolution)
	}
	if cfg.Region.Kind != RegionPlace || cfg.Region.Place != DefaultPlace {
		t.Errorf("expected default place region, got %v", cfg.Region)
	}
	if cfg.Features.Key() != Urban().Key() {
		t.Errorf("expected urban features, got %s", cfg.Features.Key())
	}
}

func TestBuilderCenterRadius(t *testing.T) {
	cfg, err := NewBuilder().CenterRadius(52.5, 13.4, 2).GridResolution(50).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cfg.Region.Kind != RegionCenterRadius || cfg.Region.RadiusKm != 2 {
		t.Errorf("unexpected region %v", cfg.Region)
	}
	if _, err := NewBuilder().CenterRadius(52.5, 13.4, -1).Build(); err == nil {
		t.Error("negative radius accepted")
	}
}

func TestBuilderRejectsZeroResolution(t *testing.T) {
	_, err := NewBuilder().BBox(0, 0, 1, 1).GridResolution(0).Build()
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Code != ErrInvalidResolution {
		t.Fatalf("expected INVALID_RESOLUTION, got %v", err)
	}
}

func TestBuilderUnknownPreset(t *testing.T) {
	_, err := NewBuilder().Preset("nope").Build()
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Code != ErrUnknownPreset {
		t.Fatalf("expected UNKNOWN_PRESET, got %v", err)
	}
}

func TestProfiles(t *testing.T) {
	tests := []struct {
		name       string
		builder    *Builder
		resolution int
		contains   []Feature
	}{
		{"gaming", ForGaming(), 200, []Feature{Roads, Buildings, Parks, Water, Amenities, Tourism}},
		{"navigation", ForNavigation(), 150, []Feature{Roads, Highways, Railways, Parking, Footpaths, Buildings, Amenities}},
		{"urban planning", ForUrbanPlanning(), 300, AllFeatures()},
		{"environment", ForEnvironment(), 100, []Feature{Water, Forests, Parks, Grassland, Rivers, Lakes, Landuse}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := tt.builder.BBox(0, 0, 1, 1).Build()
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if cfg.GridResolution != tt.resolution {
				t.Errorf("expected resolution %d, got %d", tt.resolution, cfg.GridResolution)
			}
			for _, f := range tt.contains {
				if !cfg.Features.Contains(f) {
					t.Errorf("expected %s to be enabled", f)
				}
			}
		})
	}
}

func TestPresets(t *testing.T) {
	tests := []struct {
		name string
		want []Feature
	}{
		{PresetUrban, []Feature{Roads, Buildings, Water, Parks}},
		{PresetTransportation, []Feature{Roads, Highways, Railways, Parking}},
		{PresetNatural, []Feature{Water, Forests, Parks, Grassland}},
		{PresetComprehensive, AllFeatures()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, err := Preset(tt.name)
			if err != nil {
				t.Fatalf("Preset: %v", err)
			}
			got := fs.Features()
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d features, got %v", len(tt.want), got)
			}
			for _, f := range tt.want {
				if !fs.Contains(f) {
					t.Errorf("expected %s in preset", f)
				}
			}
		})
	}
}

func TestFeatureSetImmutable(t *testing.T) {
	b := NewFeatureSetBuilder().With(Roads).WithCustomQuery(Eq("amenity", "cafe"))
	fs := b.Build()
	b.With(Water).WithCustomQuery(Any("shop"))

	if fs.Contains(Water) {
		t.Errorf("built set changed after builder mutation")
	}
	if len(fs.CustomQueries()) != 1 {
		t.Errorf("expected 1 custom query, got %d", len(fs.CustomQueries()))
	}

	queries := fs.CustomQueries()
	queries[0].Priority = 999
	if fs.CustomQueries()[0].Priority != DefaultCustomPriority {
		t.Errorf("custom queries were not copied")
	}
}

func TestFeatureSetKeyCanonical(t *testing.T) {
	a := NewFeatureSetBuilder().With(Water, Roads).Build()
	b := NewFeatureSetBuilder().With(Roads, Water, Roads).Build()
	if a.Key() != b.Key() {
		t.Errorf("keys differ: %q vs %q", a.Key(), b.Key())
	}
	c := NewFeatureSetBuilder().With(Roads, Water).WithCustomQuery(Any("shop")).Build()
	if a.Key() == c.Key() {
		t.Errorf("custom query not reflected in key")
	}
}

func TestTagQueriesDeduplicated(t *testing.T) {
	fs := NewFeatureSetBuilder().With(Water, Lakes).WithCustomQuery(Eq("natural", "water")).Build()
	count := 0
	for _, q := range fs.TagQueries() {
		if q == Eq("natural", "water") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected natural=water once, got %d", count)
	}
}

func TestTagQueryMatches(t *testing.T) {
	el := element.NewPoint(1, 0, 0, map[string]string{"amenity": "restaurant"})
	tests := []struct {
		q    TagQuery
		want bool
	}{
		{Any("amenity"), true},
		{Eq("amenity", "restaurant"), true},
		{Eq("amenity", "cafe"), false},
		{Any("shop"), false},
	}
	for _, tt := range tests {
		t.Run(tt.q.String(), func(t *testing.T) {
			if got := tt.q.Matches(el); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseTagQuery(t *testing.T) {
	tests := []struct {
		in      string
		want    TagQuery
		wantErr bool
	}{
		{"amenity", Any("amenity"), false},
		{"amenity=cafe", Eq("amenity", "cafe"), false},
		{" shop = * ", Any("shop"), false},
		{"=x", TagQuery{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTagQuery(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInferTileType(t *testing.T) {
	tests := []struct {
		q    TagQuery
		want tile.Type
	}{
		{Eq("amenity", "restaurant"), tile.Amenity},
		{Eq("amenity", "parking"), tile.Parking},
		{Any("building"), tile.Building},
		{Eq("highway", "cycleway"), tile.Road},
		{Eq("natural", "wood"), tile.GreenSpace},
		{Any("shop"), tile.Custom},
	}
	for _, tt := range tests {
		t.Run(tt.q.String(), func(t *testing.T) {
			if got := InferTileType(tt.q); got != tt.want {
				t.Errorf("InferTileType = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFeatureMetadata(t *testing.T) {
	for _, f := range AllFeatures() {
		if f.Description() == "" {
			t.Errorf("%s has no description", f)
		}
		if len(f.Rules()) == 0 {
			t.Errorf("%s has no rules", f)
		}
		if f.TileType() == tile.Empty {
			t.Errorf("%s maps to Empty", f)
		}
		parsed, err := ParseFeature(f.String())
		if err != nil || parsed != f {
			t.Errorf("ParseFeature(%q) = %v, %v", f.String(), parsed, err)
		}
	}
	if Water.Priority() <= Grassland.Priority() {
		t.Errorf("water must outrank grassland")
	}
}

func TestConfigKey(t *testing.T) {
	a := Config{Region: BBoxRegion(0, 0, 1, 1), GridResolution: 10, Features: Urban()}
	b := Config{Region: BBoxRegion(0, 0, 1, 1), GridResolution: 20, Features: Urban()}
	if a.Key() == b.Key() {
		t.Errorf("resolution not part of key")
	}
	if !strings.HasPrefix(a.Key(), "bbox:") {
		t.Errorf("unexpected key %q", a.Key())
	}
	p1 := Config{Region: PlaceRegion("Berlin"), GridResolution: 10, Features: Urban()}
	p2 := Config{Region: PlaceRegion(" berlin "), GridResolution: 10, Features: Urban()}
	if p1.Key() != p2.Key() {
		t.Errorf("place keys should be normalized: %q vs %q", p1.Key(), p2.Key())
	}
}

func TestConfigKeyLossless(t *testing.T) {
	tests := []struct {
		name string
		a, b Region
	}{
		{"bbox", BBoxRegion(0, 0, 1, 1), BBoxRegion(0, 0, 1, 1.0000001)},
		{"center", CenterRadiusRegion(52.5, 13.4, 1), CenterRadiusRegion(52.5000001, 13.4, 1)},
		{"radius", CenterRadiusRegion(52.5, 13.4, 1), CenterRadiusRegion(52.5, 13.4, 1.0001)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Config{Region: tt.a, GridResolution: 10, Features: Urban()}
			b := Config{Region: tt.b, GridResolution: 10, Features: Urban()}
			if a.Key() == b.Key() {
				t.Errorf("distinct regions share key %q", a.Key())
			}
			if a.Matches(b) {
				t.Error("distinct regions match")
			}
			if !a.Matches(a) {
				t.Error("config does not match itself")
			}
		})
	}

	p1 := Config{Region: PlaceRegion("Berlin"), GridResolution: 10, Features: Urban()}
	p2 := Config{Region: PlaceRegion(" berlin "), GridResolution: 10, Features: Urban()}
	if !p1.Matches(p2) {
		t.Error("normalized place names should match")
	}
	if p1.Matches(Config{Region: p1.Region, GridResolution: 10, Features: Natural()}) {
		t.Error("different feature sets match")
	}
	if p1.Matches(Config{Region: p1.Region, GridResolution: 11, Features: Urban()}) {
		t.Error("different resolutions match")
	}
}

func TestBoundsRequiresResolution(t *testing.T) {
	cfg := Config{Region: PlaceRegion("Berlin"), GridResolution: 10}
	_, err := cfg.Bounds()
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Code != ErrUnresolvedRegion {
		t.Fatalf("expected UNRESOLVED_REGION, got %v", err)
	}

	cr := Config{Region: CenterRadiusRegion(52.5, 13.4, 2), GridResolution: 10}
	b, err := cr.Bounds()
	if err != nil {
		t.Fatalf("Bounds: %v", err)
	}
	if !b.Contains(52.5, 13.4) {
		t.Errorf("centre not inside resolved bounds %v", b)
	}
}
