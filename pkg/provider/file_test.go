package provider

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	geojson "github.com/paulmach/go.geojson"

	"github.com/NERVsystems/osmgrid/pkg/config"
	"github.com/NERVsystems/osmgrid/pkg/element"
)

const geojsonFixture = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": 5,
     "properties": {"name": "Old Town", "boundary": "administrative", "admin_level": 10},
     "geometry": {"type": "Polygon", "coordinates": [[[13.40, 52.50], [13.45, 52.50], [13.45, 52.55], [13.40, 52.55], [13.40, 52.50]]]}},
    {"type": "Feature",
     "properties": {"@id": "way/77", "highway": "residential"},
     "geometry": {"type": "LineString", "coordinates": [[13.41, 52.51], [13.44, 52.54]]}},
    {"type": "Feature",
     "properties": {"amenity": "cafe", "outdoor_seating": true},
     "geometry": {"type": "Point", "coordinates": [13.42, 52.52]}},
    {"type": "Feature",
     "properties": {"natural": "water"},
     "geometry": {"type": "MultiPolygon", "coordinates": [
       [[[13.60, 52.60], [13.61, 52.60], [13.61, 52.61], [13.60, 52.60]]],
       [[[13.41, 52.51], [13.43, 52.51], [13.43, 52.53], [13.41, 52.53], [13.41, 52.51]],
        [[13.415, 52.515], [13.42, 52.515], [13.42, 52.52], [13.415, 52.515]]]
     ]}}
  ]
}`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "city.geojson")
	if err := os.WriteFile(path, []byte(geojsonFixture), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileProviderLoad(t *testing.T) {
	p, err := LoadFileProvider(writeFixture(t), nil)
	if err != nil {
		t.Fatalf("LoadFileProvider: %v", err)
	}
	if p.Len() != 5 {
		t.Errorf("Len = %d, want 5", p.Len())
	}
	b := p.Bounds()
	if b.West() != 13.40 || b.South() != 52.50 || b.East() != 13.61 || b.North() != 52.61 {
		t.Errorf("Bounds = %v", b)
	}
	if !p.Capabilities().ResolvesPlaces || p.Capabilities().Network {
		t.Errorf("unexpected capabilities %+v", p.Capabilities())
	}
}

func TestFileProviderFetch(t *testing.T) {
	p, err := LoadFileProvider(writeFixture(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	els, err := p.Fetch(ctx, config.BBoxRegion(52.50, 13.40, 52.55, 13.45), config.Comprehensive())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	// the far water polygon is outside; everything else is in document order
	wantIDs := []int64{5, 77, 3, 4}
	if len(els) != len(wantIDs) {
		t.Fatalf("got %d elements, want %d", len(els), len(wantIDs))
	}
	for i, el := range els {
		if el.ID != wantIDs[i] {
			t.Errorf("element %d id = %d, want %d", i, el.ID, wantIDs[i])
		}
	}
	if els[3].Kind != element.Area || len(els[3].Holes) != 1 {
		t.Errorf("water polygon = %+v, want area with one hole", els[3])
	}
	if v, _ := els[2].Tag("outdoor_seating"); v != "true" {
		t.Errorf("boolean property not kept as tag: %v", els[2].Tags)
	}
	if v, _ := els[0].Tag("admin_level"); v != "10" {
		t.Errorf("numeric property not kept as tag: %v", els[0].Tags)
	}

	water := config.NewFeatureSetBuilder().With(config.Water).Build()
	els, err = p.Fetch(ctx, config.PlaceRegion("old town"), water)
	if err != nil {
		t.Fatalf("Fetch by place: %v", err)
	}
	if len(els) != 1 || els[0].ID != 4 {
		t.Errorf("got %+v, want the water polygon only", els)
	}
}

func TestFileProviderUnknownPlace(t *testing.T) {
	p, err := LoadFileProvider(writeFixture(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.ResolveRegion(context.Background(), config.PlaceRegion("Nowhere"))
	if KindOf(err) != KindInvalidRegion {
		t.Errorf("got %v, want invalid region", err)
	}
}

func TestFileProviderLoadErrors(t *testing.T) {
	if _, err := LoadFileProvider(filepath.Join(t.TempDir(), "missing.geojson"), nil); err == nil || !strings.Contains(err.Error(), "read GeoJSON file") {
		t.Errorf("missing file: got %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.geojson")
	if err := os.WriteFile(bad, []byte(`{"type": "FeatureCollection", "features": [`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFileProvider(bad, nil); err == nil || !strings.Contains(err.Error(), "decode GeoJSON") {
		t.Errorf("bad file: got %v", err)
	}
}

func TestFileProviderSkipsEmptyGeometry(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	ghost := geojson.NewLineStringFeature(nil)
	ghost.SetProperty("name", "Ghost")
	ghost.SetProperty("highway", "residential")
	fc.AddFeature(ghost)
	cafe := geojson.NewPointFeature([]float64{13.42, 52.52})
	cafe.SetProperty("name", "Cafe")
	cafe.SetProperty("amenity", "cafe")
	fc.AddFeature(cafe)

	p, err := NewFileProvider("memory", fc, nil)
	if err != nil {
		t.Fatalf("NewFileProvider: %v", err)
	}
	if p.Len() != 1 {
		t.Errorf("Len = %d, want 1", p.Len())
	}
	b := p.Bounds()
	if b.West() != 13.42 || b.East() != 13.42 || b.South() != 52.52 || b.North() != 52.52 {
		t.Errorf("Bounds = %v, want the cafe point only", b)
	}
	if _, err := p.ResolveRegion(context.Background(), config.PlaceRegion("Ghost")); err == nil {
		t.Error("feature without coordinates resolved as a place")
	}
	if _, err := p.ResolveRegion(context.Background(), config.PlaceRegion("Cafe")); err != nil {
		t.Errorf("ResolveRegion(Cafe): %v", err)
	}
}

func TestFileProviderRejectsNonFiniteCoordinates(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.AddFeature(geojson.NewPointFeature([]float64{math.NaN(), 52.52}))

	_, err := NewFileProvider("memory", fc, nil)
	if err == nil || !strings.Contains(err.Error(), "non-finite") {
		t.Errorf("NewFileProvider error = %v, want non-finite bound", err)
	}
}
