package provider

import (
	"testing"

	"github.com/paulmach/orb"
	posm "github.com/paulmach/osm"

	"github.com/NERVsystems/osmgrid/pkg/element"
	"github.com/NERVsystems/osmgrid/pkg/osm"
)

func TestAssembleRings(t *testing.T) {
	a, b, c, d := orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{1, 1}, orb.Point{0, 1}

	tests := []struct {
		name string
		segs [][]orb.Point
		want int
	}{
		{"single closed", [][]orb.Point{{a, b, c, d, a}}, 1},
		{"two halves", [][]orb.Point{{a, b, c}, {c, d, a}}, 1},
		{"reversed half", [][]orb.Point{{a, b, c}, {a, d, c}}, 1},
		{"open", [][]orb.Point{{a, b, c}}, 0},
		{"degenerate", [][]orb.Point{{a, b, a}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rings := assembleRings(tt.segs)
			if len(rings) != tt.want {
				t.Fatalf("got %d rings, want %d", len(rings), tt.want)
			}
			for _, r := range rings {
				if r[0] != r[len(r)-1] {
					t.Errorf("ring not closed: %v", r)
				}
			}
		})
	}
}

func TestConvertWay(t *testing.T) {
	square := []osm.LatLon{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}, {Lat: 0, Lon: 0}}

	tests := []struct {
		name string
		geom []osm.LatLon
		tags map[string]string
		kind element.Kind
		ok   bool
	}{
		{"closed landuse", square, map[string]string{"landuse": "grass"}, element.Area, true},
		{"closed highway", square, map[string]string{"highway": "service"}, element.Line, true},
		{"pedestrian area", square, map[string]string{"highway": "pedestrian", "area": "yes"}, element.Area, true},
		{"explicit area no", square, map[string]string{"leisure": "track", "area": "no"}, element.Line, true},
		{"open", square[:3], map[string]string{"landuse": "grass"}, element.Line, true},
		{"too short", square[:1], nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, ok := convertWay(7, tt.geom, tt.tags)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if el.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", el.Kind, tt.kind)
			}
			if el.Origin != posm.TypeWay {
				t.Errorf("origin = %v, want way", el.Origin)
			}
		})
	}
}

func TestConvertRouteRelation(t *testing.T) {
	rel := osm.OverpassElement{
		Type: "relation",
		ID:   42,
		Tags: map[string]string{"type": "route", "railway": "rail"},
		Members: []osm.OverpassMember{
			{Type: "way", Role: "", Geometry: []osm.LatLon{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}}},
			{Type: "way", Role: "", Geometry: []osm.LatLon{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 1}}},
			{Type: "node", Role: "stop", Lat: 1, Lon: 1},
		},
	}
	els := convertElements([]osm.OverpassElement{rel})
	if len(els) != 2 {
		t.Fatalf("got %d elements, want 2", len(els))
	}
	for _, el := range els {
		if el.Kind != element.Line || el.Origin != posm.TypeRelation || el.ID != 42 {
			t.Errorf("unexpected element %+v", el)
		}
		if v, _ := el.Tag("railway"); v != "rail" {
			t.Errorf("relation tags not carried: %v", el.Tags)
		}
	}
}

func TestDedupe(t *testing.T) {
	seen := make(map[elementKey]int)
	a := element.NewPoint(1, 0, 0, map[string]string{"amenity": "cafe"})
	w := element.NewLine(1, []orb.Point{{0, 0}, {1, 1}}, map[string]string{"highway": "primary"})

	first := dedupe([]element.Element{a, w}, seen, 0)
	if len(first) != 2 {
		t.Fatalf("node and way with the same id are distinct, got %d", len(first))
	}
	second := dedupe([]element.Element{a, w}, seen, 1)
	if len(second) != 0 {
		t.Errorf("repeated elements kept: %d", len(second))
	}
}
