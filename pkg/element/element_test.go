package element

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestTagsFromMapSorted(t *testing.T) {
	tags := TagsFromMap(map[string]string{"name": "x", "amenity": "cafe", "cuisine": "coffee"})
	if len(tags) != 3 {
		t.Fatalf("expected 3 tags, got %d", len(tags))
	}
	want := []string{"amenity", "cuisine", "name"}
	for i, k := range want {
		if tags[i].Key != k {
			t.Errorf("tag %d: expected key %q, got %q", i, k, tags[i].Key)
		}
	}
}

func TestConstructorsCopyInput(t *testing.T) {
	coords := []orb.Point{{13.4, 52.5}, {13.5, 52.5}}
	line := NewLine(1, coords, map[string]string{"highway": "primary"})
	coords[0] = orb.Point{0, 0}
	if line.Coordinates[0] != (orb.Point{13.4, 52.5}) {
		t.Errorf("line coordinates were aliased to caller slice")
	}
}

func TestTag(t *testing.T) {
	el := NewPoint(7, 52.5, 13.4, map[string]string{"amenity": "restaurant"})
	if v, ok := el.Tag("amenity"); !ok || v != "restaurant" {
		t.Errorf("expected amenity=restaurant, got %q %v", v, ok)
	}
	if el.HasTag("shop") {
		t.Errorf("unexpected shop tag")
	}
	if el.Coordinates[0] != LatLon(52.5, 13.4) {
		t.Errorf("point stored with wrong axis order: %v", el.Coordinates[0])
	}
}

func TestRingClosed(t *testing.T) {
	el := NewArea(3, []orb.Point{{0, 0}, {1, 0}, {1, 1}}, nil)
	ring := el.Ring()
	if len(ring) != 4 || ring[0] != ring[3] {
		t.Errorf("expected closed ring of 4 points, got %v", ring)
	}
	if len(el.Rings()) != 1 {
		t.Errorf("expected single ring, got %d", len(el.Rings()))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		el     Element
		reason string
	}{
		{
			name: "valid point",
			el:   NewPoint(1, 10, 10, map[string]string{"amenity": "cafe"}),
		},
		{
			name: "valid area with hole",
			el: NewArea(2,
				[]orb.Point{{0, 0}, {4, 0}, {4, 4}, {0, 4}},
				map[string]string{"building": "yes"},
				orb.Ring{{1, 1}, {2, 1}, {2, 2}}),
		},
		{
			name:   "line with one point",
			el:     NewLine(3, []orb.Point{{0, 0}}, nil),
			reason: ReasonTooFewPoints,
		},
		{
			name:   "area with two points",
			el:     NewArea(4, []orb.Point{{0, 0}, {1, 1}}, nil),
			reason: ReasonTooFewPoints,
		},
		{
			name:   "nan latitude",
			el:     NewPoint(5, math.NaN(), 0, nil),
			reason: ReasonNonFinite,
		},
		{
			name:   "latitude out of range",
			el:     NewPoint(6, 91, 0, nil),
			reason: ReasonOutOfRange,
		},
		{
			name:   "unknown kind",
			el:     Element{ID: 7, Coordinates: []orb.Point{{0, 0}}},
			reason: ReasonUnknownKind,
		},
		{
			name:   "degenerate hole",
			el:     NewArea(8, []orb.Point{{0, 0}, {4, 0}, {4, 4}}, nil, orb.Ring{{1, 1}, {2, 2}}),
			reason: ReasonDegenerateHole,
		},
		{
			name: "duplicate tag key",
			el: Element{
				ID:          9,
				Kind:        Point,
				Coordinates: []orb.Point{{0, 0}},
				Tags:        append(TagsFromMap(map[string]string{"a": "1"}), TagsFromMap(map[string]string{"a": "2"})...),
			},
			reason: ReasonDuplicateTagKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.el.Validate()
			if tt.reason == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var merr *MalformedError
			if !errors.As(err, &merr) {
				t.Fatalf("expected MalformedError, got %v", err)
			}
			if merr.Reason != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, merr.Reason)
			}
			if merr.ID != tt.el.ID {
				t.Errorf("expected id %d, got %d", tt.el.ID, merr.ID)
			}
		})
	}
}
