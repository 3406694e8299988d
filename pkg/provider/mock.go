package provider

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/paulmach/orb"

	"github.com/NERVsystems/osmgrid/pkg/config"
	"github.com/NERVsystems/osmgrid/pkg/element"
	"github.com/NERVsystems/osmgrid/pkg/geo"
)

// mockPlaces are the place names the mock provider can resolve.
var mockPlaces = map[string]geo.BoundingBox{
	"berlin":   geo.BBox(52.3, 13.0, 52.7, 13.8),
	"munich":   geo.BBox(48.0, 11.3, 48.3, 11.8),
	"münchen":  geo.BBox(48.0, 11.3, 48.3, 11.8),
	"hamburg":  geo.BBox(53.4, 9.7, 53.8, 10.3),
	"test":     geo.BBox(52.4, 13.3, 52.6, 13.5),
	"testcity": geo.BBox(52.4, 13.3, 52.6, 13.5),
	"mock":     geo.BBox(52.4, 13.3, 52.6, 13.5),
}

// mockShape is a layout feature in region fractions: u runs west to east
// and v runs south to north, both in [0, 1].
type mockShape struct {
	id    int64
	kind  element.Kind
	uv    [][2]float64
	holes [][][2]float64
	tags  map[string]string
}

func rect(u0, v0, u1, v1 float64) [][2]float64 {
	return [][2]float64{{u0, v0}, {u1, v0}, {u1, v1}, {u0, v1}}
}

// mockLayout is a small city: water in the north east, green space in the
// west, built-up zones in the centre and east, and a street network on top.
var mockLayout = []mockShape{
	{1, element.Area, rect(0.70, 0.70, 0.90, 0.90), nil, map[string]string{"natural": "water", "water": "lake", "name": "Mock Lake"}},
	{2, element.Line, [][2]float64{{0.00, 0.55}, {0.30, 0.60}, {0.60, 0.65}, {0.75, 0.72}}, nil, map[string]string{"waterway": "river", "name": "Mock River"}},
	{3, element.Area, rect(0.10, 0.10, 0.35, 0.35), [][][2]float64{rect(0.20, 0.20, 0.25, 0.25)}, map[string]string{"leisure": "park", "name": "Central Park"}},
	{4, element.Area, rect(0.05, 0.70, 0.30, 0.95), nil, map[string]string{"natural": "wood"}},
	{5, element.Area, rect(0.40, 0.05, 0.55, 0.20), nil, map[string]string{"landuse": "grass"}},
	{6, element.Area, rect(0.40, 0.30, 0.65, 0.50), nil, map[string]string{"landuse": "residential"}},
	{7, element.Area, rect(0.70, 0.30, 0.95, 0.50), nil, map[string]string{"landuse": "commercial"}},
	{8, element.Area, rect(0.70, 0.05, 0.95, 0.25), nil, map[string]string{"landuse": "industrial"}},
	{9, element.Area, rect(0.42, 0.32, 0.47, 0.37), nil, map[string]string{"building": "residential"}},
	{10, element.Area, rect(0.55, 0.35, 0.60, 0.40), nil, map[string]string{"building": "yes"}},
	{11, element.Area, rect(0.72, 0.32, 0.78, 0.38), nil, map[string]string{"building": "commercial"}},
	{12, element.Area, rect(0.85, 0.40, 0.90, 0.45), nil, map[string]string{"building": "retail"}},
	{13, element.Area, rect(0.72, 0.08, 0.80, 0.14), nil, map[string]string{"building": "industrial"}},
	{14, element.Area, rect(0.82, 0.08, 0.90, 0.14), nil, map[string]string{"amenity": "parking"}},
	{15, element.Line, [][2]float64{{0.00, 0.27}, {1.00, 0.27}}, nil, map[string]string{"highway": "primary", "name": "Main Street"}},
	{16, element.Line, [][2]float64{{0.50, 0.00}, {0.50, 1.00}}, nil, map[string]string{"highway": "residential"}},
	{17, element.Line, [][2]float64{{0.02, 0.00}, {0.02, 1.00}}, nil, map[string]string{"highway": "motorway"}},
	{18, element.Line, [][2]float64{{0.12, 0.12}, {0.33, 0.33}}, nil, map[string]string{"highway": "footway"}},
	{19, element.Line, [][2]float64{{0.00, 0.60}, {0.65, 0.60}, {1.00, 0.66}}, nil, map[string]string{"railway": "rail"}},
	{20, element.Line, [][2]float64{{0.97, 0.00}, {0.97, 1.00}}, nil, map[string]string{"power": "line"}},
	{21, element.Line, [][2]float64{{0.01, 0.01}, {0.99, 0.01}, {0.99, 0.99}, {0.01, 0.99}, {0.01, 0.01}}, nil, map[string]string{"boundary": "administrative"}},
	{22, element.Point, [][2]float64{{0.52, 0.45}}, nil, map[string]string{"amenity": "cafe", "name": "Mock Cafe"}},
	{23, element.Point, [][2]float64{{0.60, 0.56}}, nil, map[string]string{"tourism": "hotel"}},
}

// MockProvider returns a fixed city layout scaled into the requested
// region. It performs no I/O; equal inputs always give equal elements.
type MockProvider struct {
	elements []element.Element
	custom   bool
	failure  Kind

	fetches  atomic.Int64
	resolves atomic.Int64
}

// NewMockProvider creates a mock provider serving the built-in layout.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// NewMockProviderWithElements creates a mock provider serving els. Fetch
// returns the elements whose bounds intersect the region and that match
// the feature set, in the given order.
func NewMockProviderWithElements(els []element.Element) *MockProvider {
	return &MockProvider{elements: append([]element.Element(nil), els...), custom: true}
}

// WithFailure returns a copy of the provider whose Fetch and Ping fail with
// an error of the given kind.
func (m *MockProvider) WithFailure(kind Kind) *MockProvider {
	return &MockProvider{elements: m.elements, custom: m.custom, failure: kind}
}

// Name implements Provider.
func (m *MockProvider) Name() string { return NameMock }

// Capabilities implements Provider.
func (m *MockProvider) Capabilities() Capabilities {
	return Capabilities{ResolvesPlaces: true, Deterministic: true}
}

// FetchCount returns how many times Fetch was called.
func (m *MockProvider) FetchCount() int { return int(m.fetches.Load()) }

// ResolveCount returns how many times ResolveRegion was called.
func (m *MockProvider) ResolveCount() int { return int(m.resolves.Load()) }

// ResolveRegion implements Provider. Only the built-in place names resolve.
func (m *MockProvider) ResolveRegion(ctx context.Context, region config.Region) (geo.BoundingBox, error) {
	m.resolves.Add(1)
	bbox, ok, err := resolveCommon(region)
	if err != nil {
		return geo.BoundingBox{}, err
	}
	if ok {
		return bbox, nil
	}
	bbox, ok = mockPlaces[strings.ToLower(strings.TrimSpace(region.Place))]
	if !ok {
		return geo.BoundingBox{}, &Error{Kind: KindInvalidRegion, Provider: NameMock, Region: region.Place, Message: "unknown place"}
	}
	return bbox, nil
}

// Ping implements Provider.
func (m *MockProvider) Ping(ctx context.Context) error {
	if m.failure != 0 {
		return &Error{Kind: m.failure, Provider: NameMock, Message: "simulated failure"}
	}
	return nil
}

// Fetch implements Provider.
func (m *MockProvider) Fetch(ctx context.Context, region config.Region, fs config.FeatureSet) ([]element.Element, error) {
	m.fetches.Add(1)
	if m.failure != 0 {
		return nil, &Error{Kind: m.failure, Provider: NameMock, Region: region.Key(), Message: "simulated failure"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bbox, err := m.ResolveRegion(ctx, region)
	if err != nil {
		return nil, err
	}

	qs := fs.TagQueries()
	if m.custom {
		var out []element.Element
		for _, el := range m.elements {
			if el.Bound().Intersects(bbox.Bound()) && matchesAny(el, qs) {
				out = append(out, el)
			}
		}
		return out, nil
	}

	out := make([]element.Element, 0, len(mockLayout))
	for _, s := range mockLayout {
		if el := s.scale(bbox); matchesAny(el, qs) {
			out = append(out, el)
		}
	}
	return out, nil
}

func matchesAny(el element.Element, qs []config.TagQuery) bool {
	for _, q := range qs {
		if q.Matches(el) {
			return true
		}
	}
	return false
}

func (s mockShape) scale(b geo.BoundingBox) element.Element {
	pts := scalePoints(s.uv, b)
	switch s.kind {
	case element.Point:
		return element.NewPoint(s.id, pts[0].Lat(), pts[0].Lon(), s.tags)
	case element.Line:
		return element.NewLine(s.id, pts, s.tags)
	default:
		holes := make([]orb.Ring, 0, len(s.holes))
		for _, h := range s.holes {
			holes = append(holes, orb.Ring(scalePoints(h, b)))
		}
		return element.NewArea(s.id, pts, s.tags, holes...)
	}
}

func scalePoints(uv [][2]float64, b geo.BoundingBox) []orb.Point {
	pts := make([]orb.Point, len(uv))
	for i, p := range uv {
		pts[i] = element.LatLon(b.South()+p[1]*b.Height(), b.West()+p[0]*b.Width())
	}
	return pts
}
