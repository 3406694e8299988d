package provider

import (
	"context"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dhconnelly/rtreego"
	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/NERVsystems/osmgrid/pkg/config"
	"github.com/NERVsystems/osmgrid/pkg/element"
	"github.com/NERVsystems/osmgrid/pkg/geo"
)

// pointEpsilon gives zero-area entries a non-degenerate R-tree rectangle,
// roughly 11 m at the equator.
const pointEpsilon = 0.0001

// indexedElement wraps an element for R-tree storage. seq is the position
// in the source document and restores input order after a search.
type indexedElement struct {
	el   element.Element
	seq  int
	rect rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (i *indexedElement) Bounds() rtreego.Rect {
	return i.rect
}

// boundRect converts b to an R-tree rectangle. Non-finite coordinates are
// rejected.
func boundRect(b orb.Bound) (rtreego.Rect, error) {
	point := rtreego.Point{b.Min.Lon(), b.Min.Lat()}
	lonLength := max(b.Max.Lon()-b.Min.Lon(), pointEpsilon)
	latLength := max(b.Max.Lat()-b.Min.Lat(), pointEpsilon)
	for _, v := range []float64{point[0], point[1], lonLength, latLength} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return rtreego.Rect{}, errors.Errorf("non-finite bound %v", b)
		}
	}
	rect, err := rtreego.NewRect(point, []float64{lonLength, latLength})
	if err != nil {
		return rtreego.Rect{}, errors.Wrapf(err, "bound %v", b)
	}
	return rect, nil
}

// FileProvider serves the features of a GeoJSON FeatureCollection. The
// collection is loaded once and queried through an R-tree. Features with a
// "name" property can be used as place regions.
type FileProvider struct {
	source string
	bounds geo.BoundingBox
	places map[string]geo.BoundingBox
	tree   *rtreego.Rtree
	count  int
	logger *slog.Logger
}

// LoadFileProvider reads a GeoJSON FeatureCollection from path.
func LoadFileProvider(path string, logger *slog.Logger) (*FileProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read GeoJSON file")
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode GeoJSON file %s", path)
	}
	return NewFileProvider(path, fc, logger)
}

// NewFileProvider indexes an already decoded FeatureCollection. source
// names the collection in errors and logs.
func NewFileProvider(source string, fc *geojson.FeatureCollection, logger *slog.Logger) (*FileProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if fc == nil {
		return nil, errors.New("nil feature collection")
	}

	p := &FileProvider{
		source: source,
		places: make(map[string]geo.BoundingBox),
		tree:   rtreego.NewTree(2, 25, 50),
		logger: logger.With("component", "file_provider", "source", source),
	}

	extent := geo.NewBoundingBox()
	seq := 0
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		id := featureID(f, int64(i+1))
		tags := featureTags(f)
		els, err := convertGeometry(id, f.Geometry, tags)
		if err != nil {
			return nil, errors.Wrapf(err, "feature %d", i)
		}
		var fb orb.Bound
		indexed := 0
		for _, el := range els {
			// orb reports an inverted bound for an empty point set
			if len(el.Coordinates) == 0 {
				p.logger.Debug("skipping element without coordinates", "feature", i, "id", el.ID)
				continue
			}
			b := el.Bound()
			rect, err := boundRect(b)
			if err != nil {
				return nil, errors.Wrapf(err, "feature %d", i)
			}
			if indexed == 0 {
				fb = b
			} else {
				fb = fb.Union(b)
			}
			p.tree.Insert(&indexedElement{el: el, seq: seq, rect: rect})
			seq++
			indexed++
		}
		if indexed == 0 {
			continue
		}
		extent.ExtendWithPoint(fb.Min.Lat(), fb.Min.Lon())
		extent.ExtendWithPoint(fb.Max.Lat(), fb.Max.Lon())
		if name, ok := tags["name"]; ok {
			key := strings.ToLower(strings.TrimSpace(name))
			if _, dup := p.places[key]; !dup {
				p.places[key] = geo.FromBound(fb)
			}
		}
	}
	p.count = seq

	if len(fc.BoundingBox) == 4 {
		p.bounds = geo.BBox(fc.BoundingBox[1], fc.BoundingBox[0], fc.BoundingBox[3], fc.BoundingBox[2])
	} else if seq > 0 {
		p.bounds = *extent
	}

	p.logger.Info("loaded GeoJSON", "elements", p.count, "places", len(p.places), "bounds", p.bounds.String())
	return p, nil
}

// Name implements Provider.
func (p *FileProvider) Name() string { return NameFile }

// Capabilities implements Provider.
func (p *FileProvider) Capabilities() Capabilities {
	return Capabilities{ResolvesPlaces: len(p.places) > 0, Deterministic: true}
}

// Bounds returns the extent of the loaded data.
func (p *FileProvider) Bounds() geo.BoundingBox { return p.bounds }

// Len returns the number of indexed elements.
func (p *FileProvider) Len() int { return p.count }

// Ping implements Provider.
func (p *FileProvider) Ping(ctx context.Context) error { return nil }

// ResolveRegion implements Provider. Place names match the "name" property
// of a feature, case-insensitively.
func (p *FileProvider) ResolveRegion(ctx context.Context, region config.Region) (geo.BoundingBox, error) {
	bbox, ok, err := resolveCommon(region)
	if err != nil {
		return geo.BoundingBox{}, err
	}
	if ok {
		return bbox, nil
	}
	bbox, ok = p.places[strings.ToLower(strings.TrimSpace(region.Place))]
	if !ok {
		return geo.BoundingBox{}, &Error{Kind: KindInvalidRegion, Provider: NameFile, Region: region.Place, Message: "no feature named " + strconv.Quote(region.Place)}
	}
	return bbox, nil
}

// Fetch implements Provider. Elements are returned in document order.
func (p *FileProvider) Fetch(ctx context.Context, region config.Region, fs config.FeatureSet) ([]element.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bbox, err := p.ResolveRegion(ctx, region)
	if err != nil {
		return nil, err
	}

	query, err := boundRect(bbox.Bound())
	if err != nil {
		return nil, &Error{Kind: KindInvalidRegion, Provider: NameFile, Region: region.Key(), Message: err.Error()}
	}
	hits := p.tree.SearchIntersect(query)
	matched := make([]*indexedElement, 0, len(hits))
	qs := fs.TagQueries()
	for _, h := range hits {
		ie := h.(*indexedElement)
		if matchesAny(ie.el, qs) {
			matched = append(matched, ie)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	out := make([]element.Element, len(matched))
	for i, ie := range matched {
		out[i] = ie.el
	}
	p.logger.Debug("fetched features", "region", region.Key(), "candidates", len(hits), "elements", len(out))
	return out, nil
}

// featureID prefers a numeric feature id, then an "id" or "@id" property
// of the form "way/123" or "123", then fallback.
func featureID(f *geojson.Feature, fallback int64) int64 {
	switch v := f.ID.(type) {
	case float64:
		return int64(v)
	case string:
		if id, ok := parseOSMID(v); ok {
			return id
		}
	}
	for _, key := range []string{"@id", "id"} {
		if s, err := f.PropertyString(key); err == nil {
			if id, ok := parseOSMID(s); ok {
				return id
			}
		}
	}
	return fallback
}

func parseOSMID(s string) (int64, bool) {
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil
}

// featureTags keeps scalar properties as tags.
func featureTags(f *geojson.Feature) map[string]string {
	tags := make(map[string]string, len(f.Properties))
	for k, v := range f.Properties {
		switch val := v.(type) {
		case string:
			tags[k] = val
		case float64:
			tags[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			tags[k] = strconv.FormatBool(val)
		}
	}
	return tags
}

// convertGeometry maps a GeoJSON geometry to elements. Multi geometries
// and collections yield one element per part, all sharing id.
func convertGeometry(id int64, g *geojson.Geometry, tags map[string]string) ([]element.Element, error) {
	switch g.Type {
	case geojson.GeometryPoint:
		if len(g.Point) < 2 {
			return nil, errors.New("point with fewer than 2 ordinates")
		}
		return []element.Element{element.NewPoint(id, g.Point[1], g.Point[0], tags)}, nil
	case geojson.GeometryMultiPoint:
		out := make([]element.Element, 0, len(g.MultiPoint))
		for _, pt := range g.MultiPoint {
			if len(pt) < 2 {
				return nil, errors.New("point with fewer than 2 ordinates")
			}
			out = append(out, element.NewPoint(id, pt[1], pt[0], tags))
		}
		return out, nil
	case geojson.GeometryLineString:
		return []element.Element{element.NewLine(id, positions(g.LineString), tags)}, nil
	case geojson.GeometryMultiLineString:
		out := make([]element.Element, 0, len(g.MultiLineString))
		for _, ls := range g.MultiLineString {
			out = append(out, element.NewLine(id, positions(ls), tags))
		}
		return out, nil
	case geojson.GeometryPolygon:
		el, ok := polygonElement(id, g.Polygon, tags)
		if !ok {
			return nil, nil
		}
		return []element.Element{el}, nil
	case geojson.GeometryMultiPolygon:
		out := make([]element.Element, 0, len(g.MultiPolygon))
		for _, poly := range g.MultiPolygon {
			if el, ok := polygonElement(id, poly, tags); ok {
				out = append(out, el)
			}
		}
		return out, nil
	case geojson.GeometryCollection:
		var out []element.Element
		for _, sub := range g.Geometries {
			els, err := convertGeometry(id, sub, tags)
			if err != nil {
				return nil, err
			}
			out = append(out, els...)
		}
		return out, nil
	default:
		return nil, errors.Errorf("unsupported geometry type %q", g.Type)
	}
}

func polygonElement(id int64, rings [][][]float64, tags map[string]string) (element.Element, bool) {
	if len(rings) == 0 {
		return element.Element{}, false
	}
	outer := openRing(positions(rings[0]))
	holes := make([]orb.Ring, 0, len(rings)-1)
	for _, r := range rings[1:] {
		holes = append(holes, orb.Ring(openRing(positions(r))))
	}
	return element.NewArea(id, outer, tags, holes...), true
}

func positions(coords [][]float64) []orb.Point {
	pts := make([]orb.Point, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		pts = append(pts, orb.Point{c[0], c[1]})
	}
	return pts
}

// openRing drops the closing position GeoJSON repeats.
func openRing(pts []orb.Point) []orb.Point {
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		return pts[:len(pts)-1]
	}
	return pts
}
