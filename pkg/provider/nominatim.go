package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/NERVsystems/osmgrid/pkg/geo"
	"github.com/NERVsystems/osmgrid/pkg/osm"
	"github.com/NERVsystems/osmgrid/pkg/tracing"
)

// DefaultPlaceCacheTTL is how long a resolved place name is reused.
const DefaultPlaceCacheTTL = 24 * time.Hour

// NominatimResolver resolves place names to bounding boxes with the
// Nominatim search API. Results are cached per normalised name.
type NominatimResolver struct {
	baseURL string
	cache   *osm.TTLCache[string, geo.BoundingBox]
	logger  *slog.Logger
}

// NominatimOption configures a NominatimResolver.
type NominatimOption func(*NominatimResolver)

// WithNominatimURL overrides the Nominatim base URL.
func WithNominatimURL(u string) NominatimOption {
	return func(r *NominatimResolver) { r.baseURL = strings.TrimRight(u, "/") }
}

// WithPlaceCacheTTL sets how long resolutions are cached.
func WithPlaceCacheTTL(ttl time.Duration) NominatimOption {
	return func(r *NominatimResolver) { r.cache = osm.NewTTLCache[string, geo.BoundingBox](ttl) }
}

// WithNominatimLogger sets the logger.
func WithNominatimLogger(l *slog.Logger) NominatimOption {
	return func(r *NominatimResolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewNominatimResolver creates a resolver against the public endpoint
// unless overridden.
func NewNominatimResolver(opts ...NominatimOption) *NominatimResolver {
	r := &NominatimResolver{
		baseURL: osm.NominatimBaseURL,
		cache:   osm.NewTTLCache[string, geo.BoundingBox](DefaultPlaceCacheTTL),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "nominatim")
	return r
}

// Resolve returns the bounding box of the best match for place.
func (r *NominatimResolver) Resolve(ctx context.Context, place string) (geo.BoundingBox, error) {
	key := strings.ToLower(strings.TrimSpace(place))
	if bbox, ok := r.cache.Get(key); ok {
		tracing.SetAttributes(ctx, tracing.CacheAttributes(tracing.CacheTypePlace, true, key)...)
		return bbox, nil
	}

	ctx, span := tracing.StartSpan(ctx, "nominatim.resolve")
	defer span.End()
	span.SetAttributes(tracing.CacheAttributes(tracing.CacheTypePlace, false, key)...)

	bbox, err := r.search(ctx, place)
	if err != nil {
		tracing.RecordError(ctx, err)
		return geo.BoundingBox{}, err
	}
	r.cache.Set(key, bbox)
	r.logger.Debug("resolved place", "place", place, "bbox", bbox.String())
	return bbox, nil
}

func (r *NominatimResolver) search(ctx context.Context, place string) (geo.BoundingBox, error) {
	params := url.Values{}
	params.Set("q", place)
	params.Set("format", "json")
	params.Set("limit", "1")
	reqURL := r.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return geo.BoundingBox{}, &Error{Kind: KindNetwork, Provider: osm.ServiceNominatim, Region: place, Message: "failed to create request", Err: err}
	}

	resp, err := osm.MonitoredDoRequest(ctx, req, osm.ServiceNominatim, "resolve_place")
	if err != nil {
		return geo.BoundingBox{}, transportError(osm.ServiceNominatim, place, err)
	}
	defer resp.Body.Close()

	tracing.SetAttributes(ctx, tracing.ServiceAttributes(osm.ServiceNominatim, "resolve_place", r.baseURL, resp.StatusCode)...)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return geo.BoundingBox{}, StatusError(osm.ServiceNominatim, place, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var places []osm.NominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return geo.BoundingBox{}, &Error{Kind: KindParse, Provider: osm.ServiceNominatim, Region: place, Message: "failed to decode response", Err: err}
	}
	if len(places) == 0 {
		return geo.BoundingBox{}, &Error{Kind: KindInvalidRegion, Provider: osm.ServiceNominatim, Region: place, Message: "place not found"}
	}

	bbox, err := parseNominatimBBox(places[0].BoundingBox)
	if err != nil {
		return geo.BoundingBox{}, &Error{Kind: KindParse, Provider: osm.ServiceNominatim, Region: place, Message: "invalid bounding box", Err: err}
	}
	if !(bbox.South() < bbox.North()) || !(bbox.West() < bbox.East()) {
		return geo.BoundingBox{}, &Error{Kind: KindInvalidRegion, Provider: osm.ServiceNominatim, Region: place, Message: "place has no extent"}
	}
	tracing.SetAttributes(ctx, attribute.String(tracing.AttrGridRegion, bbox.String()))
	return bbox, nil
}

// parseNominatimBBox reads Nominatim's [south, north, west, east] strings.
func parseNominatimBBox(raw []string) (geo.BoundingBox, error) {
	if len(raw) != 4 {
		return geo.BoundingBox{}, fmt.Errorf("expected 4 values, got %d", len(raw))
	}
	var v [4]float64
	for i, s := range raw {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return geo.BoundingBox{}, fmt.Errorf("value %d: %w", i, err)
		}
		v[i] = f
	}
	return geo.BBox(v[0], v[2], v[1], v[3]), nil
}
