package provider

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/osmgrid/pkg/config"
	"github.com/NERVsystems/osmgrid/pkg/element"
	"github.com/NERVsystems/osmgrid/pkg/geo"
	"github.com/NERVsystems/osmgrid/pkg/osm"
	"github.com/NERVsystems/osmgrid/pkg/osm/queries"
	"github.com/NERVsystems/osmgrid/pkg/tracing"
)

// Overpass defaults.
const (
	DefaultQueryTimeout = 25 // seconds, sent to the server
	DefaultBatchSize    = 8  // tag filters per request
	DefaultWarnAreaKm2  = 1000.0
	DefaultMaxAreaKm2   = 5000.0
)

// nodeKeys are keys whose features are commonly mapped as single nodes.
var nodeKeys = map[string]bool{"amenity": true, "tourism": true, "power": true}

// relationKeys are keys whose features are commonly mapped as relations.
var relationKeys = map[string]bool{
	"building": true,
	"natural":  true,
	"landuse":  true,
	"leisure":  true,
	"boundary": true,
	"waterway": true,
}

// OverpassProvider fetches elements from an Overpass API endpoint. Queries
// are grouped by feature category and split so that no request carries
// more than the batch size of tag filters. Requests are issued
// sequentially through the shared rate limiter.
type OverpassProvider struct {
	url          string
	queryTimeout int
	batchSize    int
	warnAreaKm2  float64
	maxAreaKm2   float64
	resolver     Resolver
	logger       *slog.Logger
}

// OverpassOption configures an OverpassProvider.
type OverpassOption func(*OverpassProvider)

// WithOverpassURL overrides the interpreter URL.
func WithOverpassURL(u string) OverpassOption {
	return func(p *OverpassProvider) { p.url = u }
}

// WithQueryTimeout sets the server-side query timeout in seconds.
func WithQueryTimeout(seconds int) OverpassOption {
	return func(p *OverpassProvider) {
		if seconds > 0 {
			p.queryTimeout = seconds
		}
	}
}

// WithBatchSize sets the maximum number of tag filters per request.
func WithBatchSize(n int) OverpassOption {
	return func(p *OverpassProvider) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithAreaLimits sets the area above which a warning is logged and the area
// above which requests are refused. A zero max disables the guard.
func WithAreaLimits(warnKm2, maxKm2 float64) OverpassOption {
	return func(p *OverpassProvider) {
		p.warnAreaKm2 = warnKm2
		p.maxAreaKm2 = maxKm2
	}
}

// WithResolver sets the place resolver.
func WithResolver(r Resolver) OverpassOption {
	return func(p *OverpassProvider) { p.resolver = r }
}

// WithOverpassLogger sets the logger.
func WithOverpassLogger(l *slog.Logger) OverpassOption {
	return func(p *OverpassProvider) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewOverpassProvider creates a provider for the public Overpass endpoint
// unless overridden.
func NewOverpassProvider(opts ...OverpassOption) *OverpassProvider {
	p := &OverpassProvider{
		url:          osm.OverpassBaseURL,
		queryTimeout: DefaultQueryTimeout,
		batchSize:    DefaultBatchSize,
		warnAreaKm2:  DefaultWarnAreaKm2,
		maxAreaKm2:   DefaultMaxAreaKm2,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.resolver == nil {
		p.resolver = NewNominatimResolver(WithNominatimLogger(p.logger))
	}
	p.logger = p.logger.With("component", "overpass")
	return p
}

// Name implements Provider.
func (p *OverpassProvider) Name() string { return NameOverpass }

// Capabilities implements Provider.
func (p *OverpassProvider) Capabilities() Capabilities {
	return Capabilities{Network: true, ResolvesPlaces: true, MaxAreaKm2: p.maxAreaKm2}
}

// ResolveRegion implements Provider. Place names go to the resolver.
func (p *OverpassProvider) ResolveRegion(ctx context.Context, region config.Region) (geo.BoundingBox, error) {
	bbox, ok, err := resolveCommon(region)
	if err != nil {
		return geo.BoundingBox{}, err
	}
	if ok {
		return bbox, nil
	}
	return p.resolver.Resolve(ctx, region.Place)
}

// Ping checks the status endpoint next to the interpreter.
func (p *OverpassProvider) Ping(ctx context.Context) error {
	if err := osm.CheckHealth(ctx, osm.ServiceOverpass, osm.OverpassStatusURL(p.url)); err != nil {
		return &Error{Kind: KindNetwork, Provider: NameOverpass, Message: "status check failed", Err: err}
	}
	return nil
}

// batch is one request's worth of tag filters.
type batch struct {
	category string
	queries  []config.TagQuery
	custom   bool
}

// batches groups the feature set's tag queries by category, one batch per
// category plus one for custom queries, dropping queries already emitted
// and splitting every group at the batch size.
func (p *OverpassProvider) batches(fs config.FeatureSet) []batch {
	seen := make(map[config.TagQuery]bool)
	var out []batch
	emit := func(category string, qs []config.TagQuery, custom bool) {
		var pending []config.TagQuery
		for _, q := range qs {
			if seen[q] {
				continue
			}
			seen[q] = true
			pending = append(pending, q)
		}
		for len(pending) > 0 {
			n := min(p.batchSize, len(pending))
			out = append(out, batch{category: category, queries: pending[:n], custom: custom})
			pending = pending[n:]
		}
	}
	for _, f := range fs.Features() {
		emit(f.String(), f.Rules(), false)
	}
	var custom []config.TagQuery
	for _, c := range fs.CustomQueries() {
		custom = append(custom, c.Query)
	}
	emit("custom", custom, true)
	return out
}

// buildQuery renders one batch for bbox.
func (p *OverpassProvider) buildQuery(b batch, bbox geo.BoundingBox) string {
	qb := queries.NewOverpassBuilder().WithTimeout(p.queryTimeout).WithOutput("geom")
	s, w, n, e := bbox.South(), bbox.West(), bbox.North(), bbox.East()
	for _, q := range b.queries {
		f := queries.TagFilter{Key: q.Key, Value: q.Value, HasValue: q.HasValue}
		qb.WithWayInBbox(s, w, n, e, f)
		if b.custom || relationKeys[q.Key] {
			qb.WithRelationInBbox(s, w, n, e, f)
		}
		if b.custom || nodeKeys[q.Key] {
			qb.WithNodeInBbox(s, w, n, e, f)
		}
	}
	return qb.Build()
}

// Fetch implements Provider.
func (p *OverpassProvider) Fetch(ctx context.Context, region config.Region, fs config.FeatureSet) ([]element.Element, error) {
	bbox, err := p.ResolveRegion(ctx, region)
	if err != nil {
		return nil, err
	}

	area := bbox.AreaKm2()
	if p.maxAreaKm2 > 0 && area > p.maxAreaKm2 {
		return nil, &Error{
			Kind:     KindInvalidRegion,
			Provider: NameOverpass,
			Region:   region.Key(),
			Message:  "area too large for the Overpass API",
		}
	}
	if p.warnAreaKm2 > 0 && area > p.warnAreaKm2 {
		p.logger.Warn("large area requested, the query may be slow or fail",
			"region", region.Key(), "area_km2", area)
	}

	batches := p.batches(fs)
	p.logger.Info("fetching features",
		"region", region.Key(),
		"bbox", bbox.String(),
		"features", fs.String(),
		"batches", len(batches))

	seen := make(map[elementKey]int)
	var out []element.Element
	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		els, err := p.fetchBatch(ctx, region.Key(), b, p.buildQuery(b, bbox))
		if err != nil {
			return nil, err
		}
		out = append(out, dedupe(els, seen, i)...)
	}
	p.logger.Info("fetched features", "region", region.Key(), "elements", len(out))
	return out, nil
}

func (p *OverpassProvider) fetchBatch(ctx context.Context, region string, b batch, query string) ([]element.Element, error) {
	ctx, span := tracing.StartSpan(ctx, "overpass.fetch_batch",
		trace.WithAttributes(
			attribute.String(tracing.AttrProviderName, NameOverpass),
			attribute.String(tracing.AttrGridFeatures, b.category),
		),
	)
	defer span.End()

	p.logger.Debug("overpass batch", "category", b.category, "filters", len(b.queries), "query", query)

	body := strings.NewReader("data=" + url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Provider: NameOverpass, Region: region, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := osm.MonitoredDoRequest(ctx, req, osm.ServiceOverpass, "fetch_features")
	if err != nil {
		perr := transportError(NameOverpass, region, err)
		tracing.RecordError(ctx, perr)
		return nil, perr
	}
	defer resp.Body.Close()

	span.SetAttributes(tracing.ServiceAttributes(osm.ServiceOverpass, "fetch_features", p.url, resp.StatusCode)...)

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		perr := StatusError(NameOverpass, region, resp.StatusCode, strings.TrimSpace(string(msg)))
		tracing.RecordError(ctx, perr)
		return nil, perr
	}

	var data osm.OverpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		perr := &Error{Kind: KindParse, Provider: NameOverpass, Region: region, Message: "failed to decode response", Err: err}
		tracing.RecordError(ctx, perr)
		return nil, perr
	}
	if perr := remarkError(region, data.Remark); perr != nil {
		tracing.RecordError(ctx, perr)
		return nil, perr
	}

	els := convertElements(data.Elements)
	span.SetAttributes(attribute.Int(tracing.AttrGridElements, len(els)))
	return els, nil
}

// remarkError maps the runtime errors Overpass reports in the remark field
// of an otherwise successful response.
func remarkError(region, remark string) *Error {
	if remark == "" {
		return nil
	}
	lower := strings.ToLower(remark)
	switch {
	case strings.Contains(lower, "timed out") || strings.Contains(lower, "timeout"):
		return &Error{Kind: KindTimeout, Provider: NameOverpass, Region: region, Message: remark}
	case strings.Contains(lower, "out of memory") || strings.Contains(lower, "memory"):
		return &Error{Kind: KindInvalidRegion, Provider: NameOverpass, Region: region, Message: remark}
	case strings.Contains(lower, "error"):
		return &Error{Kind: KindNetwork, Provider: NameOverpass, Region: region, Message: remark}
	default:
		return nil
	}
}
