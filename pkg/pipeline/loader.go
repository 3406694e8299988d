package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/NERVsystems/osmgrid/pkg/cache"
	"github.com/NERVsystems/osmgrid/pkg/classify"
	"github.com/NERVsystems/osmgrid/pkg/config"
	"github.com/NERVsystems/osmgrid/pkg/element"
	"github.com/NERVsystems/osmgrid/pkg/grid"
	"github.com/NERVsystems/osmgrid/pkg/monitoring"
	"github.com/NERVsystems/osmgrid/pkg/provider"
	"github.com/NERVsystems/osmgrid/pkg/tracing"
)

// DefaultFetchTimeout bounds region resolution plus the provider fetch.
const DefaultFetchTimeout = 3 * time.Minute

// Outcomes recorded in the pipeline metrics.
const (
	OutcomeReady     = "ready"
	OutcomeCached    = "cached"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Result is a finished load.
type Result struct {
	Grid *grid.TileGrid
	// Config is the requested configuration with its region resolved to a
	// bounding box.
	Config config.Config
	// Fetched is the number of elements returned by the provider, and
	// Classified the number that matched the feature set. Both are zero
	// for cached results.
	Fetched    int
	Classified int
	Cached     bool
	Duration   time.Duration
}

// Loader runs grid loads against one provider. It is safe for concurrent
// use; identical concurrent loads share one run.
type Loader struct {
	provider     provider.Provider
	cache        *cache.GridCache
	fetchTimeout time.Duration
	workers      int
	tieBreak     grid.TieBreak
	logger       *slog.Logger
	group        singleflight.Group
}

// Option configures a Loader.
type Option func(*Loader)

// WithCache serves and stores grids in c.
func WithCache(c *cache.GridCache) Option {
	return func(l *Loader) { l.cache = c }
}

// WithFetchTimeout bounds region resolution and fetching. Zero or less
// disables the bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(l *Loader) { l.fetchTimeout = d }
}

// WithWorkers sets the classification and rasterization parallelism.
// Values below 1 select GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(l *Loader) { l.workers = n }
}

// WithTieBreak sets the equal-priority rule of the generator.
func WithTieBreak(t grid.TieBreak) Option {
	return func(l *Loader) { l.tieBreak = t }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a loader fetching from p.
func NewLoader(p provider.Provider, opts ...Option) *Loader {
	l := &Loader{
		provider:     p,
		fetchTimeout: DefaultFetchTimeout,
		workers:      1,
		tieBreak:     grid.LastWins,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "pipeline", "provider", p.Name())
	return l
}

// Provider returns the provider the loader fetches from.
func (l *Loader) Provider() provider.Provider {
	return l.provider
}

// Load runs cfg to completion. An invalid cfg fails before the provider
// is contacted. When ctx is cancelled between stages Load returns
// ErrCancelled. onProgress may be nil.
//
// A caller whose load is collapsed onto an identical one already running
// receives only the terminal progress.
func (l *Loader) Load(ctx context.Context, cfg config.Config, onProgress ProgressFunc) (*Result, error) {
	report := serialise(onProgress)
	start := time.Now()

	if err := cfg.Validate(); err != nil {
		monitoring.RecordPipelineOutcome(OutcomeFailed)
		monitoring.RecordError("pipeline", "invalid_config")
		report(Progress{Stage: Failed, Err: err})
		return nil, err
	}

	if g, ok := l.cache.Get(cfg); ok {
		l.logger.Debug("grid served from cache", "config", cfg)
		monitoring.RecordPipelineOutcome(OutcomeCached)
		report(Progress{Stage: Ready, Fraction: 1})
		return &Result{Grid: g, Config: cfg, Cached: true, Duration: time.Since(start)}, nil
	}

	key := cfg.Key()
	for {
		ch := l.group.DoChan(key, func() (any, error) {
			return l.run(ctx, cfg, report)
		})

		select {
		case <-ctx.Done():
			monitoring.RecordPipelineOutcome(OutcomeCancelled)
			report(Progress{Stage: Cancelled})
			return nil, ErrCancelled
		case r := <-ch:
			// The run we joined was cancelled by its own caller; start over.
			if r.Shared && errors.Is(r.Err, ErrCancelled) && ctx.Err() == nil {
				continue
			}
			return l.finish(r, start, report)
		}
	}
}

func (l *Loader) finish(r singleflight.Result, start time.Time, report ProgressFunc) (*Result, error) {
	switch {
	case errors.Is(r.Err, ErrCancelled):
		monitoring.RecordPipelineOutcome(OutcomeCancelled)
		report(Progress{Stage: Cancelled})
		return nil, ErrCancelled
	case r.Err != nil:
		monitoring.RecordPipelineOutcome(OutcomeFailed)
		report(Progress{Stage: Failed, Err: r.Err})
		return nil, r.Err
	}

	res := *r.Val.(*Result)
	res.Duration = time.Since(start)
	monitoring.RecordPipelineOutcome(OutcomeReady)
	report(Progress{Stage: Ready, Fraction: 1, Processed: res.Classified, Total: res.Classified})
	return &res, nil
}

// run performs one uncached load. Progress goes to the caller that
// started it.
func (l *Loader) run(ctx context.Context, cfg config.Config, report ProgressFunc) (*Result, error) {
	monitoring.ActiveJobs.Inc()
	defer monitoring.ActiveJobs.Dec()

	ctx, span := tracing.StartSpan(ctx, "pipeline.load")
	defer span.End()
	span.SetAttributes(tracing.GridAttributes(cfg.Region.String(), cfg.GridResolution, cfg.Features.String())...)
	span.SetAttributes(attribute.String(tracing.AttrProviderName, l.provider.Name()))

	logger := l.logger.With("config", cfg)
	logger.Info("loading grid")

	resolved, els, err := l.fetch(ctx, cfg, report)
	if err != nil {
		return nil, l.fail(ctx, logger, Fetching, err)
	}
	if ctx.Err() != nil {
		return nil, l.cancelled(ctx, logger, Classifying)
	}

	classified, err := l.classify(ctx, resolved, els, report)
	if err != nil {
		return nil, l.fail(ctx, logger, Classifying, err)
	}
	if ctx.Err() != nil {
		return nil, l.cancelled(ctx, logger, Rasterizing)
	}

	g, err := l.rasterize(ctx, resolved, classified, report)
	if err != nil {
		return nil, l.fail(ctx, logger, Rasterizing, err)
	}

	l.cache.Put(cfg, g)
	if resolved.Key() != cfg.Key() {
		l.cache.Put(resolved, g)
	}

	meta, diag := g.Metadata(), g.Diagnostics()
	skipped := make(map[string]int, len(diag.SkipReasons)+1)
	for reason, n := range diag.SkipReasons {
		skipped[reason] = n
	}
	if diag.OutsideElements > 0 {
		skipped["outside_region"] = diag.OutsideElements
	}
	monitoring.RecordGrid(meta.ElementsProcessed, meta.CellsClassified, skipped)

	span.SetAttributes(
		attribute.Int(tracing.AttrGridElements, len(els)),
		attribute.Int(tracing.AttrGridCells, meta.CellsClassified),
	)
	span.SetStatus(codes.Ok, "")
	logger.Info("grid ready",
		"fetched", len(els),
		"classified", len(classified),
		"cells", meta.CellsClassified,
		"skipped", diag.SkippedElements)

	return &Result{
		Grid:       g,
		Config:     resolved,
		Fetched:    len(els),
		Classified: len(classified),
	}, nil
}

func (l *Loader) fetch(ctx context.Context, cfg config.Config, report ProgressFunc) (config.Config, []element.Element, error) {
	report(Progress{Stage: Fetching, Fraction: Indeterminate})
	stageStart := time.Now()
	defer func() { monitoring.ObserveStage(Fetching.String(), time.Since(stageStart)) }()

	fctx, span := tracing.StartSpan(ctx, "pipeline.fetch")
	defer span.End()
	if l.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(fctx, l.fetchTimeout)
		defer cancel()
	}

	bbox, err := l.provider.ResolveRegion(fctx, cfg.Region)
	if err != nil {
		return cfg, nil, l.fetchError(ctx, err)
	}
	resolved := cfg.WithRegion(config.BBoxRegion(bbox.South(), bbox.West(), bbox.North(), bbox.East()))
	if err := resolved.Validate(); err != nil {
		return cfg, nil, err
	}

	els, err := l.provider.Fetch(fctx, resolved.Region, resolved.Features)
	monitoring.RecordProviderFetch(l.provider.Name(), fetchStatus(err), time.Since(stageStart))
	if err != nil {
		return cfg, nil, l.fetchError(ctx, err)
	}

	span.SetAttributes(attribute.Int(tracing.AttrGridElements, len(els)))
	report(Progress{Stage: Fetching, Fraction: 1, Processed: len(els), Total: len(els)})
	return resolved, els, nil
}

// fetchError tells a caller cancellation apart from the fetch timeout,
// which surfaces as a provider timeout.
func (l *Loader) fetchError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) && provider.KindOf(err) == 0 {
		return &provider.Error{
			Kind:     provider.KindTimeout,
			Provider: l.provider.Name(),
			Message:  fmt.Sprintf("fetch exceeded %s", l.fetchTimeout),
			Err:      err,
		}
	}
	return err
}

func fetchStatus(err error) string {
	if err == nil {
		return tracing.StatusSuccess
	}
	if k := provider.KindOf(err); k != 0 {
		return k.String()
	}
	if errors.Is(err, context.Canceled) {
		return tracing.StatusCancelled
	}
	return tracing.StatusError
}

func (l *Loader) classify(ctx context.Context, cfg config.Config, els []element.Element, report ProgressFunc) ([]grid.Classified, error) {
	report(Progress{Stage: Classifying, Fraction: fraction(0, len(els)), Total: len(els)})
	stageStart := time.Now()
	defer func() { monitoring.ObserveStage(Classifying.String(), time.Since(stageStart)) }()

	ctx, span := tracing.StartSpan(ctx, "pipeline.classify")
	defer span.End()

	c := classify.New(cfg.Features, l.workers)
	matched, err := c.ClassifyAll(ctx, els, func(done, total int) {
		report(Progress{Stage: Classifying, Fraction: fraction(done, total), Processed: done, Total: total})
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, err
	}

	out := make([]grid.Classified, len(matched))
	for i, m := range matched {
		out[i] = grid.Classified{Element: m.Element, Type: m.Result.Type, Priority: m.Result.Priority}
	}
	span.SetAttributes(attribute.Int("grid.classified", len(out)))
	return out, nil
}

func (l *Loader) rasterize(ctx context.Context, cfg config.Config, features []grid.Classified, report ProgressFunc) (*grid.TileGrid, error) {
	report(Progress{Stage: Rasterizing, Fraction: fraction(0, len(features)), Total: len(features)})
	stageStart := time.Now()
	defer func() { monitoring.ObserveStage(Rasterizing.String(), time.Since(stageStart)) }()

	_, span := tracing.StartSpan(ctx, "pipeline.rasterize")
	defer span.End()

	gen := grid.NewGenerator(
		grid.WithWorkers(l.workers),
		grid.WithTieBreak(l.tieBreak),
		grid.WithLogger(l.logger),
	)
	return gen.GenerateWithProgress(features, cfg, func(done, total int) {
		report(Progress{Stage: Rasterizing, Fraction: fraction(done, total), Processed: done, Total: total})
	})
}

func (l *Loader) fail(ctx context.Context, logger *slog.Logger, stage Stage, err error) error {
	if errors.Is(err, ErrCancelled) {
		return l.cancelled(ctx, logger, stage)
	}
	tracing.RecordError(ctx, err)
	tracing.SetStatus(ctx, codes.Error, err.Error())
	monitoring.RecordError("pipeline", stage.String())

	attrs := []any{"stage", stage.String(), "error", err}
	var perr *provider.Error
	if errors.As(err, &perr) {
		attrs = append(attrs, "kind", perr.Kind.String(), "retryable", perr.Retryable())
	}
	logger.Error("grid load failed", attrs...)
	return err
}

func (l *Loader) cancelled(ctx context.Context, logger *slog.Logger, before Stage) error {
	tracing.SetAttributes(ctx, attribute.String(tracing.AttrGridStage, before.String()))
	tracing.SetStatus(ctx, codes.Error, tracing.StatusCancelled)
	logger.Info("grid load cancelled", "before", before.String())
	return ErrCancelled
}

// serialise makes fn safe to call from several goroutines and drops the
// snapshots that would move the fraction backwards within a stage.
func serialise(fn ProgressFunc) ProgressFunc {
	if fn == nil {
		return func(Progress) {}
	}
	var (
		mu   sync.Mutex
		last Progress
		seen bool
	)
	return func(p Progress) {
		mu.Lock()
		defer mu.Unlock()
		if seen && last.Stage.Terminal() {
			return
		}
		if seen && p.Stage == last.Stage && !p.Stage.Terminal() && p.Fraction < last.Fraction {
			return
		}
		last, seen = p, true
		fn(p)
	}
}
