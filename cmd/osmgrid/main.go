package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NERVsystems/osmgrid/pkg/cache"
	"github.com/NERVsystems/osmgrid/pkg/grid"
	"github.com/NERVsystems/osmgrid/pkg/monitoring"
	"github.com/NERVsystems/osmgrid/pkg/osm"
	"github.com/NERVsystems/osmgrid/pkg/pipeline"
	"github.com/NERVsystems/osmgrid/pkg/provider"
	"github.com/NERVsystems/osmgrid/pkg/server"
	"github.com/NERVsystems/osmgrid/pkg/tools"
	"github.com/NERVsystems/osmgrid/pkg/tracing"
	ver "github.com/NERVsystems/osmgrid/pkg/version"
)

// healthCheckInterval is how often external dependencies are probed.
const healthCheckInterval = 30 * time.Second

var (
	showVersionFlag bool
	debug           bool
	userAgent       string

	// Data source flags
	providerName  string
	geojsonPath   string
	overpassURL   string
	nominatimURL  string
	queryTimeout  int
	batchSize     int
	placeCacheTTL time.Duration

	// Pipeline flags
	cacheSize    int
	cacheTTL     time.Duration
	fetchTimeout time.Duration
	workers      int
	tieBreak     = grid.LastWins

	// Monitoring flags
	enableMonitoring bool
	monitoringAddr   string
	parentCheck      time.Duration

	// Rate limits for each service
	nominatimRPS   float64
	nominatimBurst int
	overpassRPS    float64
	overpassBurst  int
)

func init() {
	flag.BoolVar(&showVersionFlag, "version", false, "Display version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.StringVar(&userAgent, "user-agent", osm.DefaultUserAgent, "User-Agent string for OSM API requests")

	flag.StringVar(&providerName, "provider", provider.NameOverpass, "Data provider: overpass, mock or file")
	flag.StringVar(&geojsonPath, "geojson", "", "GeoJSON file served by the file provider")
	flag.StringVar(&overpassURL, "overpass-url", osm.OverpassBaseURL, "Overpass interpreter URL")
	flag.StringVar(&nominatimURL, "nominatim-url", osm.NominatimBaseURL, "Nominatim base URL for place names")
	flag.IntVar(&queryTimeout, "query-timeout", provider.DefaultQueryTimeout, "Overpass server-side query timeout in seconds")
	flag.IntVar(&batchSize, "batch-size", provider.DefaultBatchSize, "Tag filters per Overpass request")
	flag.DurationVar(&placeCacheTTL, "place-cache-ttl", provider.DefaultPlaceCacheTTL, "How long resolved place names are cached")

	flag.IntVar(&cacheSize, "cache-size", cache.DefaultSize, "Number of generated grids kept in memory")
	flag.DurationVar(&cacheTTL, "cache-ttl", cache.DefaultTTL, "How long a generated grid is reused")
	flag.DurationVar(&fetchTimeout, "fetch-timeout", pipeline.DefaultFetchTimeout, "Upper bound for resolving and fetching a region")
	flag.IntVar(&workers, "workers", 1, "Workers for classification and rasterization")
	flag.TextVar(&tieBreak, "tie-break", grid.LastWins, "Rule for equal-priority overlaps: last_wins or first_wins")

	flag.BoolVar(&enableMonitoring, "enable-monitoring", true, "Enable Prometheus metrics and health endpoints")
	flag.StringVar(&monitoringAddr, "monitoring-addr", ":9090", "Monitoring server address")
	flag.DurationVar(&parentCheck, "parent-check", server.DefaultParentCheckInterval, "Exit when the parent process is gone, checked at this interval (0 disables)")

	flag.Float64Var(&nominatimRPS, "nominatim-rps", 1.0, "Nominatim rate limit in requests per second")
	flag.IntVar(&nominatimBurst, "nominatim-burst", 1, "Nominatim rate limit burst size")
	flag.Float64Var(&overpassRPS, "overpass-rps", 1.0, "Overpass rate limit in requests per second")
	flag.IntVar(&overpassBurst, "overpass-burst", 1, "Overpass rate limit burst size")
}

func main() {
	flag.Parse()

	if showVersionFlag {
		fmt.Println(ver.String())
		return
	}

	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("osmgrid failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitTracing(ctx, ver.BuildVersion)
	if err != nil {
		// continue without tracing
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()
		if endpoint := os.Getenv("OTLP_ENDPOINT"); endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", endpoint)
		}
	}

	osm.SetUserAgent(userAgent)
	osm.UpdateNominatimRateLimits(nominatimRPS, nominatimBurst)
	osm.UpdateOverpassRateLimits(overpassRPS, overpassBurst)

	p, err := provider.New(providerName, provider.Settings{
		OverpassURL:   overpassURL,
		NominatimURL:  nominatimURL,
		GeoJSONPath:   geojsonPath,
		QueryTimeout:  queryTimeout,
		BatchSize:     batchSize,
		PlaceCacheTTL: placeCacheTTL,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	logger.Info("starting osmgrid MCP server",
		"version", ver.BuildVersion,
		"debug", debug,
		"provider", p.Name(),
		"user_agent", userAgent,
		"rate_limited_services", osm.Services(),
		"nominatim_rps", nominatimRPS,
		"overpass_rps", overpassRPS,
		"cache_size", cacheSize,
		"cache_ttl", cacheTTL,
		"workers", workers,
		"tie_break", tieBreak,
		"monitoring_enabled", enableMonitoring,
		"monitoring_addr", monitoringAddr)

	if enableMonitoring {
		osm.SetMonitoringHooks(monitoring.OSMHooks())

		healthChecker := monitoring.NewHealthChecker(monitoring.ServiceName, ver.BuildVersion)
		defer healthChecker.Shutdown()

		for _, m := range connectionMonitors(p, healthChecker) {
			m.Start()
			defer m.Stop()
		}

		monitoringServer := &http.Server{
			Addr:              monitoringAddr,
			Handler:           monitoringMux(healthChecker),
			ReadHeaderTimeout: 30 * time.Second,
		}
		go func() {
			logger.Info("starting monitoring server", "addr", monitoringAddr)
			if err := monitoringServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("monitoring server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := monitoringServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown monitoring server", "error", err)
			}
		}()
	}

	grids := cache.New(cacheSize, cacheTTL, logger)
	loader := pipeline.NewLoader(p,
		pipeline.WithCache(grids),
		pipeline.WithFetchTimeout(fetchTimeout),
		pipeline.WithWorkers(workers),
		pipeline.WithTieBreak(tieBreak),
		pipeline.WithLogger(logger),
	)

	s := server.NewServer(tools.NewRegistry(loader, grids, logger), logger,
		server.WithParentMonitor(parentCheck))

	if err := s.RunWithContext(ctx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// connectionMonitors probes the provider and, for the Overpass provider,
// the Nominatim endpoint that resolves place names.
func connectionMonitors(p provider.Provider, hc *monitoring.HealthChecker) []*monitoring.ConnectionMonitor {
	monitors := []*monitoring.ConnectionMonitor{
		monitoring.NewConnectionMonitor(p.Name(), hc, p.Ping, healthCheckInterval),
	}
	if p.Name() == provider.NameOverpass {
		monitors = append(monitors, monitoring.NewConnectionMonitor(osm.ServiceNominatim, hc,
			func(ctx context.Context) error {
				return osm.CheckNominatimHealth(ctx, nominatimURL)
			},
			healthCheckInterval))
	}
	return monitors
}

// monitoringMux serves Prometheus metrics and the health endpoints.
func monitoringMux(hc *monitoring.HealthChecker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", hc.HealthHandler())
	mux.HandleFunc("/ready", hc.ReadinessHandler())
	mux.HandleFunc("/live", hc.LivenessHandler())
	return mux
}
