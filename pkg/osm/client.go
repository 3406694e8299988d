// Package osm provides the shared HTTP plumbing for OpenStreetMap services:
// a pooled client, per-service rate limiting, the User-Agent required by
// the OSM usage policies, and monitoring hooks.
package osm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/osmgrid/pkg/tracing"
)

const (
	// DefaultUserAgent is the default User-Agent string
	DefaultUserAgent = "osmgrid/0.1.0"
)

var (
	// Global HTTP client with connection pooling
	httpClient *http.Client

	// Rate limiters for each service
	limiters     map[string]*rate.Limiter
	limitersLock sync.RWMutex

	// User agent string
	userAgent     string
	userAgentLock sync.RWMutex
)

func init() {
	httpClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		// Overpass queries for large regions legitimately run long; the
		// caller's context bounds each request.
		Timeout: 180 * time.Second,
	}

	initRateLimiters()
	SetUserAgent(DefaultUserAgent)
}

// initRateLimiters installs the default of one request per second per
// service, as requested by the public OSM endpoints.
func initRateLimiters() {
	limitersLock.Lock()
	defer limitersLock.Unlock()
	limiters = map[string]*rate.Limiter{
		ServiceNominatim: rate.NewLimiter(rate.Limit(1), 1),
		ServiceOverpass:  rate.NewLimiter(rate.Limit(1), 1),
	}
}

// UpdateRateLimits replaces the limiter of a service.
func UpdateRateLimits(service string, rps float64, burst int) {
	limitersLock.Lock()
	defer limitersLock.Unlock()
	limiters[service] = rate.NewLimiter(rate.Limit(rps), burst)
}

// UpdateNominatimRateLimits updates the Nominatim rate limiter
func UpdateNominatimRateLimits(rps float64, burst int) {
	UpdateRateLimits(ServiceNominatim, rps, burst)
}

// UpdateOverpassRateLimits updates the Overpass rate limiter
func UpdateOverpassRateLimits(rps float64, burst int) {
	UpdateRateLimits(ServiceOverpass, rps, burst)
}

func limiterFor(service string) *rate.Limiter {
	limitersLock.RLock()
	defer limitersLock.RUnlock()
	return limiters[service]
}

// SetUserAgent sets the User-Agent string
func SetUserAgent(ua string) {
	userAgentLock.Lock()
	defer userAgentLock.Unlock()
	userAgent = ua
}

// GetUserAgent returns the current User-Agent string
func GetUserAgent() string {
	userAgentLock.RLock()
	defer userAgentLock.RUnlock()
	return userAgent
}

// waitForRateLimit blocks until the service's limiter admits a request.
// Services without a limiter are not limited.
func waitForRateLimit(ctx context.Context, service string) error {
	limiter := limiterFor(service)
	if limiter == nil {
		return nil
	}
	if limiter.Allow() {
		return nil
	}

	startWait := time.Now()
	tracing.AddEvent(ctx, "rate_limit_wait",
		trace.WithAttributes(
			attribute.String(tracing.AttrRateLimitService, service),
		),
	)

	err := limiter.Wait(ctx)

	tracing.SetAttributes(ctx,
		attribute.String(tracing.AttrRateLimitService, service),
		attribute.Int64(tracing.AttrRateLimitWaitMs, time.Since(startWait).Milliseconds()),
	)
	return err
}

// CheckHealth issues a lightweight GET against url and reports an error
// for transport failures or 5xx responses.
func CheckHealth(ctx context.Context, service, url string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create %s health check request: %w", service, err)
	}

	resp, err := MonitoredDoRequest(ctx, req, service, "health")
	if err != nil {
		return fmt.Errorf("%s health check failed: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%s health check returned status %d", service, resp.StatusCode)
	}
	return nil
}

// CheckNominatimHealth checks if the Nominatim service at baseURL is
// available. An empty baseURL means the public endpoint.
func CheckNominatimHealth(ctx context.Context, baseURL string) error {
	if baseURL == "" {
		baseURL = NominatimBaseURL
	}
	return CheckHealth(ctx, ServiceNominatim, strings.TrimRight(baseURL, "/")+"/status")
}

// OverpassStatusURL derives the status endpoint from an interpreter URL.
func OverpassStatusURL(interpreterURL string) string {
	if base, ok := strings.CutSuffix(interpreterURL, "/interpreter"); ok {
		return base + "/status"
	}
	return interpreterURL
}
