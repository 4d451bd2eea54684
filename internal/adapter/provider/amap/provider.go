// Package amap resolves client IPs and place names to administrative areas
// and fetches live weather through the AMap (Gaode) web service API.
//
// Lookups never fail the caller: any problem is logged and reported as an
// absent (nil) result so fortune generation can continue without context.
package amap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/heartmarshall/nfc-fortune-backend/internal/config"
	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
	"github.com/heartmarshall/nfc-fortune-backend/internal/metrics"
)

const (
	pathIP      = "/v3/ip"
	pathGeocode = "/v3/geocode/geo"
	pathWeather = "/v3/weather/weatherInfo"

	keyPrefixGeocode = "amap:geo:"
	keyPrefixWeather = "amap:weather:"

	maxBodyBytes = 1 << 20
)

// errAborted marks requests the caller gave up on. They say nothing about
// AMap's health and are excluded from the breaker counts.
var errAborted = errors.New("amap: request aborted by caller")

// Cache stores serialized lookup results. Implementations must be safe for
// concurrent use; a miss or an unreachable backend reports false.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

type noCache struct{}

func (noCache) Get(context.Context, string) ([]byte, bool)            { return nil, false }
func (noCache) Set(context.Context, string, []byte, time.Duration) {}

// Provider talks to the AMap REST API.
type Provider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	cache      Cache
	geoTTL     time.Duration
	weatherTTL time.Duration
	log        *slog.Logger
}

// NewProvider creates a Provider from configuration. cache may be nil.
func NewProvider(cfg config.AMapConfig, cache Cache, logger *slog.Logger) *Provider {
	p := newProvider(cfg.BaseURL, cfg.APIKey, cache, logger)
	p.httpClient.Timeout = cfg.Timeout
	p.geoTTL = cfg.GeocodeCacheTTL
	p.weatherTTL = cfg.WeatherCacheTTL
	p.breaker = newBreaker(cfg.BreakerFailures, cfg.BreakerOpenFor, p.log)
	return p
}

// NewProviderWithURL creates a Provider with a custom base URL (for testing).
func NewProviderWithURL(baseURL, apiKey string, cache Cache, logger *slog.Logger) *Provider {
	return newProvider(baseURL, apiKey, cache, logger)
}

func newProvider(baseURL, apiKey string, cache Cache, logger *slog.Logger) *Provider {
	if cache == nil {
		cache = noCache{}
	}
	log := logger.With("adapter", "amap")
	return &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		breaker:    newBreaker(5, 30*time.Second, log),
		cache:      cache,
		geoTTL:     7 * 24 * time.Hour,
		weatherTTL: 30 * time.Minute,
		log:        log,
	}
}

func newBreaker(failures uint32, openFor time.Duration, log *slog.Logger) *gobreaker.CircuitBreaker[[]byte] {
	if failures == 0 {
		failures = 1
	}
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "amap",
		Timeout: openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, errAborted)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}

// LocationByIP resolves a client IP. Empty, malformed, private and loopback
// addresses are not sent: the API would locate the server instead.
func (p *Provider) LocationByIP(ctx context.Context, ip string) *domain.LocationInfo {
	addr, ok := publicAddr(ip)
	if !ok {
		p.log.DebugContext(ctx, "skip ip location", slog.String("ip", ip))
		metrics.ContextLookups.WithLabelValues("ip", "skipped").Inc()
		return nil
	}

	var resp ipResponse
	if err := p.call(ctx, pathIP, url.Values{"ip": {addr.String()}}, &resp); err != nil {
		p.log.WarnContext(ctx, "ip location failed", slog.String("ip", addr.String()), slog.String("error", err.Error()))
		metrics.ContextLookups.WithLabelValues("ip", "error").Inc()
		return nil
	}

	if resp.Adcode == "" {
		metrics.ContextLookups.WithLabelValues("ip", "absent").Inc()
		return nil
	}

	metrics.ContextLookups.WithLabelValues("ip", "ok").Inc()
	return &domain.LocationInfo{
		Province:   string(resp.Province),
		City:       string(resp.City),
		RegionCode: string(resp.Adcode),
	}
}

// LocationByPlace geocodes a free-form place name such as a birth place.
func (p *Provider) LocationByPlace(ctx context.Context, place string) *domain.LocationInfo {
	place = strings.TrimSpace(place)
	if place == "" {
		return nil
	}

	cacheKey := keyPrefixGeocode + place
	var cached domain.LocationInfo
	if p.fromCache(ctx, cacheKey, &cached) {
		metrics.ContextLookups.WithLabelValues("geocode", "cache_hit").Inc()
		return &cached
	}

	var resp geocodeResponse
	if err := p.call(ctx, pathGeocode, url.Values{"address": {place}}, &resp); err != nil {
		p.log.WarnContext(ctx, "geocode failed", slog.String("place", place), slog.String("error", err.Error()))
		metrics.ContextLookups.WithLabelValues("geocode", "error").Inc()
		return nil
	}

	if len(resp.Geocodes) == 0 || resp.Geocodes[0].Adcode == "" {
		metrics.ContextLookups.WithLabelValues("geocode", "absent").Inc()
		return nil
	}

	g := resp.Geocodes[0]
	loc := &domain.LocationInfo{
		Province:   string(g.Province),
		City:       string(g.City),
		RegionCode: string(g.Adcode),
	}
	// Municipalities report no city.
	if loc.City == "" {
		loc.City = loc.Province
	}

	p.toCache(ctx, cacheKey, loc, p.geoTTL)
	metrics.ContextLookups.WithLabelValues("geocode", "ok").Inc()
	return loc
}

// Weather returns the live observation for a region code.
func (p *Provider) Weather(ctx context.Context, regionCode string) *domain.WeatherSnapshot {
	if regionCode == "" {
		return nil
	}

	cacheKey := keyPrefixWeather + regionCode
	var cached domain.WeatherSnapshot
	if p.fromCache(ctx, cacheKey, &cached) {
		metrics.ContextLookups.WithLabelValues("weather", "cache_hit").Inc()
		return &cached
	}

	var resp weatherResponse
	params := url.Values{"city": {regionCode}, "extensions": {"base"}}
	if err := p.call(ctx, pathWeather, params, &resp); err != nil {
		p.log.WarnContext(ctx, "weather lookup failed", slog.String("adcode", regionCode), slog.String("error", err.Error()))
		metrics.ContextLookups.WithLabelValues("weather", "error").Inc()
		return nil
	}

	if len(resp.Lives) == 0 {
		metrics.ContextLookups.WithLabelValues("weather", "absent").Inc()
		return nil
	}

	l := resp.Lives[0]
	w := &domain.WeatherSnapshot{
		Condition:       string(l.Weather),
		TemperatureC:    string(l.Temperature),
		WindDirection:   string(l.WindDirection),
		WindPower:       string(l.WindPower),
		HumidityPercent: string(l.Humidity),
		ReportTime:      string(l.ReportTime),
	}

	p.toCache(ctx, cacheKey, w, p.weatherTTL)
	metrics.ContextLookups.WithLabelValues("weather", "ok").Inc()
	return w
}

// call performs a GET through the circuit breaker and decodes the body into
// out. Only transport failures and non-200 responses count against the
// breaker; an API-level status != "1" is returned as an error afterwards.
func (p *Provider) call(ctx context.Context, path string, params url.Values, out apiResponse) error {
	params.Set("key", p.apiKey)
	reqURL := p.baseURL + path + "?" + params.Encode()

	body, err := p.breaker.Execute(func() ([]byte, error) {
		return p.get(ctx, reqURL)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("amap: %s: %w", path, err)
		}
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("amap: %s: decode json: %w", path, err)
	}
	if !out.ok() {
		return fmt.Errorf("amap: %s: api status not ok: %s", path, out.info())
	}
	return nil
}

func (p *Provider) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("amap: create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", errAborted, ctxErr)
		}
		return nil, fmt.Errorf("amap: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("amap: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("amap: read body: %w", err)
	}
	return body, nil
}

func (p *Provider) fromCache(ctx context.Context, key string, dst any) bool {
	raw, ok := p.cache.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		p.log.WarnContext(ctx, "discard corrupt cache entry", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return true
}

func (p *Provider) toCache(ctx context.Context, key string, v any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	p.cache.Set(ctx, key, raw, ttl)
}

// publicAddr normalizes ip (IPv4-mapped IPv6 becomes IPv4) and reports
// whether it is worth sending to the API.
func publicAddr(ip string) (netip.Addr, bool) {
	ip = strings.TrimSpace(ip)
	ip = strings.TrimPrefix(ip, "::ffff:")
	if ip == "" {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return netip.Addr{}, false
	}
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() || addr.IsLinkLocalUnicast() {
		return netip.Addr{}, false
	}
	return addr, true
}
