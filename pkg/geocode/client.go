// Package geocode resolves free-text addresses to coordinates through
// Nominatim (default), the US Census geocoder and Google, behind one
// rate-limited client.
package geocode

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Provider names accepted by WithProviders.
const (
	ProviderNominatim = "nominatim"
	ProviderCensus    = "census"
	ProviderGoogle    = "google"
)

// DefaultInterval is the spacing between outbound requests. Nominatim's usage
// policy allows one request per second.
const DefaultInterval = 1100 * time.Millisecond

// DefaultTimeout bounds one provider request. Time spent waiting on the rate
// limiter is not counted.
const DefaultTimeout = 10 * time.Second

// Client geocodes a single free-text query.
type Client interface {
	// Geocode returns Matched=false with a nil error when the providers
	// answered but found nothing. Transport, HTTP and decoding failures are
	// returned as errors.
	Geocode(ctx context.Context, query string) (*Result, error)
}

// Result holds the geocoding output for a query.
type Result struct {
	Latitude    float64
	Longitude   float64
	Source      string // "nominatim", "census" or "google"
	Quality     string // "rooftop", "range", "centroid", "approximate"
	DisplayName string
	Matched     bool
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithProviders sets the provider cascade, tried in order.
func WithProviders(names ...string) Option {
	return func(g *geocoder) {
		g.providers = names
	}
}

// WithGoogleAPIKey sets the key used by the google provider.
func WithGoogleAPIKey(key string) Option {
	return func(g *geocoder) {
		g.googleKey = key
	}
}

// WithHTTPClient sets a custom HTTP client for every provider.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithUserAgent sets the User-Agent sent to Nominatim, which rejects
// anonymous clients.
func WithUserAgent(ua string) Option {
	return func(g *geocoder) {
		g.userAgent = ua
	}
}

// WithNominatimURL points the nominatim provider at a self-hosted instance.
func WithNominatimURL(u string) Option {
	return func(g *geocoder) {
		if u != "" {
			g.nominatimURL = u
		}
	}
}

// WithRateLimit sets the requests-per-second budget shared by all providers.
// rps <= 0 disables limiting.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		g.limiter = newLimiter(rps)
	}
}

// WithTimeout bounds each provider request once its rate-limit token has been
// granted. d <= 0 keeps DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(g *geocoder) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

type providerFunc func(ctx context.Context, query string) (*Result, error)

type geocoder struct {
	httpClient   *http.Client
	limiter      *rate.Limiter
	timeout      time.Duration
	providers    []string
	googleKey    string
	userAgent    string
	nominatimURL string
}

// NewClient creates a geocoding Client with the given options. Unknown
// provider names are an error; google is skipped when no key is configured.
func NewClient(opts ...Option) (Client, error) {
	g := &geocoder{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		limiter:      rate.NewLimiter(rate.Every(DefaultInterval), 1),
		timeout:      DefaultTimeout,
		providers:    []string{ProviderNominatim},
		userAgent:    "shopmap/1.0",
		nominatimURL: nominatimSearchURL,
	}
	for _, opt := range opts {
		opt(g)
	}

	var active []string
	for _, name := range g.providers {
		switch name {
		case ProviderNominatim, ProviderCensus:
			active = append(active, name)
		case ProviderGoogle:
			if g.googleKey == "" {
				zap.L().Warn("geocode: google provider configured without api key, skipping")
				continue
			}
			active = append(active, name)
		default:
			return nil, eris.Errorf("geocode: unknown provider %q", name)
		}
	}
	if len(active) == 0 {
		return nil, eris.New("geocode: no usable providers configured")
	}
	g.providers = active
	return g, nil
}

func (g *geocoder) provider(name string) providerFunc {
	switch name {
	case ProviderCensus:
		return g.geocodeCensus
	case ProviderGoogle:
		return g.geocodeGoogle
	default:
		return g.geocodeNominatim
	}
}

// fetch waits for a limiter token on ctx, then issues one GET under the
// request timeout and returns the body of a 200 response.
func (g *geocoder) fetch(ctx context.Context, provider, reqURL string, header http.Header) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrapf(err, "geocode: %s rate limit", provider)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: %s build request", provider)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: %s request", provider)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(provider, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: %s read body", provider)
	}
	return body, nil
}

// Geocode tries each provider in order until one matches. It only returns
// an error when every provider failed outright.
func (g *geocoder) Geocode(ctx context.Context, query string) (*Result, error) {
	var lastErr error
	answered := false

	for _, name := range g.providers {
		result, err := g.provider(name)(ctx, query)
		if err != nil {
			zap.L().Debug("geocode: provider failed",
				zap.String("provider", name),
				zap.String("query", query),
				zap.Error(err),
			)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		answered = true
		if result.Matched {
			return result, nil
		}
	}

	if !answered && lastErr != nil {
		return nil, lastErr
	}
	return &Result{Matched: false}, nil
}
