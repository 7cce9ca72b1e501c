// Package resolve turns a roster address into coordinates. It consults the
// geocode cache, then the geocoder with the full address, then with
// "city, state", and finally falls back to the state centroid.
package resolve

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/aea-online/shopmap/internal/centroid"
	"github.com/aea-online/shopmap/internal/geocache"
	"github.com/aea-online/shopmap/internal/model"
	"github.com/aea-online/shopmap/internal/resilience"
	"github.com/aea-online/shopmap/pkg/geocode"
)

// Source records which step produced a Resolution.
type Source string

const (
	SourceCache    Source = "cache"
	SourceFull     Source = "full"
	SourceCoarse   Source = "coarse"
	SourceCentroid Source = "centroid"
)

// Resolution is the outcome of resolving one record.
type Resolution struct {
	Coordinates model.Coordinates
	Source      Source
}

// Stats counts resolver outcomes over a run.
type Stats struct {
	CacheHits         int `json:"cacheHits"`
	NetworkCalls      int `json:"networkCalls"`
	FullMatches       int `json:"fullMatches"`
	CoarseMatches     int `json:"coarseMatches"`
	CentroidFallbacks int `json:"centroidFallbacks"`
	Errors            int `json:"errors"`
	Skipped           int `json:"skipped"` // calls refused by an open breaker
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithNoGeocode skips the cache and the network; every record gets its state
// centroid.
func WithNoGeocode(skip bool) Option {
	return func(r *Resolver) {
		r.noGeocode = skip
	}
}

// WithBreaker guards geocoder calls with b.
func WithBreaker(b *resilience.Breaker) Option {
	return func(r *Resolver) {
		r.breaker = b
	}
}

// WithCentroids replaces the centroid lookup.
func WithCentroids(fn func(state string) model.Coordinates) Option {
	return func(r *Resolver) {
		r.centroid = fn
	}
}

// Resolver resolves records sequentially. It is not safe for concurrent use.
type Resolver struct {
	client    geocode.Client
	cache     *geocache.Cache
	breaker   *resilience.Breaker
	centroid  func(state string) model.Coordinates
	noGeocode bool
	stats     Stats
}

// New returns a Resolver. client and cache may be nil in no-geocode mode.
func New(client geocode.Client, cache *geocache.Cache, opts ...Option) *Resolver {
	r := &Resolver{
		client:   client,
		cache:    cache,
		centroid: centroid.For,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = geocache.New()
	}
	if r.client == nil {
		r.noGeocode = true
	}
	return r
}

// NewBreaker returns a breaker that counts provider failures and request
// timeouts but not cancellation of the run itself.
func NewBreaker(threshold int, reset time.Duration) *resilience.Breaker {
	return resilience.NewBreaker(resilience.Config{
		FailureThreshold: threshold,
		ResetTimeout:     reset,
		ShouldTrip: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
		OnStateChange: func(from, to resilience.State) {
			zap.L().Warn("resolve: geocoder circuit state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// Resolve returns coordinates for raw. It never fails; when every lookup
// misses the state centroid is returned and nothing is cached.
func (r *Resolver) Resolve(ctx context.Context, raw model.RawRecord) Resolution {
	if r.noGeocode {
		return r.fallback(raw.State)
	}

	full := geocache.FullAddress(raw.Address, raw.City, raw.State, raw.Zip)
	key := geocache.Key(full)

	if c, ok := r.cache.Get(key); ok {
		r.stats.CacheHits++
		return Resolution{Coordinates: c, Source: SourceCache}
	}

	if c, ok := r.lookup(ctx, full); ok {
		r.cache.Put(key, c)
		r.stats.FullMatches++
		return Resolution{Coordinates: c, Source: SourceFull}
	}

	coarse := raw.City + ", " + raw.State
	if c, ok := r.lookup(ctx, coarse); ok {
		r.cache.Put(key, c)
		r.stats.CoarseMatches++
		return Resolution{Coordinates: c, Source: SourceCoarse}
	}

	zap.L().Debug("resolve: using state centroid",
		zap.String("address", full),
		zap.String("state", raw.State),
	)
	return r.fallback(raw.State)
}

// Stats returns a snapshot of the counters.
func (r *Resolver) Stats() Stats { return r.stats }

func (r *Resolver) fallback(state string) Resolution {
	r.stats.CentroidFallbacks++
	return Resolution{Coordinates: r.centroid(state), Source: SourceCentroid}
}

// lookup makes at most one geocoder call. The client bounds its own requests;
// the rate-limit wait runs on ctx. Errors and non-finite answers are logged
// and reported as a miss.
func (r *Resolver) lookup(ctx context.Context, query string) (model.Coordinates, bool) {
	if ctx.Err() != nil {
		return model.Coordinates{}, false
	}

	call := func(ctx context.Context) (*geocode.Result, error) {
		r.stats.NetworkCalls++
		return r.client.Geocode(ctx, query)
	}

	var (
		res *geocode.Result
		err error
	)
	if r.breaker != nil {
		res, err = resilience.Call(ctx, r.breaker, call)
	} else {
		res, err = call(ctx)
	}

	switch {
	case errors.Is(err, resilience.ErrOpen):
		r.stats.Skipped++
		return model.Coordinates{}, false
	case err != nil:
		r.stats.Errors++
		zap.L().Warn("resolve: geocode failed",
			zap.String("query", query),
			zap.String("kind", geocode.KindOf(err).String()),
			zap.Bool("rate_limited", geocode.IsRateLimited(err)),
			zap.Error(err),
		)
		return model.Coordinates{}, false
	case res == nil || !res.Matched:
		return model.Coordinates{}, false
	case !finite(res.Latitude) || !finite(res.Longitude):
		zap.L().Warn("resolve: geocoder returned non-finite coordinates", zap.String("query", query))
		return model.Coordinates{}, false
	}
	return model.Coordinates{Lat: res.Latitude, Lng: res.Longitude}, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
