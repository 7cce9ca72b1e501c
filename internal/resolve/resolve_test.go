package resolve

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aea-online/shopmap/internal/centroid"
	"github.com/aea-online/shopmap/internal/geocache"
	"github.com/aea-online/shopmap/internal/model"
	"github.com/aea-online/shopmap/internal/resilience"
	"github.com/aea-online/shopmap/pkg/geocode"
)

// fakeClient answers from a fixed query table and records every call.
type fakeClient struct {
	answers map[string]*geocode.Result
	err     error
	calls   []string
}

func (f *fakeClient) Geocode(_ context.Context, query string) (*geocode.Result, error) {
	f.calls = append(f.calls, query)
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.answers[query]; ok {
		return r, nil
	}
	return &geocode.Result{Matched: false}, nil
}

func match(lat, lng float64) *geocode.Result {
	return &geocode.Result{Latitude: lat, Longitude: lng, Matched: true, Source: geocode.ProviderNominatim}
}

var wichita = model.RawRecord{Address: "1 Airport Rd", City: "Wichita", State: "KS", Zip: "67209"}

const (
	wichitaFull = "1 Airport Rd, Wichita, KS 67209"
	wichitaKey  = "1 airport rd, wichita, ks 67209"
)

func TestResolve_FullMatchIsCached(t *testing.T) {
	client := &fakeClient{answers: map[string]*geocode.Result{wichitaFull: match(37.65, -97.43)}}
	cache := geocache.New()
	r := New(client, cache)

	res := r.Resolve(context.Background(), wichita)
	assert.Equal(t, SourceFull, res.Source)
	assert.Equal(t, model.Coordinates{Lat: 37.65, Lng: -97.43}, res.Coordinates)
	assert.Equal(t, []string{wichitaFull}, client.calls)

	got, ok := cache.Get(wichitaKey)
	require.True(t, ok)
	assert.Equal(t, res.Coordinates, got)
}

func TestResolve_CacheHitMakesNoCalls(t *testing.T) {
	client := &fakeClient{}
	cache := geocache.New()
	cache.Put(wichitaKey, model.Coordinates{Lat: 1.5, Lng: -2.5})
	r := New(client, cache)

	res := r.Resolve(context.Background(), wichita)
	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, model.Coordinates{Lat: 1.5, Lng: -2.5}, res.Coordinates)
	assert.Empty(t, client.calls)
	assert.Equal(t, 1, r.Stats().CacheHits)
}

func TestResolve_CoarseMatchCachedUnderFullKey(t *testing.T) {
	client := &fakeClient{answers: map[string]*geocode.Result{"Wichita, KS": match(37.69, -97.34)}}
	cache := geocache.New()
	r := New(client, cache)

	res := r.Resolve(context.Background(), wichita)
	assert.Equal(t, SourceCoarse, res.Source)
	assert.Equal(t, []string{wichitaFull, "Wichita, KS"}, client.calls)

	got, ok := cache.Get(wichitaKey)
	require.True(t, ok)
	assert.Equal(t, model.Coordinates{Lat: 37.69, Lng: -97.34}, got)
	_, ok = cache.Get("wichita, ks")
	assert.False(t, ok)
}

func TestResolve_CentroidNotCached(t *testing.T) {
	client := &fakeClient{}
	cache := geocache.New()
	r := New(client, cache)

	res := r.Resolve(context.Background(), wichita)
	assert.Equal(t, SourceCentroid, res.Source)
	assert.Equal(t, centroid.For("KS"), res.Coordinates)
	assert.Len(t, client.calls, 2)
	assert.Equal(t, 0, cache.Len())
}

func TestResolve_ErrorsFallBack(t *testing.T) {
	client := &fakeClient{err: &geocode.Error{Provider: "nominatim", Kind: geocode.ErrorKindUnavailable}}
	r := New(client, geocache.New())

	res := r.Resolve(context.Background(), model.RawRecord{City: "Nowhere", State: "ZZ"})
	assert.Equal(t, SourceCentroid, res.Source)
	assert.Equal(t, centroid.Default(), res.Coordinates)

	st := r.Stats()
	assert.Equal(t, 2, st.Errors)
	assert.Equal(t, 2, st.NetworkCalls)
	assert.Equal(t, 1, st.CentroidFallbacks)
}

func TestResolve_NoGeocode(t *testing.T) {
	client := &fakeClient{answers: map[string]*geocode.Result{wichitaFull: match(1, 1)}}
	cache := geocache.New()
	cache.Put(wichitaKey, model.Coordinates{Lat: 9, Lng: 9})
	r := New(client, cache, WithNoGeocode(true))

	res := r.Resolve(context.Background(), wichita)
	assert.Equal(t, SourceCentroid, res.Source)
	assert.Equal(t, centroid.For("KS"), res.Coordinates)
	assert.Empty(t, client.calls)
}

func TestResolve_NilClientIsNoGeocode(t *testing.T) {
	r := New(nil, nil)
	res := r.Resolve(context.Background(), wichita)
	assert.Equal(t, SourceCentroid, res.Source)
}

func TestResolve_NonFiniteIsMiss(t *testing.T) {
	client := &fakeClient{answers: map[string]*geocode.Result{
		wichitaFull:   match(math.NaN(), -97),
		"Wichita, KS": match(37.69, math.Inf(1)),
	}}
	cache := geocache.New()
	r := New(client, cache)

	res := r.Resolve(context.Background(), wichita)
	assert.Equal(t, SourceCentroid, res.Source)
	assert.Equal(t, 0, cache.Len())
}

func TestResolve_RequestTimeoutIsMiss(t *testing.T) {
	client := &fakeClient{err: eris.Wrap(context.DeadlineExceeded, "geocode: nominatim request")}
	r := New(client, geocache.New())

	res := r.Resolve(context.Background(), wichita)
	assert.Equal(t, SourceCentroid, res.Source)
	assert.Equal(t, 2, r.Stats().Errors)
	assert.Len(t, client.calls, 2)
}

func TestResolve_LogsRateLimitedFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	client := &fakeClient{err: &geocode.Error{Provider: geocode.ProviderNominatim, Kind: geocode.ErrorKindRateLimited, StatusCode: 429}}
	r := New(client, geocache.New())
	r.Resolve(context.Background(), wichita)

	entries := logs.FilterMessage("resolve: geocode failed").All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, true, fields["rate_limited"])
	assert.Equal(t, "rate_limited", fields["kind"])
}

func TestResolve_CanceledContextSkipsNetwork(t *testing.T) {
	client := &fakeClient{}
	r := New(client, geocache.New())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.Resolve(ctx, wichita)
	assert.Equal(t, SourceCentroid, res.Source)
	assert.Empty(t, client.calls)
}

func TestResolve_BreakerStopsCalls(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	breaker := NewBreaker(3, time.Hour)
	r := New(client, geocache.New(), WithBreaker(breaker))

	// Two calls per record: the breaker opens during the second record.
	r.Resolve(context.Background(), wichita)
	r.Resolve(context.Background(), wichita)
	assert.Equal(t, resilience.StateOpen, breaker.State())
	assert.Len(t, client.calls, 3)

	res := r.Resolve(context.Background(), wichita)
	assert.Equal(t, SourceCentroid, res.Source)
	assert.Len(t, client.calls, 3, "no calls while open")

	st := r.Stats()
	assert.Equal(t, 3, st.NetworkCalls)
	assert.Equal(t, 3, st.Errors)
	assert.Equal(t, 3, st.Skipped)
}

func TestResolve_NoMatchDoesNotTrip(t *testing.T) {
	client := &fakeClient{}
	breaker := NewBreaker(1, time.Hour)
	r := New(client, geocache.New(), WithBreaker(breaker))

	r.Resolve(context.Background(), wichita)
	r.Resolve(context.Background(), wichita)
	assert.Equal(t, resilience.StateClosed, breaker.State())
	assert.Len(t, client.calls, 4)
}

func TestResolve_CustomCentroids(t *testing.T) {
	want := model.Coordinates{Lat: 10, Lng: 20}
	r := New(nil, nil, WithCentroids(func(string) model.Coordinates { return want }))
	assert.Equal(t, want, r.Resolve(context.Background(), wichita).Coordinates)
}
