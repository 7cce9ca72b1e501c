// Package pipeline converts a member roster into the geocoded shop document
// consumed by the map.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aea-online/shopmap/internal/export"
	"github.com/aea-online/shopmap/internal/geocache"
	"github.com/aea-online/shopmap/internal/model"
	"github.com/aea-online/shopmap/internal/normalize"
	"github.com/aea-online/shopmap/internal/resilience"
	"github.com/aea-online/shopmap/internal/resolve"
	"github.com/aea-online/shopmap/internal/roster"
	"github.com/aea-online/shopmap/pkg/geocode"
)

// Options configures a single Run.
type Options struct {
	InputPath   string
	OutputPath  string
	CachePath   string
	GeoJSONPath string // empty disables the GeoJSON export

	// NoGeocode skips the cache and the network; every shop gets its state
	// centroid and the cache file is left untouched.
	NoGeocode bool

	Client  geocode.Client
	Breaker *resilience.Breaker

	// Now stamps lastUpdated. Defaults to time.Now.
	Now func() time.Time

	// Progress reports per-row progress. Nil picks a bar on a terminal and
	// periodic log lines otherwise.
	Progress Progress
}

// Summary describes a completed run.
type Summary struct {
	RunID      string
	Metadata   model.Metadata
	Stats      resolve.Stats
	CacheSize  int
	CacheSaved bool
	Duration   time.Duration
}

// Run reads the roster, normalizes and resolves every row in order, then
// writes the output document. A missing roster fails before any row is
// processed. Cancellation aborts before the output is written.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID))

	if opts.Now == nil {
		opts.Now = time.Now
	}
	if !opts.NoGeocode && opts.Client == nil {
		return nil, eris.New("pipeline: geocoding enabled but no client configured")
	}

	raws, err := roster.Load(opts.InputPath)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load roster")
	}
	log.Info("pipeline: loaded roster",
		zap.String("input", opts.InputPath),
		zap.Int("records", len(raws)),
		zap.Bool("no_geocode", opts.NoGeocode),
	)

	var cache *geocache.Cache
	if !opts.NoGeocode {
		cache, err = geocache.Load(opts.CachePath)
		if err != nil {
			log.Warn("pipeline: could not load geocode cache, starting empty",
				zap.String("cache", opts.CachePath),
				zap.Error(err),
			)
		}
		log.Info("pipeline: geocode cache loaded", zap.Int("entries", cache.Len()))
	} else {
		log.Info("pipeline: skipping geocoding, using state centroids")
	}

	resolver := resolve.New(opts.Client, cache,
		resolve.WithNoGeocode(opts.NoGeocode),
		resolve.WithBreaker(opts.Breaker),
	)

	progress := opts.Progress
	if progress == nil {
		progress = newProgress(len(raws), log)
	}

	shops := make([]model.ShopRecord, 0, len(raws))
	for i, raw := range raws {
		if err := ctx.Err(); err != nil {
			progress.Done()
			return nil, eris.Wrapf(err, "pipeline: canceled at record %d of %d", i+1, len(raws))
		}

		shop := normalize.Record(raw)
		res := resolver.Resolve(ctx, raw)
		shop.ID = i + 1
		shop.Lat = res.Coordinates.Lat
		shop.Lng = res.Coordinates.Lng
		shops = append(shops, shop)

		progress.Step(i+1, len(raws))
	}
	progress.Done()

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: canceled before writing output")
	}

	doc := model.Document{
		Shops:    shops,
		Metadata: model.Summarize(shops, opts.Now()),
	}
	if err := export.WriteJSON(opts.OutputPath, doc); err != nil {
		return nil, eris.Wrap(err, "pipeline: write output")
	}
	log.Info("pipeline: wrote output", zap.String("output", opts.OutputPath))

	summary := &Summary{
		RunID:    runID,
		Metadata: doc.Metadata,
		Stats:    resolver.Stats(),
	}

	// Cache first: a failed GeoJSON export must not lose this run's lookups.
	if !opts.NoGeocode {
		summary.CacheSize = cache.Len()
		if err := cache.Save(opts.CachePath); err != nil {
			log.Warn("pipeline: could not save geocode cache", zap.String("cache", opts.CachePath), zap.Error(err))
		} else {
			summary.CacheSaved = true
		}
	}

	if opts.GeoJSONPath != "" {
		if err := export.WriteGeoJSON(opts.GeoJSONPath, shops); err != nil {
			return nil, eris.Wrap(err, "pipeline: write geojson")
		}
		log.Info("pipeline: wrote geojson", zap.String("geojson", opts.GeoJSONPath))
	}

	summary.Duration = time.Since(start)
	logSummary(log, summary)
	return summary, nil
}

func logSummary(log *zap.Logger, s *Summary) {
	log.Info("pipeline: complete",
		zap.Int("total_shops", s.Metadata.TotalShops),
		zap.Int("unique_states", s.Metadata.UniqueStates),
		zap.Int("hiring", s.Metadata.HiringCount),
		zap.Int("total_openings", s.Metadata.TotalOpenings),
		zap.Int("cache_hits", s.Stats.CacheHits),
		zap.Int("network_calls", s.Stats.NetworkCalls),
		zap.Int("full_matches", s.Stats.FullMatches),
		zap.Int("coarse_matches", s.Stats.CoarseMatches),
		zap.Int("centroid_fallbacks", s.Stats.CentroidFallbacks),
		zap.Int("geocode_errors", s.Stats.Errors),
		zap.Int("breaker_skipped", s.Stats.Skipped),
		zap.Int("cache_entries", s.CacheSize),
		zap.Duration("duration", s.Duration),
	)
}
