package main

import (
	"github.com/rotisserie/eris"

	"github.com/aea-online/shopmap/internal/config"
	"github.com/aea-online/shopmap/pkg/geocode"
)

// newGeocodeClient builds the provider cascade described by cfg.
func newGeocodeClient(cfg config.GeocodeConfig) (geocode.Client, error) {
	opts := []geocode.Option{
		geocode.WithRateLimit(cfg.RatePerSecond),
		geocode.WithTimeout(cfg.Timeout()),
		geocode.WithGoogleAPIKey(cfg.GoogleKey),
		geocode.WithNominatimURL(cfg.NominatimURL),
	}
	if len(cfg.Providers) > 0 {
		opts = append(opts, geocode.WithProviders(cfg.Providers...))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, geocode.WithUserAgent(cfg.UserAgent))
	}

	client, err := geocode.NewClient(opts...)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build client")
	}
	return client, nil
}
