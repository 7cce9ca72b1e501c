package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
)

const nominatimSearchURL = "https://nominatim.openstreetmap.org/search"

// nominatimPlace is one element of the jsonv2 search response. Coordinates
// arrive as strings.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Category    string `json:"category"`
	Type        string `json:"type"`
	PlaceRank   int    `json:"place_rank"`
}

// geocodeNominatim geocodes a free-text query with the OpenStreetMap
// Nominatim search API, biased to the US and Canada.
func (g *geocoder) geocodeNominatim(ctx context.Context, query string) (*Result, error) {
	params := url.Values{
		"q":            {query},
		"format":       {"jsonv2"},
		"limit":        {"1"},
		"countrycodes": {"us,ca"},
	}
	header := http.Header{
		"User-Agent": {g.userAgent},
		"Accept":     {"application/json"},
	}
	body, err := g.fetch(ctx, ProviderNominatim, g.nominatimURL+"?"+params.Encode(), header)
	if err != nil {
		return nil, err
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}

	if len(places) == 0 {
		return &Result{Matched: false, Source: ProviderNominatim}, nil
	}

	place := places[0]
	lat, err := strconv.ParseFloat(place.Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim parse lat %q", place.Lat)
	}
	lon, err := strconv.ParseFloat(place.Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim parse lon %q", place.Lon)
	}

	return &Result{
		Latitude:    lat,
		Longitude:   lon,
		Source:      ProviderNominatim,
		Quality:     nominatimQuality(place),
		DisplayName: place.DisplayName,
		Matched:     true,
	}, nil
}

// nominatimQuality maps an OSM place to our quality taxonomy. Place ranks
// follow the Nominatim address ranking (30 = house, 26 = street, 16 = city).
func nominatimQuality(p nominatimPlace) string {
	switch {
	case p.Type == "house" || p.Category == "building" || p.PlaceRank >= 30:
		return "rooftop"
	case p.PlaceRank >= 26:
		return "range"
	case p.PlaceRank >= 16:
		return "centroid"
	default:
		return "approximate"
	}
}
