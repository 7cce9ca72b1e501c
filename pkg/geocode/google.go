package geocode

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// googleGeocodeResponse is the JSON response from the Google Geocoding API.
type googleGeocodeResponse struct {
	Results      []googleResult `json:"results"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

// geocodeGoogle geocodes a query using the Google Geocoding API.
func (g *geocoder) geocodeGoogle(ctx context.Context, query string) (*Result, error) {
	if g.googleKey == "" {
		return nil, eris.New("geocode: google api key not configured")
	}

	params := url.Values{
		"address": {query},
		"key":     {g.googleKey},
	}
	body, err := g.fetch(ctx, ProviderGoogle, googleGeocodeURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var googleResp googleGeocodeResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}

	switch googleResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return &Result{Matched: false, Source: ProviderGoogle}, nil
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		return nil, &Error{Provider: ProviderGoogle, Kind: ErrorKindQuota, Message: googleResp.Status}
	case "REQUEST_DENIED", "INVALID_REQUEST":
		return nil, &Error{Provider: ProviderGoogle, Kind: ErrorKindInvalidRequest, Message: googleResp.ErrorMessage}
	default:
		return nil, &Error{Provider: ProviderGoogle, Kind: ErrorKindUnknown, Message: googleResp.Status}
	}

	if len(googleResp.Results) == 0 {
		return &Result{Matched: false, Source: ProviderGoogle}, nil
	}

	result := googleResp.Results[0]
	return &Result{
		Latitude:    result.Geometry.Location.Lat,
		Longitude:   result.Geometry.Location.Lng,
		Source:      ProviderGoogle,
		Quality:     googleLocationTypeToQuality(result.Geometry.LocationType),
		DisplayName: result.FormattedAddress,
		Matched:     true,
	}, nil
}

// googleQuality maps Google's location_type to our quality taxonomy.
// APPROXIMATE and any unlisted type fall through to "approximate".
var googleQuality = map[string]string{
	"ROOFTOP":            "rooftop",
	"RANGE_INTERPOLATED": "range",
	"GEOMETRIC_CENTER":   "centroid",
}

func googleLocationTypeToQuality(locType string) string {
	if q, ok := googleQuality[strings.ToUpper(locType)]; ok {
		return q
	}
	return "approximate"
}
