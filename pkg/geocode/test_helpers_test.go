package geocode

import (
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// newTestLimiter creates a rate limiter that does not limit.
func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// newRewriteClient creates an HTTP client that sends requests whose URL
// starts with a routed prefix to the matching test server.
func newRewriteClient(routes map[string]string) *http.Client {
	return &http.Client{
		Transport: &rewriteTransport{base: http.DefaultTransport, routes: routes},
	}
}

type rewriteTransport struct {
	base   http.RoundTripper
	routes map[string]string // provider prefix -> test server URL
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	origURL := req.URL.String()
	for prefix, target := range t.routes {
		if !strings.HasPrefix(origURL, prefix) {
			continue
		}
		parsed, err := req.URL.Parse(target + origURL[len(prefix):])
		if err != nil {
			return nil, err
		}
		newReq := req.Clone(req.Context())
		newReq.URL = parsed
		newReq.Host = parsed.Host
		return t.base.RoundTrip(newReq)
	}
	return t.base.RoundTrip(req)
}

// newTestGeocoder builds a geocoder with an unlimited limiter whose provider
// URLs are routed to the given test servers.
func newTestGeocoder(routes map[string]string, providers ...string) *geocoder {
	return &geocoder{
		httpClient:   newRewriteClient(routes),
		limiter:      newTestLimiter(),
		timeout:      DefaultTimeout,
		providers:    providers,
		userAgent:    "shopmap-test/1.0",
		nominatimURL: nominatimSearchURL,
	}
}
