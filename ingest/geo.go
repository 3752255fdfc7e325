package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Location is the result of a geolocation lookup. Found is false when
// the lookup was skipped or failed; all other fields are then zero.
type Location struct {
	Country   string
	Region    string
	City      string
	Latitude  float64
	Longitude float64
	Found     bool
}

// Geolocator resolves client IPs against an external ip-api style
// service. Lookups are strictly best-effort: every failure, including
// the bounded timeout, degrades to an empty Location.
type Geolocator struct {
	endpoint string
	client   *http.Client
}

// NewGeolocator creates a Geolocator against endpoint with a bounded
// per-lookup timeout.
func NewGeolocator(endpoint string, timeout time.Duration) *Geolocator {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Geolocator{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type geoResponse struct {
	Status     string  `json:"status"`
	Country    string  `json:"country"`
	RegionName string  `json:"regionName"`
	City       string  `json:"city"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

// Lookup resolves ip to a Location. An empty or invalid IP, a slow or
// failing service, or a non-success payload all yield a zero Location.
func (g *Geolocator) Lookup(ctx context.Context, ip string) Location {
	if ip == "" || g.endpoint == "" {
		return Location{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"/"+ip, nil)
	if err != nil {
		return Location{}
	}

	resp, err := g.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("ip", ip).Msg("geolocation lookup failed")
		return Location{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}
	}

	var geo geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&geo); err != nil {
		return Location{}
	}
	if geo.Status != "success" {
		return Location{}
	}

	return Location{
		Country:   geo.Country,
		Region:    geo.RegionName,
		City:      geo.City,
		Latitude:  geo.Lat,
		Longitude: geo.Lon,
		Found:     true,
	}
}
