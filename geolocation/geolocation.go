// Package geolocation provides the position sources used for the startup location.
package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"weather-dashboard/datasource"
	"weather-dashboard/models"

	"github.com/go-resty/resty/v2"
)

// Static reports fixed coordinates
type Static struct {
	Lat, Lon float64
}

// CurrentPosition returns the configured coordinates
func (s Static) CurrentPosition(ctx context.Context) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, fmt.Errorf("%w: %w", datasource.ErrGeolocationUnavailable, err)
	}
	return s.Lat, s.Lon, nil
}

// Unsupported models a host without any position capability
type Unsupported struct{}

// CurrentPosition always fails
func (Unsupported) CurrentPosition(context.Context) (float64, float64, error) {
	return 0, 0, datasource.ErrGeolocationUnavailable
}

// IPLocator approximates the device position from its public IP address.
// It is a single-shot lookup bounded by its own timeout.
type IPLocator struct {
	endpoint string
	timeout  time.Duration
	client   *resty.Client
}

// NewIPLocator creates a locator querying an ip-api.com compatible endpoint
func NewIPLocator(endpoint string, timeout time.Duration) *IPLocator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &IPLocator{
		endpoint: endpoint,
		timeout:  timeout,
		client:   resty.New().SetRetryCount(0),
	}
}

type ipAPIResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

// CurrentPosition looks up the position. Every failure is reported as ErrGeolocationUnavailable.
func (l *IPLocator) CurrentPosition(ctx context.Context) (float64, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	resp, err := l.client.R().
		SetContext(ctx).
		SetQueryParam("fields", "status,message,lat,lon").
		Get(l.endpoint)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", datasource.ErrGeolocationUnavailable, err)
	}
	if !resp.IsSuccess() {
		return 0, 0, fmt.Errorf("%w: status %d", datasource.ErrGeolocationUnavailable, resp.StatusCode())
	}

	var body ipAPIResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return 0, 0, fmt.Errorf("%w: decode: %v", datasource.ErrGeolocationUnavailable, err)
	}
	if body.Status != "success" || body.Lat == nil || body.Lon == nil {
		return 0, 0, fmt.Errorf("%w: lookup failed: %s", datasource.ErrGeolocationUnavailable, body.Message)
	}

	pos := models.Location{Lat: *body.Lat, Lon: *body.Lon}
	if !pos.ValidCoords() {
		return 0, 0, fmt.Errorf("%w: coordinates out of range", datasource.ErrGeolocationUnavailable)
	}
	return pos.Lat, pos.Lon, nil
}

// FromConfig builds the locator selected by the configuration
func FromConfig(cfg *datasource.Config) datasource.Geolocator {
	switch cfg.Geolocation.Mode {
	case datasource.GeolocationStatic:
		return Static{Lat: cfg.Geolocation.Lat, Lon: cfg.Geolocation.Lon}
	case datasource.GeolocationIP:
		return NewIPLocator(cfg.Geolocation.Endpoint, cfg.Geolocation.Timeout.Std())
	default:
		return Unsupported{}
	}
}

var (
	_ datasource.Geolocator = Static{}
	_ datasource.Geolocator = Unsupported{}
	_ datasource.Geolocator = (*IPLocator)(nil)
)
