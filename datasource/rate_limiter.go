package datasource

import (
	"context"
	"fmt"

	"weather-dashboard/models"

	"golang.org/x/time/rate"
)

// RateLimitedGeocoder wraps a Geocoder with rate limiting
type RateLimitedGeocoder struct {
	geocoder Geocoder
	limiter  *rate.Limiter
	name     string
}

// NewRateLimitedGeocoder creates a new rate limited geocoder
// rps is the maximum requests per second allowed (can be fractional for less than 1 request per second)
// burst is the maximum burst size allowed
func NewRateLimitedGeocoder(geocoder Geocoder, rps float64, burst int) *RateLimitedGeocoder {
	return newRateLimitedGeocoder(geocoder, rate.NewLimiter(rate.Limit(rps), burst))
}

func newRateLimitedGeocoder(geocoder Geocoder, limiter *rate.Limiter) *RateLimitedGeocoder {
	return &RateLimitedGeocoder{
		geocoder: geocoder,
		limiter:  limiter,
		name:     fmt.Sprintf("%s [Rate Limited]", geocoder.Name()),
	}
}

// Direct forward geocodes, respecting rate limits
func (r *RateLimitedGeocoder) Direct(ctx context.Context, query string, limit int) ([]models.Location, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait canceled: %w", err)
	}
	return r.geocoder.Direct(ctx, query, limit)
}

// Reverse reverse geocodes, respecting rate limits
func (r *RateLimitedGeocoder) Reverse(ctx context.Context, lat, lon float64, limit int) ([]models.Location, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait canceled: %w", err)
	}
	return r.geocoder.Reverse(ctx, lat, lon, limit)
}

// Name returns the geocoder name
func (r *RateLimitedGeocoder) Name() string {
	return r.name
}

// RateLimitedWeatherClient wraps a WeatherClient with rate limiting
type RateLimitedWeatherClient struct {
	client  WeatherClient
	limiter *rate.Limiter
	name    string
}

// NewRateLimitedWeatherClient creates a new rate limited weather client
func NewRateLimitedWeatherClient(client WeatherClient, rps float64, burst int) *RateLimitedWeatherClient {
	return newRateLimitedWeatherClient(client, rate.NewLimiter(rate.Limit(rps), burst))
}

func newRateLimitedWeatherClient(client WeatherClient, limiter *rate.Limiter) *RateLimitedWeatherClient {
	return &RateLimitedWeatherClient{
		client:  client,
		limiter: limiter,
		name:    fmt.Sprintf("%s [Rate Limited]", client.Name()),
	}
}

// Fetch fetches a weather snapshot, respecting rate limits
func (r *RateLimitedWeatherClient) Fetch(ctx context.Context, lat, lon float64, units models.Units) (models.WeatherSnapshot, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("rate limit wait canceled: %w", err)
	}
	return r.client.Fetch(ctx, lat, lon, units)
}

// Name returns the client name
func (r *RateLimitedWeatherClient) Name() string {
	return r.name
}

// NewRateLimitedProvider wraps a provider implementing both Geocoder and WeatherClient.
// Both wrappers share one limiter because the provider meters every call made with an API key.
func NewRateLimitedProvider(geocoder Geocoder, client WeatherClient, rps float64, burst int) (*RateLimitedGeocoder, *RateLimitedWeatherClient) {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return newRateLimitedGeocoder(geocoder, limiter), newRateLimitedWeatherClient(client, limiter)
}

// Verify that our rate limited types implement the required interfaces
var (
	_ Geocoder      = (*RateLimitedGeocoder)(nil)
	_ WeatherClient = (*RateLimitedWeatherClient)(nil)
)
