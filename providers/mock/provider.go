// Package mock serves fixed weather and geocoding data when no API key is configured.
package mock

import (
	"context"
	"time"

	"weather-dashboard/datasource"
	"weather-dashboard/models"
)

// Cities returned by every forward search
var Cities = []models.Location{
	{Name: "New Delhi", Country: "IN", Lat: 28.6139, Lon: 77.2090},
	{Name: "Mumbai", Country: "IN", Lat: 19.0760, Lon: 72.8777},
	{Name: "Bangalore", Country: "IN", Lat: 12.9716, Lon: 77.5946},
	{Name: "Chennai", Country: "IN", Lat: 13.0827, Lon: 80.2707},
	{Name: "Kolkata", Country: "IN", Lat: 22.5726, Lon: 88.3639},
}

// Provider implements datasource.Geocoder and datasource.WeatherClient without network access
type Provider struct {
	now func() time.Time
}

var (
	_ datasource.Geocoder      = (*Provider)(nil)
	_ datasource.WeatherClient = (*Provider)(nil)
)

// New creates a mock provider. A nil clock uses time.Now.
func New(now func() time.Time) *Provider {
	if now == nil {
		now = time.Now
	}
	return &Provider{now: now}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "Mock"
}

// Direct returns the fixed city list regardless of the query
func (p *Provider) Direct(ctx context.Context, query string, limit int) ([]models.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]models.Location, len(Cities))
	copy(out, Cities)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Reverse always resolves to New Delhi
func (p *Provider) Reverse(ctx context.Context, lat, lon float64, limit int) ([]models.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []models.Location{Cities[0]}, nil
}

// Fetch returns a deterministic snapshot anchored at the current time
func (p *Provider) Fetch(ctx context.Context, lat, lon float64, units models.Units) (models.WeatherSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.WeatherSnapshot{}, err
	}

	now := p.now().UTC().Truncate(time.Second)
	conv := converter(units)
	sunny := models.Condition{ID: 800, Main: "Clear", Description: "clear sky", Icon: "01d"}

	snap := models.WeatherSnapshot{
		Location: models.Location{Lat: lat, Lon: lon},
		Units:    units,
		Current: models.CurrentConditions{
			Temp:       conv.temp(32),
			FeelsLike:  conv.temp(34),
			Humidity:   65,
			WindSpeed:  conv.speed(3.5),
			Condition:  sunny,
			Observed:   now,
			Sunrise:    now.Add(-6 * time.Hour),
			Sunset:     now.Add(6 * time.Hour),
			UVI:        8.5,
			Visibility: 8000,
			Pressure:   1008,
		},
		Forecast: make([]models.DailyForecast, 0, models.MaxForecastDays),
		Alerts:   []models.Alert{},
		Fetched:  now,
	}

	days := []struct {
		day, min, max float64
		cond          models.Condition
		pop           float64
	}{
		{33, 26, 35, sunny, 0},
		{32, 27, 34, models.Condition{ID: 801, Main: "Clouds", Description: "few clouds", Icon: "02d"}, 0.1},
		{30, 26, 31, models.Condition{ID: 500, Main: "Rain", Description: "light rain", Icon: "10d"}, 0.6},
		{29, 25, 30, models.Condition{ID: 501, Main: "Rain", Description: "moderate rain", Icon: "10d"}, 0.8},
		{31, 26, 33, models.Condition{ID: 802, Main: "Clouds", Description: "scattered clouds", Icon: "03d"}, 0.2},
	}
	for i, d := range days {
		dt := now.Add(time.Duration(i+1) * 24 * time.Hour)
		snap.Forecast = append(snap.Forecast, models.DailyForecast{
			Time:    dt,
			Sunrise: dt.Add(-6 * time.Hour),
			Sunset:  dt.Add(6 * time.Hour),
			Temp: models.DayTemperatures{
				Day:   conv.temp(d.day),
				Min:   conv.temp(d.min),
				Max:   conv.temp(d.max),
				Night: conv.temp(d.min + 1),
				Eve:   conv.temp(d.day - 2),
				Morn:  conv.temp(d.min),
			},
			FeelsLike: models.DayFeelsLike{
				Day:   conv.temp(d.day + 2),
				Night: conv.temp(d.min + 2),
				Eve:   conv.temp(d.day),
				Morn:  conv.temp(d.min + 1),
			},
			Pressure:   1007,
			Humidity:   60,
			Conditions: []models.Condition{d.cond},
			WindSpeed:  conv.speed(3.2),
			Pop:        d.pop,
		})
	}

	return snap, nil
}

// converter maps the metric fixture values into the requested unit system
type converter models.Units

func (c converter) temp(celsius float64) float64 {
	if models.Units(c) == models.Imperial {
		return celsius*9/5 + 32
	}
	return celsius
}

func (c converter) speed(ms float64) float64 {
	if models.Units(c) == models.Imperial {
		return ms * 2.23694
	}
	return ms
}
