package datasource

import (
	"context"

	"weather-dashboard/models"
)

// MaxSearchResults caps forward geocoding results
const MaxSearchResults = 5

// Geocoder is the provider primitive behind location resolution
type Geocoder interface {
	// Direct performs forward geocoding of a free-text query
	Direct(ctx context.Context, query string, limit int) ([]models.Location, error)

	// Reverse returns the places known at the given coordinates, best match first
	Reverse(ctx context.Context, lat, lon float64, limit int) ([]models.Location, error)

	// Name returns the provider's name
	Name() string
}

// LocationResolver turns coordinates or a free-text query into canonical locations
type LocationResolver interface {
	ResolveByCoords(ctx context.Context, lat, lon float64) (models.Location, error)
	ResolveByQuery(ctx context.Context, query string) ([]models.Location, error)
}

// WeatherClient fetches current conditions, forecast and alerts for coordinates
type WeatherClient interface {
	// Fetch returns a snapshot whose Location carries only the coordinates
	Fetch(ctx context.Context, lat, lon float64, units models.Units) (models.WeatherSnapshot, error)

	// Name returns the provider's name
	Name() string
}

// Geolocator reports the position of the device the dashboard runs on
type Geolocator interface {
	CurrentPosition(ctx context.Context) (lat, lon float64, err error)
}
