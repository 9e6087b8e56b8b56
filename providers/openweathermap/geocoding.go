package openweathermap

import (
	"context"
	"fmt"
	"strconv"

	"weather-dashboard/datasource"
	"weather-dashboard/models"
)

// geocodingItem is one entry of the geo/1.0 direct and reverse responses
type geocodingItem struct {
	Name       *string           `json:"name"`
	LocalNames map[string]string `json:"local_names"`
	Lat        *float64          `json:"lat"`
	Lon        *float64          `json:"lon"`
	Country    string            `json:"country"`
	State      string            `json:"state"`
}

// Direct forward geocodes a free-text query
func (c *Client) Direct(ctx context.Context, query string, limit int) ([]models.Location, error) {
	var items []geocodingItem
	err := c.get(ctx, "geocode.direct", c.geoURL+"/direct", map[string]string{
		"q":     query,
		"limit": strconv.Itoa(limit),
	}, &items)
	if err != nil {
		return nil, err
	}
	return toLocations(items)
}

// Reverse returns the named places at the given coordinates
func (c *Client) Reverse(ctx context.Context, lat, lon float64, limit int) ([]models.Location, error) {
	var items []geocodingItem
	err := c.get(ctx, "geocode.reverse", c.geoURL+"/reverse", map[string]string{
		"lat":   formatCoord(lat),
		"lon":   formatCoord(lon),
		"limit": strconv.Itoa(limit),
	}, &items)
	if err != nil {
		return nil, err
	}
	return toLocations(items)
}

func toLocations(items []geocodingItem) ([]models.Location, error) {
	out := make([]models.Location, 0, len(items))
	for i, item := range items {
		if item.Name == nil || item.Lat == nil || item.Lon == nil {
			return nil, fmt.Errorf("geocoding result %d: %w: name, lat and lon are required", i, datasource.ErrMalformedResponse)
		}
		out = append(out, models.Location{
			Name:    *item.Name,
			Country: item.Country,
			Lat:     *item.Lat,
			Lon:     *item.Lon,
		})
	}
	return out, nil
}
