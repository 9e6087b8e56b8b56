package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"weather-dashboard/models"
)

// Resolver implements LocationResolver on top of a Geocoder.
//
// Queries without an explicit region (no comma) are first searched with the
// configured region qualifier appended. Only when that yields nothing is the
// bare query searched globally, once.
type Resolver struct {
	geocoder  Geocoder
	qualifier string
	logger    *slog.Logger
}

// NewResolver creates a resolver. An empty qualifier disables region biasing.
func NewResolver(geocoder Geocoder, qualifier string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		geocoder:  geocoder,
		qualifier: strings.TrimSpace(qualifier),
		logger:    logger,
	}
}

// ResolveByCoords reverse geocodes the coordinates and returns the best match
func (r *Resolver) ResolveByCoords(ctx context.Context, lat, lon float64) (models.Location, error) {
	results, err := r.geocoder.Reverse(ctx, lat, lon, 1)
	if err != nil {
		return models.Location{}, fmt.Errorf("reverse geocode %.4f,%.4f: %w", lat, lon, err)
	}
	if len(results) == 0 {
		return models.Location{}, fmt.Errorf("reverse geocode %.4f,%.4f: %w", lat, lon, ErrNotFound)
	}
	return results[0], nil
}

// ResolveByQuery forward geocodes the query, returning at most MaxSearchResults locations
// in provider ranking order
func (r *Resolver) ResolveByQuery(ctx context.Context, query string) ([]models.Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search %q: %w", query, ErrNotFound)
	}

	if strings.Contains(query, ",") || r.qualifier == "" {
		return r.search(ctx, query)
	}

	biased := fmt.Sprintf("%s, %s", query, r.qualifier)
	results, err := r.geocoder.Direct(ctx, biased, MaxSearchResults)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", biased, err)
	}
	if len(results) > 0 {
		return truncate(results), nil
	}

	r.logger.Debug("no region results, searching globally", "query", query, "region", r.qualifier)
	return r.search(ctx, query)
}

func (r *Resolver) search(ctx context.Context, query string) ([]models.Location, error) {
	results, err := r.geocoder.Direct(ctx, query, MaxSearchResults)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("search %q: %w", query, ErrNotFound)
	}
	return truncate(results), nil
}

func truncate(results []models.Location) []models.Location {
	if len(results) > MaxSearchResults {
		return results[:MaxSearchResults]
	}
	return results
}

var _ LocationResolver = (*Resolver)(nil)
