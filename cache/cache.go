package cache

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"weather-dashboard/datasource"
	"weather-dashboard/models"

	gocache "github.com/patrickmn/go-cache"
)

// CachedWeatherClient wraps a WeatherClient and keeps successful snapshots for a fixed duration
type CachedWeatherClient struct {
	source         datasource.WeatherClient
	cache          *gocache.Cache
	logger         *slog.Logger
	mutex          sync.Mutex
	cacheHitCount  int
	cacheMissCount int
}

// NewCachedWeatherClient creates a new cached wrapper around a weather client
func NewCachedWeatherClient(source datasource.WeatherClient, cacheDuration time.Duration, logger *slog.Logger) *CachedWeatherClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedWeatherClient{
		source: source,
		cache:  gocache.New(cacheDuration, 2*cacheDuration),
		logger: logger,
	}
}

// Wrap returns source unchanged when caching is disabled
func Wrap(source datasource.WeatherClient, cacheDuration time.Duration, logger *slog.Logger) datasource.WeatherClient {
	if cacheDuration <= 0 {
		return source
	}
	return NewCachedWeatherClient(source, cacheDuration, logger)
}

// Name returns the name of the underlying client with a [Cached] suffix
func (c *CachedWeatherClient) Name() string {
	return c.source.Name() + " [Cached]"
}

// cacheKey keeps coordinates exact so distinct locations never share an entry
func cacheKey(lat, lon float64, units models.Units) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64) + "," + string(units)
}

// Fetch returns a cached snapshot when one is fresh, otherwise fetches and stores it
func (c *CachedWeatherClient) Fetch(ctx context.Context, lat, lon float64, units models.Units) (models.WeatherSnapshot, error) {
	key := cacheKey(lat, lon, units)

	if cached, found := c.cache.Get(key); found {
		c.mutex.Lock()
		c.cacheHitCount++
		c.mutex.Unlock()

		snap := cached.(models.WeatherSnapshot)
		c.logger.Debug("cache hit", "key", key, "source", c.source.Name(), "age", time.Since(snap.Fetched).Round(time.Second))
		return snap, nil
	}

	c.mutex.Lock()
	c.cacheMissCount++
	c.mutex.Unlock()
	c.logger.Debug("cache miss", "key", key, "source", c.source.Name())

	snap, err := c.source.Fetch(ctx, lat, lon, units)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}

	c.cache.Set(key, snap, gocache.DefaultExpiration)
	return snap, nil
}

// CacheStats returns statistics about cache hits and misses
func (c *CachedWeatherClient) CacheStats() (hits, misses int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.cacheHitCount, c.cacheMissCount
}

// Flush drops every cached snapshot
func (c *CachedWeatherClient) Flush() {
	c.cache.Flush()
}

var _ datasource.WeatherClient = (*CachedWeatherClient)(nil)
