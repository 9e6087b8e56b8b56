package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"weather-dashboard/api"
	"weather-dashboard/cache"
	"weather-dashboard/collector"
	"weather-dashboard/controller"
	"weather-dashboard/datasource"
	"weather-dashboard/geolocation"
	"weather-dashboard/logging"
	"weather-dashboard/prefs"
	"weather-dashboard/providers/mock"
	"weather-dashboard/providers/openweathermap"
	"weather-dashboard/publish"
	"weather-dashboard/search"
	"weather-dashboard/storage"
	"weather-dashboard/telemetry"

	"github.com/joho/godotenv"
)

const appName = "weather-dashboard"

var version = "dev"

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	configFile := flag.String("config", "config.json", "Path to configuration file")
	addr := flag.String("addr", "", "HTTP listen address (overrides configuration)")
	enableRateLimiting := flag.Bool("rate-limit", true, "Enable API rate limiting")
	flag.Parse()

	config, err := datasource.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	config.ApplyEnv(os.LookupEnv)
	if *addr != "" {
		config.HTTP.Addr = *addr
	}
	if !*enableRateLimiting {
		config.RateLimit.Enabled = false
	}
	if err := config.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logging.New(os.Stdout, config.AppEnv, config.LogLevel, version, appName)
	slog.SetDefault(logger)

	if err := run(config, logger); err != nil {
		logger.Error("dashboard stopped", "err", err)
		os.Exit(1)
	}
}

func run(config *datasource.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, config, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("failed to flush traces", "err", err)
		}
	}()

	kv, closeStore, err := openStorage(config)
	if err != nil {
		return err
	}
	defer closeStore()

	geocoder, weather := buildProviders(config, logger)
	if config.RateLimit.Enabled {
		// OpenWeatherMap free tier allows 60 calls/minute = 1 call per second
		geocoder, weather = datasource.NewRateLimitedProvider(geocoder, weather, config.RateLimit.RPS, config.RateLimit.Burst)
		logger.Info("applied rate limiting", "rps", config.RateLimit.RPS, "burst", config.RateLimit.Burst)
	}
	weather = cache.Wrap(weather, config.CacheDuration.Std(), logger)

	resolver := datasource.NewResolver(geocoder, config.RegionQualifier, logger)
	recent := prefs.NewRecentSearches(kv, logger)
	units := prefs.NewUnitPreference(kv, logger)

	ctrl := controller.New(resolver, weather, geolocation.FromConfig(config), controller.Options{
		DefaultLocation: config.DefaultLocation,
		Units:           units,
		Logger:          logger,
	})

	debouncer := search.NewDebouncer(resolver, search.Options{
		Delay:     config.Search.Debounce.Std(),
		MinLength: config.Search.MinLength,
		Logger:    logger,
	})
	defer debouncer.Close()

	if config.MQTT.Broker != "" {
		publisher := publish.New(config, logger)
		defer publisher.Close()
		unsubscribe := ctrl.Subscribe(publisher.HandleStatus)
		defer unsubscribe()

		go func() {
			connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := publisher.Connect(connectCtx); err != nil {
				logger.Warn("mqtt unavailable, snapshots will not be published", "err", err)
			}
		}()
	}

	server := api.NewServer(api.Deps{
		Dashboard: ctrl,
		Resolver:  resolver,
		Search:    debouncer,
		Recent:    recent,
	}, config.HTTP.Addr, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	go func() {
		if err := ctrl.Start(ctx); err != nil && !errors.Is(err, datasource.ErrSuperseded) {
			logger.Warn("startup refresh failed", "err", err)
		}
	}()

	stopRefresh := collector.NewAutoRefresher(ctrl, config.RefreshInterval.Std(), logger).Start(ctx)
	defer stopRefresh()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// buildProviders returns the OpenWeatherMap adapter, or offline mock data when no API key is configured
func buildProviders(config *datasource.Config, logger *slog.Logger) (datasource.Geocoder, datasource.WeatherClient) {
	if config.UseMockData() {
		logger.Warn("no OpenWeatherMap API key configured, serving mock weather data")
		provider := mock.New(time.Now)
		return provider, provider
	}
	client := openweathermap.NewFromConfig(config)
	logger.Info("using weather provider", "provider", client.Name())
	return client, client
}

func openStorage(config *datasource.Config) (storage.KV, func(), error) {
	if config.Storage.Driver == datasource.StorageMemory {
		return storage.NewMemory(), func() {}, nil
	}
	db, err := storage.OpenSQLite(config.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	return db, func() { db.Close() }, nil
}
