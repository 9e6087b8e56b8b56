package datasource

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"weather-dashboard/models"
)

// APIKeyPlaceholder is the value shipped in sample configs; it selects mock data like an empty key
const APIKeyPlaceholder = "YOUR_API_KEY"

// Geolocation modes
const (
	GeolocationIP     = "ip"
	GeolocationStatic = "static"
	GeolocationNone   = "none"
)

// Storage drivers
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Duration is a time.Duration that reads and writes Go duration strings in JSON
type Duration time.Duration

// UnmarshalJSON accepts "500ms"-style strings or a number of seconds
func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(v * float64(time.Second)))
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

// MarshalJSON writes the duration as a Go duration string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the duration as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the application configuration
type Config struct {
	AppEnv   string `json:"appEnv"`
	LogLevel string `json:"logLevel"`

	// Weather and geocoding provider
	OpenWeatherMap struct {
		APIKey  string   `json:"apiKey"`
		BaseURL string   `json:"baseURL"`
		GeoURL  string   `json:"geoURL"`
		Timeout Duration `json:"timeout"`
	} `json:"openWeatherMap"`

	// Location used when the device position cannot be resolved at startup
	DefaultLocation models.Location `json:"defaultLocation"`

	// Qualifier appended to searches without an explicit region
	RegionQualifier string `json:"regionQualifier"`

	Geolocation struct {
		Mode     string   `json:"mode"`
		Lat      float64  `json:"lat"`
		Lon      float64  `json:"lon"`
		Endpoint string   `json:"endpoint"`
		Timeout  Duration `json:"timeout"`
	} `json:"geolocation"`

	Storage struct {
		Driver string `json:"driver"`
		Path   string `json:"path"`
	} `json:"storage"`

	RateLimit struct {
		Enabled bool    `json:"enabled"`
		RPS     float64 `json:"rps"`
		Burst   int     `json:"burst"`
	} `json:"rateLimit"`

	// Weather snapshot cache lifetime, 0 disables caching
	CacheDuration Duration `json:"cacheDuration"`

	// Automatic refresh period, 0 disables it
	RefreshInterval Duration `json:"refreshInterval"`

	Search struct {
		Debounce  Duration `json:"debounce"`
		MinLength int      `json:"minLength"`
	} `json:"search"`

	MQTT struct {
		Broker   string `json:"broker"`
		Port     int    `json:"port"`
		Topic    string `json:"topic"`
		ClientID string `json:"clientID"`
	} `json:"mqtt"`

	Tracing struct {
		ZipkinURL   string `json:"zipkinURL"`
		ServiceName string `json:"serviceName"`
	} `json:"tracing"`

	HTTP struct {
		Addr string `json:"addr"`
	} `json:"http"`
}

// DefaultConfig creates a default configuration
func DefaultConfig() *Config {
	config := &Config{}
	config.AppEnv = "dev"
	config.LogLevel = "info"

	config.OpenWeatherMap.BaseURL = "https://api.openweathermap.org/data/3.0"
	config.OpenWeatherMap.GeoURL = "https://api.openweathermap.org/geo/1.0"
	config.OpenWeatherMap.Timeout = Duration(10 * time.Second)

	config.DefaultLocation = models.Location{Name: "New Delhi", Country: "IN", Lat: 28.6139, Lon: 77.2090}
	config.RegionQualifier = "IN"

	config.Geolocation.Mode = GeolocationIP
	config.Geolocation.Endpoint = "http://ip-api.com/json/"
	config.Geolocation.Timeout = Duration(10 * time.Second)

	config.Storage.Driver = StorageSQLite
	config.Storage.Path = "dashboard.db"

	// OpenWeatherMap free tier allows 60 calls/minute = 1 call per second
	config.RateLimit.Enabled = true
	config.RateLimit.RPS = 1.0
	config.RateLimit.Burst = 5

	config.Search.Debounce = Duration(500 * time.Millisecond)
	config.Search.MinLength = 3

	config.MQTT.Port = 1883
	config.MQTT.Topic = "weather-dashboard/snapshot"
	config.MQTT.ClientID = "weather-dashboard"

	config.Tracing.ServiceName = "weather-dashboard"

	config.HTTP.Addr = ":8080"
	return config
}

// LoadConfig loads configuration from a JSON file on top of the defaults.
// A missing file is not an error.
func LoadConfig(filename string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.Open(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config, nil
		}
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	return config, nil
}

// ApplyEnv overrides configuration values from environment variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set("OPENWEATHERMAP_API_KEY", &c.OpenWeatherMap.APIKey)
	set("APP_ENV", &c.AppEnv)
	set("LOG_LEVEL", &c.LogLevel)
	set("HTTP_ADDR", &c.HTTP.Addr)
	set("STORAGE_PATH", &c.Storage.Path)
	set("MQTT_BROKER", &c.MQTT.Broker)
	set("ZIPKIN_URL", &c.Tracing.ZipkinURL)
}

// Validate checks the configuration for values the application cannot run with
func (c *Config) Validate() error {
	switch c.AppEnv {
	case "dev", "prod":
	default:
		return fmt.Errorf("invalid appEnv %q (allowed: dev, prod)", c.AppEnv)
	}

	switch c.Geolocation.Mode {
	case GeolocationIP, GeolocationNone:
	case GeolocationStatic:
		pos := models.Location{Lat: c.Geolocation.Lat, Lon: c.Geolocation.Lon}
		if !pos.ValidCoords() {
			return fmt.Errorf("geolocation coordinates out of range: %.4f,%.4f", pos.Lat, pos.Lon)
		}
	default:
		return fmt.Errorf("invalid geolocation mode %q (allowed: ip, static, none)", c.Geolocation.Mode)
	}

	switch c.Storage.Driver {
	case StorageSQLite:
		if c.Storage.Path == "" {
			return errors.New("storage path is required for the sqlite driver")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("invalid storage driver %q (allowed: sqlite, memory)", c.Storage.Driver)
	}

	if !c.DefaultLocation.ValidCoords() {
		return fmt.Errorf("default location coordinates out of range: %.4f,%.4f",
			c.DefaultLocation.Lat, c.DefaultLocation.Lon)
	}

	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit requires positive rps and burst, got %v/%d", c.RateLimit.RPS, c.RateLimit.Burst)
	}

	for name, d := range map[string]Duration{
		"openWeatherMap.timeout": c.OpenWeatherMap.Timeout,
		"geolocation.timeout":    c.Geolocation.Timeout,
		"cacheDuration":          c.CacheDuration,
		"refreshInterval":        c.RefreshInterval,
		"search.debounce":        c.Search.Debounce,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}

	return nil
}

// UseMockData reports whether no usable API key is configured
func (c *Config) UseMockData() bool {
	key := strings.TrimSpace(c.OpenWeatherMap.APIKey)
	return key == "" || key == APIKeyPlaceholder
}
