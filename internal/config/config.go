package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	GeocoderNominatim = "nominatim"
	GeocoderGoogle    = "google"
)

type AppConfig struct {
	Port     string
	LogLevel slog.Level

	// HTTPTimeout bounds every outbound provider request.
	HTTPTimeout time.Duration

	Geocoder            string
	NominatimURL        string
	NominatimUserAgent  string
	GoogleGeocoderKey   string
	GeocodeConcurrency  int
	OpenMeteoURL        string
	ForecastRetries     int
	ForecastBackoff     time.Duration
	ForecastCacheTTL    time.Duration
	ForecastCacheMaxLen int

	AccuWeatherAPIKey string
	AccuWeatherURL    string

	// Cache warm-up.
	WarmCities   []string
	WarmDays     int
	WarmInterval time.Duration
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:               getenvDefault("PORT", "8080"),
		NominatimURL:       getenvDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org/search"),
		NominatimUserAgent: getenvDefault("NOMINATIM_USER_AGENT", "route-weather/1.0"),
		GoogleGeocoderKey:  os.Getenv("GOOGLE_GEOCODER_API_KEY"),
		OpenMeteoURL:       getenvDefault("OPENMETEO_FORECAST_URL", "https://api.open-meteo.com/v1/forecast"),
		AccuWeatherAPIKey:  os.Getenv("ACCUWEATHER_API_KEY"),
		AccuWeatherURL:     getenvDefault("ACCUWEATHER_URL", "http://dataservice.accuweather.com"),
		WarmCities:         splitPlaces(os.Getenv("WARM_CITIES")),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getenvDefault("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	cfg.Geocoder = strings.ToLower(getenvDefault("GEOCODER", GeocoderNominatim))
	switch cfg.Geocoder {
	case GeocoderNominatim:
	case GeocoderGoogle:
		if cfg.GoogleGeocoderKey == "" {
			return nil, fmt.Errorf("GOOGLE_GEOCODER_API_KEY is required when GEOCODER=%s", GeocoderGoogle)
		}
	default:
		return nil, fmt.Errorf("invalid GEOCODER %q: want %s or %s", cfg.Geocoder, GeocoderNominatim, GeocoderGoogle)
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.ForecastBackoff, err = getenvDuration("FORECAST_BACKOFF", "200ms"); err != nil {
		return nil, err
	}
	if cfg.ForecastCacheTTL, err = getenvDuration("FORECAST_CACHE_TTL", "1h"); err != nil {
		return nil, err
	}
	if cfg.WarmInterval, err = getenvDuration("WARM_INTERVAL", "30m"); err != nil {
		return nil, err
	}

	if cfg.GeocodeConcurrency, err = getenvInt("GEOCODE_CONCURRENCY", 1, 1, 16); err != nil {
		return nil, err
	}
	if cfg.ForecastRetries, err = getenvInt("FORECAST_RETRIES", 5, 0, 20); err != nil {
		return nil, err
	}
	if cfg.ForecastCacheMaxLen, err = getenvInt("FORECAST_CACHE_MAX_ENTRIES", 256, 0, 1<<20); err != nil {
		return nil, err
	}
	if cfg.WarmDays, err = getenvInt("WARM_DAYS", 3, 1, 7); err != nil {
		return nil, err
	}

	return cfg, nil
}

// splitPlaces splits a ';'-separated list. Commas belong to place names
// ("Moscow, Russia") so they cannot be the separator.
func splitPlaces(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ";") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %s", key, d)
	}
	return d, nil
}

func getenvInt(key string, def, lo, hi int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: %d not in [%d, %d]", key, n, lo, hi)
	}
	return n, nil
}
