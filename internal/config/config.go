package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/i474232898/openweather-sensor/internal/log"
)

type AppConfig struct {
	// OpenWeatherAPIKey is the provider secret; it is never part of Settings.
	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string

	// InstallationID identifies this installation's device and trigger.
	InstallationID string

	// Settings installed at startup when AutoInstall is set and a location is given.
	Settings    Settings
	AutoInstall bool

	HTTPTimeout    time.Duration // outbound provider calls
	RefreshTimeout time.Duration // one scheduled refresh cycle

	// Device event history retention.
	StoreMaxHistory int           // max number of events per device (0 = unlimited)
	StoreMaxAge     time.Duration // max age of events (0 = unlimited)

	Port  string
	Debug bool
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Infof("config: no .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.OpenWeatherBaseURL = os.Getenv("OPENWEATHER_BASE_URL")

	cfg.InstallationID = getenvDefault("INSTALLATION_ID", uuid.NewString())

	cfg.Settings = Settings{
		Location:         os.Getenv("WEATHER_LOCATION"),
		Units:            getenvDefault("WEATHER_UNITS", "metric"),
		ScheduleInterval: getenvDefault("SCHEDULE_INTERVAL", "15"),
	}
	cfg.AutoInstall = getenvBool("AUTO_INSTALL", true)
	if cfg.AutoInstall && cfg.Settings.Location != "" {
		if err := cfg.Settings.Validate(); err != nil {
			return nil, fmt.Errorf("invalid startup settings: %w", err)
		}
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.RefreshTimeout, err = getenvDuration("REFRESH_TIMEOUT", "30s"); err != nil {
		return nil, err
	}

	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 96) // roughly 24h at 15-minute intervals
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "24h"); err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.Debug = getenvBool("DEBUG", false)

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
