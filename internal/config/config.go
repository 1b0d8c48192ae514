package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/neexbeast/travel-planner/internal/country"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the server configuration read from the environment.
type Config struct {
	Port             string
	StoreDriver      string
	DatabaseURL      string
	RedisURL         string
	APIToken         string
	CountriesBaseURL string
	FetchTimeout     time.Duration
	MigrationsDir    string
}

// Load reads the configuration using os.Getenv.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the configuration through getenv (for tests).
func LoadFrom(getenv func(string) string) (Config, error) {
	get := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}

	cfg := Config{
		Port:             get("PORT", "8080"),
		StoreDriver:      get("STORE_DRIVER", DriverPostgres),
		DatabaseURL:      getenv("DATABASE_URL"),
		RedisURL:         getenv("REDIS_URL"),
		APIToken:         getenv("API_TOKEN"),
		CountriesBaseURL: get("COUNTRIES_BASE_URL", country.DefaultBaseURL),
		MigrationsDir:    get("MIGRATIONS_DIR", "migrations"),
	}

	timeout, err := time.ParseDuration(get("FETCH_TIMEOUT", country.DefaultFetchTimeout.String()))
	if err != nil {
		return Config{}, fmt.Errorf("parsing FETCH_TIMEOUT: %w", err)
	}
	if timeout <= 0 {
		return Config{}, fmt.Errorf("FETCH_TIMEOUT must be positive, got %s", timeout)
	}
	cfg.FetchTimeout = timeout

	var errs []error
	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver))
	}
	if cfg.APIToken == "" {
		errs = append(errs, errors.New("API_TOKEN is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
