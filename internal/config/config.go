// Package config loads runtime configuration from the environment, with an
// optional .env file for local development. Every knob has a default that
// reproduces the reference dataset, so a bare `pipeline` invocation is a
// valid deterministic run against the in-memory stores.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration.
type Config struct {
	// Generation.
	Seed           int64
	NumFarms       int
	NumDays        int
	ReadingsPerDay int
	StartDate      string // YYYY-MM-DD, empty = NumDays before today

	// Ingestion.
	BatchSize  int
	Workers    int
	MaxRetries uint64

	// Store endpoints. An empty value selects the in-memory implementation
	// for that store.
	PostgresDSN    string
	CassandraHosts []string
	RedisAddr      string
	Neo4jURI       string
	Neo4jUser      string
	Neo4jPassword  string

	// HTTP.
	HTTPAddr string

	StoreTimeout time.Duration
}

// Load reads configuration from the environment. A missing .env file is not
// an error; malformed values are.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Seed:           42,
		NumFarms:       5,
		NumDays:        30,
		ReadingsPerDay: 6,
		BatchSize:      100,
		Workers:        4,
		MaxRetries:     3,
		HTTPAddr:       ":8080",
		StoreTimeout:   10 * time.Second,
	}

	var err error
	if cfg.Seed, err = getInt64("PASTURE_SEED", cfg.Seed); err != nil {
		return Config{}, err
	}
	if cfg.NumFarms, err = getInt("PASTURE_NUM_FARMS", cfg.NumFarms); err != nil {
		return Config{}, err
	}
	if cfg.NumDays, err = getInt("PASTURE_NUM_DAYS", cfg.NumDays); err != nil {
		return Config{}, err
	}
	if cfg.ReadingsPerDay, err = getInt("PASTURE_READINGS_PER_DAY", cfg.ReadingsPerDay); err != nil {
		return Config{}, err
	}
	if cfg.BatchSize, err = getInt("PASTURE_BATCH_SIZE", cfg.BatchSize); err != nil {
		return Config{}, err
	}
	if cfg.Workers, err = getInt("PASTURE_WORKERS", cfg.Workers); err != nil {
		return Config{}, err
	}
	retries, err := getInt("PASTURE_MAX_RETRIES", int(cfg.MaxRetries))
	if err != nil {
		return Config{}, err
	}
	cfg.MaxRetries = uint64(retries)
	if cfg.StoreTimeout, err = getDuration("PASTURE_STORE_TIMEOUT", cfg.StoreTimeout); err != nil {
		return Config{}, err
	}

	cfg.StartDate = os.Getenv("PASTURE_START_DATE")
	if cfg.StartDate != "" {
		if _, err := time.Parse("2006-01-02", cfg.StartDate); err != nil {
			return Config{}, fmt.Errorf("PASTURE_START_DATE: %w", err)
		}
	}

	cfg.PostgresDSN = os.Getenv("PASTURE_POSTGRES_DSN")
	if hosts := os.Getenv("PASTURE_CASSANDRA_HOSTS"); hosts != "" {
		for _, h := range strings.Split(hosts, ",") {
			if h = strings.TrimSpace(h); h != "" {
				cfg.CassandraHosts = append(cfg.CassandraHosts, h)
			}
		}
	}
	cfg.RedisAddr = os.Getenv("PASTURE_REDIS_ADDR")
	cfg.Neo4jURI = os.Getenv("PASTURE_NEO4J_URI")
	cfg.Neo4jUser = getString("PASTURE_NEO4J_USER", "neo4j")
	cfg.Neo4jPassword = os.Getenv("PASTURE_NEO4J_PASSWORD")
	cfg.HTTPAddr = getString("PASTURE_HTTP_ADDR", cfg.HTTPAddr)

	if cfg.NumFarms <= 0 {
		return Config{}, fmt.Errorf("PASTURE_NUM_FARMS must be positive, got %d", cfg.NumFarms)
	}
	if cfg.NumDays <= 0 || cfg.ReadingsPerDay <= 0 {
		return Config{}, fmt.Errorf("PASTURE_NUM_DAYS and PASTURE_READINGS_PER_DAY must be positive")
	}
	return cfg, nil
}

// Start resolves the configured start of the readings window at midnight UTC.
func (c Config) Start(now time.Time) time.Time {
	if c.StartDate != "" {
		t, _ := time.Parse("2006-01-02", c.StartDate)
		return t
	}
	midnight := now.UTC().Truncate(24 * time.Hour)
	return midnight.AddDate(0, 0, -c.NumDays)
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
