// Package config handles YAML configuration loading with environment variable expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"
)

// Config is the top-level configuration shared by the catalog server and the browser client.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Cache     CacheConfig     `yaml:"cache"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Client    ClientConfig    `yaml:"client"`
	Tours     []TourEntry     `yaml:"tours"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // file path or ":memory:"
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// CacheConfig holds the server's response cache settings.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	MaxSize int           `yaml:"max_size"`
	TTL     time.Duration `yaml:"ttl"`
}

// CatalogConfig controls the catalog contents and behaviour.
type CatalogConfig struct {
	SeedDemo bool          `yaml:"seed_demo"` // seed the demo tours on first run
	Latency  time.Duration `yaml:"latency"`   // artificial delay per request
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

// ClientConfig holds the tour browser settings.
type ClientConfig struct {
	BaseURL         string        `yaml:"base_url"`
	CacheDSN        string        `yaml:"cache_dsn"` // local tour cache, separate from the catalog database
	Timeout         time.Duration `yaml:"timeout"`
	RevalidateDelay time.Duration `yaml:"revalidate_delay"`
	JanitorInterval time.Duration `yaml:"janitor_interval"`
	PageLimit       int           `yaml:"page_limit"`
	Breaker         BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the client's circuit breaker.
type BreakerConfig struct {
	ErrorThreshold float64       `yaml:"error_threshold"`
	MinSamples     int           `yaml:"min_samples"`
	WindowSeconds  int           `yaml:"window_seconds"`
	OpenTimeout    time.Duration `yaml:"open_timeout"`
}

// TourEntry is a catalog tour seed in the config file.
type TourEntry struct {
	ID             string   `yaml:"id"`
	Title          string   `yaml:"title"`
	Description    string   `yaml:"description"`
	Price          float64  `yaml:"price"`
	Duration       int      `yaml:"duration"`
	Location       string   `yaml:"location"`
	Category       string   `yaml:"category"`
	Images         []string `yaml:"images"`
	Rating         float64  `yaml:"rating"`
	AvailableSlots int      `yaml:"available_slots"`
	Status         string   `yaml:"status"`
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			DSN: "tourbook.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Cache: CacheConfig{
			Enabled: true,
			MaxSize: 1_000,
			TTL:     30 * time.Second,
		},
		Catalog: CatalogConfig{
			SeedDemo: true,
		},
		Client: ClientConfig{
			BaseURL:         "http://localhost:8080",
			CacheDSN:        "tourbrowse.db",
			Timeout:         10 * time.Second,
			RevalidateDelay: 100 * time.Millisecond,
			JanitorInterval: time.Minute,
			PageLimit:       20,
			Breaker: BreakerConfig{
				ErrorThreshold: 0.50,
				MinSamples:     5,
				WindowSeconds:  30,
				OpenTimeout:    15 * time.Second,
			},
		},
	}
}

// Load reads and parses a YAML config file, expanding environment variables.
// An empty path yields Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Client.PageLimit < 1 || c.Client.PageLimit > 50 {
		return fmt.Errorf("config: client.page_limit must be between 1 and 50, got %d", c.Client.PageLimit)
	}
	if c.Telemetry.Tracing.SampleRate < 0 || c.Telemetry.Tracing.SampleRate > 1 {
		return fmt.Errorf("config: telemetry.tracing.sample_rate must be between 0 and 1")
	}
	if c.Client.CacheDSN == "" {
		return fmt.Errorf("config: client.cache_dsn is required")
	}
	seen := make(map[string]bool, len(c.Tours))
	for i, t := range c.Tours {
		if t.ID == "" {
			return fmt.Errorf("config: tours[%d]: id is required", i)
		}
		if seen[t.ID] {
			return fmt.Errorf("config: tours[%d]: duplicate id %q", i, t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}
