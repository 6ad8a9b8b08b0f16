package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  addr: ":9090"
  read_timeout: 10s
database:
  dsn: ":memory:"
catalog:
  seed_demo: false
  latency: 300ms
client:
  base_url: http://catalog.internal:8080
  revalidate_delay: 250ms
  page_limit: 12
  breaker:
    min_samples: 3
tours:
  - id: mekong-1
    title: Mekong Delta Day Trip
    price: 1200000
    location: Can Tho
    category: Cultural
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Addr != ":9090" || cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Database.DSN != ":memory:" {
		t.Errorf("dsn = %q, want %q", cfg.Database.DSN, ":memory:")
	}
	if cfg.Catalog.SeedDemo || cfg.Catalog.Latency != 300*time.Millisecond {
		t.Errorf("catalog = %+v", cfg.Catalog)
	}
	if cfg.Client.BaseURL != "http://catalog.internal:8080" || cfg.Client.RevalidateDelay != 250*time.Millisecond || cfg.Client.PageLimit != 12 {
		t.Errorf("client = %+v", cfg.Client)
	}
	// Unset breaker fields keep their defaults.
	if cfg.Client.Breaker.MinSamples != 3 || cfg.Client.Breaker.ErrorThreshold != 0.50 {
		t.Errorf("breaker = %+v", cfg.Client.Breaker)
	}
	if len(cfg.Tours) != 1 || cfg.Tours[0].Location != "Can Tho" {
		t.Fatalf("tours = %+v", cfg.Tours)
	}
}

func TestExpandEnv(t *testing.T) {
	// Cannot use t.Parallel() with t.Setenv
	t.Setenv("TOURBOOK_CATALOG_URL", "http://catalog:9000")

	cfg, err := Load(writeConfig(t, "client:\n  base_url: ${TOURBOOK_CATALOG_URL}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Client.BaseURL != "http://catalog:9000" {
		t.Errorf("base_url = %q, want expanded value", cfg.Client.BaseURL)
	}

	if got := string(expandEnv([]byte("dsn: ${TOURBOOK_UNSET_VAR}"))); got != "dsn: ${TOURBOOK_UNSET_VAR}" {
		t.Errorf("unset var expanded to %q", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"", writeConfig(t, "{}")} {
		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Server.Addr != ":8080" {
			t.Errorf("default addr = %q, want %q", cfg.Server.Addr, ":8080")
		}
		if cfg.Database.DSN != "tourbook.db" {
			t.Errorf("default dsn = %q, want %q", cfg.Database.DSN, "tourbook.db")
		}
		if cfg.Client.RevalidateDelay != 100*time.Millisecond || cfg.Client.PageLimit != 20 {
			t.Errorf("default client = %+v", cfg.Client)
		}
		if cfg.Client.CacheDSN != "tourbrowse.db" {
			t.Errorf("default cache dsn = %q", cfg.Client.CacheDSN)
		}
		if !cfg.Catalog.SeedDemo {
			t.Error("demo seeding should default on")
		}
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"page limit", "client:\n  page_limit: 500\n", "page_limit"},
		{"empty cache dsn", "client:\n  cache_dsn: \"\"\n", "cache_dsn"},
		{"sample rate", "telemetry:\n  tracing:\n    sample_rate: 2\n", "sample_rate"},
		{"tour without id", "tours:\n  - title: x\n", "id is required"},
		{"duplicate tour", "tours:\n  - id: a\n  - id: a\n", "duplicate"},
		{"bad yaml", "server: [", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
