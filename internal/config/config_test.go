package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingRedisAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing redis addrs")
	}
}

func TestValidate_MemoryDriverNeedsNoAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "memory"
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Enums(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"driver", func(c *Config) { c.Database.Driver = "valkey" }, "database.driver"},
		{"algorithm", func(c *Config) { c.Store.Algorithm = "IVF" }, "store.algorithm"},
		{"distance", func(c *Config) { c.Store.Distance = "HAMMING" }, "store.distance"},
		{"page size", func(c *Config) { c.Store.DefaultPageSize = 500 }, "store.default_page_size"},
		{"top k", func(c *Config) { c.Query.DefaultTopK = 500 }, "query.default_top_k"},
		{"rate limit", func(c *Config) { c.Embedding.RateLimitRPS = -1 }, "embedding.rate_limit_rps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Database.Driver != "redis" {
		t.Errorf("expected Driver=redis, got %q", cfg.Database.Driver)
	}
	if cfg.Embedding.Model != "nomic-embed-text" || cfg.Embedding.Dimensions != 768 {
		t.Errorf("unexpected embedding defaults: %q/%d", cfg.Embedding.Model, cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("unexpected base URL %q", cfg.Embedding.BaseURL)
	}
	if cfg.Embedding.DocumentInstruction != "" || cfg.Embedding.QueryInstruction != "" {
		t.Errorf("instructions must be off by default, got %q/%q",
			cfg.Embedding.DocumentInstruction, cfg.Embedding.QueryInstruction)
	}
	if cfg.Embedding.Timeout() != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.Embedding.Timeout())
	}
	if cfg.Embedding.Retry.MaxAttempts != 3 || cfg.Embedding.Retry.BaseDelayMS != 200 || cfg.Embedding.Retry.MaxDelayMS != 2000 {
		t.Errorf("unexpected retry defaults: %+v", cfg.Embedding.Retry)
	}
	if cfg.Ingest.Concurrency != 4 || cfg.Ingest.MaxBatchSize != 1000 {
		t.Errorf("unexpected ingest defaults: %+v", cfg.Ingest)
	}
	if cfg.Query.DefaultTopK != 10 || cfg.Query.MaxTopK != 100 {
		t.Errorf("unexpected query defaults: %+v", cfg.Query)
	}
	if cfg.Store.KeyPrefix != "vecdesk:" {
		t.Errorf("expected KeyPrefix='vecdesk:', got %q", cfg.Store.KeyPrefix)
	}
	if cfg.Store.Algorithm != "HNSW" || cfg.Store.Distance != "COSINE" {
		t.Errorf("unexpected index defaults: %s/%s", cfg.Store.Algorithm, cfg.Store.Distance)
	}
	if cfg.Store.HNSWM != 16 || cfg.Store.HNSWEFConstruct != 200 {
		t.Errorf("unexpected HNSW defaults: %d/%d", cfg.Store.HNSWM, cfg.Store.HNSWEFConstruct)
	}
	if cfg.Store.DefaultPageSize != 20 || cfg.Store.MaxPageSize != 100 {
		t.Errorf("unexpected page defaults: %d/%d", cfg.Store.DefaultPageSize, cfg.Store.MaxPageSize)
	}
	if cfg.Store.IdempotentDrop {
		t.Error("drop must be strict by default")
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Embedding: EmbeddingConfig{DocumentInstruction: "search_document: "},
		Store:     StoreConfig{KeyPrefix: "custom:", HNSWM: 32, Distance: "l2"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Store.HNSWM != 32 {
		t.Errorf("expected HNSWM=32, got %d", cfg.Store.HNSWM)
	}
	if cfg.Store.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Store.KeyPrefix)
	}
	if cfg.Store.Distance != "L2" {
		t.Errorf("expected distance upper-cased to L2, got %q", cfg.Store.Distance)
	}
	if cfg.Embedding.DocumentInstruction != "search_document: " {
		t.Errorf("configured instruction must be kept, got %q", cfg.Embedding.DocumentInstruction)
	}
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("VECDESK_TEST_PORT", "9090")
	data := []byte(`
http:
  port: ${VECDESK_TEST_PORT}
database:
  driver: ${VECDESK_TEST_DRIVER:-memory}
store:
  idempotent_drop: true
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("expected default driver memory, got %q", cfg.Database.Driver)
	}
	if !cfg.Store.IdempotentDrop {
		t.Error("expected idempotent_drop true")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte("http:\n  port: 8081\ndatabase:\n  driver: memory\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 8081 {
		t.Errorf("expected port 8081, got %d", cfg.HTTP.Port)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_LocalConfig(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	cfg, err := Load("local")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Embedding.Model != "nomic-embed-text" {
		t.Errorf("unexpected model %q", cfg.Embedding.Model)
	}
}
