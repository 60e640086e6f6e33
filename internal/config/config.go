package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the vecdesk configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Query     QueryConfig     `yaml:"query"`
	Store     StoreConfig     `yaml:"store"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: determined by env)
	Format string `yaml:"format"` // json or console (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes    int64 `yaml:"max_body_bytes"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	DialTimeoutSec   int      `yaml:"dial_timeout_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider and client settings.
type EmbeddingConfig struct {
	Provider            string      `yaml:"provider"` // label for metrics and logs
	BaseURL             string      `yaml:"base_url"`
	APIKey              string      `yaml:"api_key"`
	Model               string      `yaml:"model"`
	Dimensions          int         `yaml:"dimensions"`
	SendDimensions      bool        `yaml:"send_dimensions"`      // pass dimensions to the provider
	DocumentInstruction string      `yaml:"document_instruction"` // prefix for stored text, empty disables
	QueryInstruction    string      `yaml:"query_instruction"`    // prefix for query text, empty disables
	TimeoutSec          int         `yaml:"timeout_sec"`
	RateLimitRPS        float64     `yaml:"rate_limit_rps"`
	Retry               RetryConfig `yaml:"retry"`
	Cache               CacheConfig `yaml:"cache"`
}

// RetryConfig holds the backoff policy for transient embedding failures.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMS int `yaml:"base_delay_ms"`
	MaxDelayMS  int `yaml:"max_delay_ms"`
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"` // 0 = no expiration
}

// IngestConfig holds bulk ingestion settings.
type IngestConfig struct {
	Concurrency  int `yaml:"concurrency"`
	MaxBatchSize int `yaml:"max_batch_size"`
}

// QueryConfig holds similarity query settings.
type QueryConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`
}

// StoreConfig holds collection store settings.
type StoreConfig struct {
	KeyPrefix       string `yaml:"key_prefix"`
	IdempotentDrop  bool   `yaml:"idempotent_drop"`
	Algorithm       string `yaml:"algorithm"` // HNSW, FLAT
	Distance        string `yaml:"distance"`  // COSINE, L2, IP
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	DefaultPageSize int    `yaml:"default_page_size"`
	MaxPageSize     int    `yaml:"max_page_size"`
	TextField       string `yaml:"text_field"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit YAML path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML, expanding ${VAR} and ${VAR:-default} first.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120 // bulk jobs hold the connection
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 32 << 20
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	c.applyEmbeddingDefaults()

	if c.Ingest.Concurrency <= 0 {
		c.Ingest.Concurrency = 4
	}
	if c.Ingest.MaxBatchSize <= 0 {
		c.Ingest.MaxBatchSize = 1000
	}
	if c.Query.DefaultTopK <= 0 {
		c.Query.DefaultTopK = 10
	}
	if c.Query.MaxTopK <= 0 {
		c.Query.MaxTopK = 100
	}

	if c.Store.KeyPrefix == "" {
		c.Store.KeyPrefix = "vecdesk:"
	}
	if c.Store.Algorithm == "" {
		c.Store.Algorithm = "HNSW"
	}
	if c.Store.Distance == "" {
		c.Store.Distance = "COSINE"
	}
	c.Store.Algorithm = strings.ToUpper(c.Store.Algorithm)
	c.Store.Distance = strings.ToUpper(c.Store.Distance)
	if c.Store.HNSWM <= 0 {
		c.Store.HNSWM = 16
	}
	if c.Store.HNSWEFConstruct <= 0 {
		c.Store.HNSWEFConstruct = 200
	}
	if c.Store.DefaultPageSize <= 0 {
		c.Store.DefaultPageSize = 20
	}
	if c.Store.MaxPageSize <= 0 {
		c.Store.MaxPageSize = 100
	}
	if c.Store.TextField == "" {
		c.Store.TextField = "text"
	}
}

func (c *Config) applyEmbeddingDefaults() {
	e := &c.Embedding
	if e.Provider == "" {
		e.Provider = "ollama"
	}
	if e.BaseURL == "" {
		e.BaseURL = "http://localhost:11434/v1"
	}
	if e.Model == "" {
		e.Model = "nomic-embed-text"
	}
	if e.Dimensions <= 0 {
		e.Dimensions = 768
	}
	if e.TimeoutSec <= 0 {
		e.TimeoutSec = 30
	}
	if e.Retry.MaxAttempts <= 0 {
		e.Retry.MaxAttempts = 3
	}
	if e.Retry.BaseDelayMS <= 0 {
		e.Retry.BaseDelayMS = 200
	}
	if e.Retry.MaxDelayMS <= 0 {
		e.Retry.MaxDelayMS = 2000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be \"redis\" or \"memory\", got %q", c.Database.Driver)
	}
	switch c.Store.Algorithm {
	case "HNSW", "FLAT":
	default:
		return fmt.Errorf("store.algorithm must be \"HNSW\" or \"FLAT\", got %q", c.Store.Algorithm)
	}
	switch c.Store.Distance {
	case "COSINE", "L2", "IP":
	default:
		return fmt.Errorf("store.distance must be COSINE, L2 or IP, got %q", c.Store.Distance)
	}
	if c.Store.DefaultPageSize > c.Store.MaxPageSize {
		return fmt.Errorf("store.default_page_size %d exceeds store.max_page_size %d",
			c.Store.DefaultPageSize, c.Store.MaxPageSize)
	}
	if c.Query.DefaultTopK > c.Query.MaxTopK {
		return fmt.Errorf("query.default_top_k %d exceeds query.max_top_k %d",
			c.Query.DefaultTopK, c.Query.MaxTopK)
	}
	if c.Embedding.RateLimitRPS < 0 {
		return fmt.Errorf("embedding.rate_limit_rps must not be negative")
	}
	return nil
}

// Timeout returns the per-call embedding timeout.
func (e EmbeddingConfig) Timeout() time.Duration { return time.Duration(e.TimeoutSec) * time.Second }

// CacheTTL returns the embedding cache TTL (0 = no expiration).
func (e EmbeddingConfig) CacheTTL() time.Duration { return time.Duration(e.Cache.TTLSec) * time.Second }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
