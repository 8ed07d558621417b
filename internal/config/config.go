// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends for produced data files.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// DefaultSites are the simulated site identifiers.
var DefaultSites = []string{"site_alpha", "site_beta", "site_gamma", "site_delta"}

// Config holds all application configuration.
type Config struct {
	Port           string
	PipelinePort   string
	FrontendURL    string
	DBPath         string
	PipelineDBPath string
	Trigger        TriggerConfig
	Scheduler      SchedulerConfig
	Storage        StorageConfig
	Generator      GeneratorConfig
}

// TriggerConfig controls how the dashboard reaches the simulate endpoint.
type TriggerConfig struct {
	APIURL  string
	Path    string
	Timeout time.Duration
}

// SchedulerConfig bounds continuous simulation.
type SchedulerConfig struct {
	Interval  time.Duration
	MaxRuns   int
	MaxWindow time.Duration
	Cooldown  time.Duration
}

// StorageConfig selects where produced files are written.
type StorageConfig struct {
	Backend   string
	Dir       string
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// GeneratorConfig controls the shape of each simulated batch.
type GeneratorConfig struct {
	Sites     []string
	BatchSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		PipelinePort:   getEnv("PIPELINE_PORT", "8000"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		DBPath:         getEnv("DB_PATH", "./data/dashboard.db"),
		PipelineDBPath: getEnv("PIPELINE_DB_PATH", "./data/pipeline.db"),
		Trigger: TriggerConfig{
			APIURL:  strings.TrimRight(getEnv("API_URL", "http://localhost:8000"), "/"),
			Path:    getEnv("TRIGGER_PATH", "/simulatedata"),
			Timeout: getEnvDuration("TRIGGER_TIMEOUT", 30*time.Second),
		},
		Scheduler: SchedulerConfig{
			Interval:  getEnvDuration("SIM_INTERVAL", 2*time.Minute),
			MaxRuns:   getEnvInt("SIM_MAX_RUNS", 3),
			MaxWindow: getEnvDuration("SIM_MAX_WINDOW", 10*time.Minute),
			Cooldown:  getEnvDuration("SIM_COOLDOWN", 10*time.Minute),
		},
		Storage: StorageConfig{
			Backend:   strings.ToLower(getEnv("STORAGE_BACKEND", StorageLocal)),
			Dir:       getEnv("STORAGE_DIR", "./data/files"),
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			Bucket:    getEnv("S3_BUCKET", "renewable-energy-pipeline"),
			Region:    getEnv("S3_REGION", "us-east-1"),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			UseSSL:    getEnvBool("S3_USE_SSL", true),
		},
		Generator: GeneratorConfig{
			Sites:     getEnvList("SITE_IDS", DefaultSites),
			BatchSize: getEnvInt("BATCH_SIZE", 1),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.PipelinePort == "" {
		return fmt.Errorf("PIPELINE_PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.PipelineDBPath == "" {
		return fmt.Errorf("PIPELINE_DB_PATH cannot be empty")
	}
	if c.Trigger.APIURL == "" {
		return fmt.Errorf("API_URL cannot be empty")
	}
	if !strings.HasPrefix(c.Trigger.Path, "/") {
		return fmt.Errorf("TRIGGER_PATH must start with /")
	}
	if c.Trigger.Timeout <= 0 {
		return fmt.Errorf("TRIGGER_TIMEOUT must be > 0")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("SIM_INTERVAL must be > 0")
	}
	if c.Scheduler.MaxRuns < 1 {
		return fmt.Errorf("SIM_MAX_RUNS must be >= 1")
	}
	if c.Scheduler.MaxWindow <= 0 {
		return fmt.Errorf("SIM_MAX_WINDOW must be > 0")
	}
	if c.Scheduler.Cooldown < 0 {
		return fmt.Errorf("SIM_COOLDOWN cannot be negative")
	}
	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.Dir == "" {
			return fmt.Errorf("STORAGE_DIR cannot be empty")
		}
	case StorageS3:
		if c.Storage.Endpoint == "" {
			return fmt.Errorf("S3_ENDPOINT cannot be empty")
		}
		if c.Storage.Bucket == "" {
			return fmt.Errorf("S3_BUCKET cannot be empty")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageLocal, StorageS3, c.Storage.Backend)
	}
	if len(c.Generator.Sites) == 0 {
		return fmt.Errorf("SITE_IDS cannot be empty")
	}
	if c.Generator.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be >= 1")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for browser clients.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return []string{c.FrontendURL}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("90s", "2m") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
