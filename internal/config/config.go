// Package config provides centralized configuration loading for mpsim. It
// reads configuration from environment variables with sensible defaults
// and validation, grouped by domain (runtime, observability, transport,
// cache, runner) — the same environment-variable-with-fallback, validate-
// once-at-startup shape the teacher repo uses for its own (product-
// specific) settings.
//
// Environment variable naming convention:
//   - MPSIM_* prefix for every setting this module owns.
//
// Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatalf("configuration error: %v", err)
//	}
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// Environment Constants
// =============================================================================

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	defaultEnv             = EnvDevelopment
	defaultMaxConcurrency  = 4
	defaultOTLPEndpoint    = "localhost:4318"
	defaultRedisHost       = "localhost"
	defaultRedisPort       = 6379
	defaultNATSURL         = "nats://localhost:4222"
	defaultNATSSubject     = "mpsim.worker"
	defaultManifestTTL     = 24 * time.Hour
	defaultCacheTTL        = 10 * time.Minute
	defaultShutdownTimeout = 30 * time.Second
)

// =============================================================================
// Environment Variable Keys
// =============================================================================

const (
	envAppEnv = "MPSIM_APP_ENV"

	// Runner
	envRunnerMaxConcurrency = "MPSIM_RUNNER_MAX_CONCURRENCY"
	envRunnerShutdownWait   = "MPSIM_RUNNER_SHUTDOWN_TIMEOUT"

	// Observability
	envOTLPEndpoint    = "MPSIM_OTLP_ENDPOINT"
	envServiceName     = "MPSIM_SERVICE_NAME"
	envEnableMetrics   = "MPSIM_ENABLE_METRICS"
	envEnableTracing   = "MPSIM_ENABLE_TRACING"
	envLogFormat       = "MPSIM_LOG_FORMAT"
	envLogLevel        = "MPSIM_LOG_LEVEL"

	// Transport
	envNATSURL         = "MPSIM_NATS_URL"
	envNATSSubject     = "MPSIM_NATS_SUBJECT"
	envManifestSecret  = "MPSIM_MANIFEST_SECRET"
	envWorkerID        = "MPSIM_WORKER_ID"

	// Cache
	envCacheEnabled  = "MPSIM_CACHE_ENABLED"
	envRedisHost     = "MPSIM_REDIS_HOST"
	envRedisPort     = "MPSIM_REDIS_PORT"
	envRedisDB       = "MPSIM_REDIS_DB"
	envRedisPassword = "MPSIM_REDIS_PASSWORD"
	envCacheTTL      = "MPSIM_CACHE_TTL"
)

// =============================================================================
// Configuration Structs
// =============================================================================

// Config holds all application configuration, grouped by domain.
type Config struct {
	Env           string
	Runner        RunnerConfig
	Observability ObservabilityConfig
	Transport     TransportConfig
	Cache         CacheConfig
}

// RunnerConfig configures the Runner's worker pool.
type RunnerConfig struct {
	// MaxConcurrency bounds how many (scenario, trial) engines run at once.
	MaxConcurrency int `json:"max_concurrency"`

	// ShutdownTimeout bounds how long a worker waits for in-flight engines
	// to finish before the process exits.
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// ObservabilityConfig configures logging, metrics, and tracing.
type ObservabilityConfig struct {
	ServiceName   string `json:"service_name"`
	OTLPEndpoint  string `json:"otlp_endpoint"`
	EnableMetrics bool   `json:"enable_metrics"`
	EnableTracing bool   `json:"enable_tracing"`
	LogFormat     string `json:"log_format"` // "json" or "text"
	LogLevel      string `json:"log_level"`  // "debug", "info", "warn", "error"
}

// TransportConfig configures cmd/mpsim-worker's NATS transport and result
// manifest signing.
type TransportConfig struct {
	NATSURL        string `json:"nats_url"`
	NATSSubject    string `json:"nats_subject"`
	WorkerID       string `json:"worker_id"`
	ManifestSecret string `json:"-"` // excluded from JSON

	// HasManifestSecret reports whether result manifests can be signed.
	// Signing is optional: a worker without a secret still serves
	// requests, it just cannot produce a provenance-checked manifest.
	HasManifestSecret bool `json:"has_manifest_secret"`
}

// CacheConfig configures the optional Redis-backed conversion cache.
type CacheConfig struct {
	Enabled  bool          `json:"enabled"`
	Host     string        `json:"host"`
	Port     int           `json:"port"`
	DB       int           `json:"db"`
	Password string        `json:"-"` // excluded from JSON
	TTL      time.Duration `json:"ttl"`
}

// =============================================================================
// Configuration Loading
// =============================================================================

// Load reads configuration from environment variables and returns a
// validated Config.
func Load() (Config, error) {
	cfg := Config{
		Env:           normalizeEnv(os.Getenv(envAppEnv)),
		Runner:        loadRunnerConfig(),
		Observability: loadObservabilityConfig(),
		Transport:     loadTransportConfig(),
		Cache:         loadCacheConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MustLoad is like Load but panics on error. Use only in main().
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("config: failed to load: %v", err))
	}
	return cfg
}

// =============================================================================
// Section Loaders
// =============================================================================

func loadRunnerConfig() RunnerConfig {
	return RunnerConfig{
		MaxConcurrency:  getIntEnv(envRunnerMaxConcurrency, defaultMaxConcurrency),
		ShutdownTimeout: getDurationEnv(envRunnerShutdownWait, defaultShutdownTimeout),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	logFormat := strings.ToLower(strings.TrimSpace(os.Getenv(envLogFormat)))
	if logFormat == "" {
		logFormat = "text"
	}
	logLevel := strings.ToLower(strings.TrimSpace(os.Getenv(envLogLevel)))
	if logLevel == "" {
		logLevel = "info"
	}
	serviceName := strings.TrimSpace(os.Getenv(envServiceName))
	if serviceName == "" {
		serviceName = "mpsim"
	}

	return ObservabilityConfig{
		ServiceName:   serviceName,
		OTLPEndpoint:  getStringEnv(envOTLPEndpoint, defaultOTLPEndpoint),
		EnableMetrics: getBoolEnv(envEnableMetrics, true),
		EnableTracing: getBoolEnv(envEnableTracing, true),
		LogFormat:     logFormat,
		LogLevel:      logLevel,
	}
}

func loadTransportConfig() TransportConfig {
	secret := strings.TrimSpace(os.Getenv(envManifestSecret))
	workerID := strings.TrimSpace(os.Getenv(envWorkerID))
	if workerID == "" {
		workerID = "mpsim-worker"
	}

	return TransportConfig{
		NATSURL:           getStringEnv(envNATSURL, defaultNATSURL),
		NATSSubject:       getStringEnv(envNATSSubject, defaultNATSSubject),
		WorkerID:          workerID,
		ManifestSecret:    secret,
		HasManifestSecret: secret != "",
	}
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:  getBoolEnv(envCacheEnabled, false),
		Host:     getStringEnv(envRedisHost, defaultRedisHost),
		Port:     getIntEnv(envRedisPort, defaultRedisPort),
		DB:       getIntEnv(envRedisDB, 0),
		Password: strings.TrimSpace(os.Getenv(envRedisPassword)),
		TTL:      getDurationEnv(envCacheTTL, defaultCacheTTL),
	}
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks that the configuration is internally consistent. In
// every environment, a cache that is enabled but has no reachable settings, or a
// manifest secret that is present but too short to be a real HMAC key, are
// treated as misconfiguration rather than silently degrading.
func (c Config) Validate() error {
	var errs []error

	if c.Runner.MaxConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("runner max concurrency must be positive, got %d", c.Runner.MaxConcurrency))
	}

	if c.Transport.HasManifestSecret && len(c.Transport.ManifestSecret) < 16 {
		errs = append(errs, errors.New("manifest secret must be at least 16 characters"))
	}

	if c.Cache.Enabled && c.Cache.Host == "" {
		errs = append(errs, errors.New("cache is enabled but no Redis host is configured"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// =============================================================================
// Helper Methods
// =============================================================================

func (c Config) IsProduction() bool  { return c.Env == EnvProduction }
func (c Config) IsDevelopment() bool { return c.Env == EnvDevelopment }
func (c Config) IsTest() bool        { return c.Env == EnvTest }

// =============================================================================
// Environment Variable Helpers
// =============================================================================

func getStringEnv(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if val, err := strconv.Atoi(raw); err == nil {
			return val
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch raw {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultVal
	}
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if val, err := time.ParseDuration(raw); err == nil {
			return val
		}
	}
	return defaultVal
}

func normalizeEnv(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod":
		return EnvProduction
	case "staging", "stage", "preview":
		return EnvStaging
	case "test", "testing":
		return EnvTest
	default:
		return EnvDevelopment
	}
}
