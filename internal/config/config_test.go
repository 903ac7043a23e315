package config

import "testing"

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		envAppEnv, envRunnerMaxConcurrency, envRunnerShutdownWait,
		envOTLPEndpoint, envServiceName, envEnableMetrics, envEnableTracing,
		envLogFormat, envLogLevel, envNATSURL, envNATSSubject,
		envManifestSecret, envWorkerID, envCacheEnabled, envRedisHost,
		envRedisPort, envRedisDB, envRedisPassword, envCacheTTL,
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadAppliesDefaultsWithNoEnv(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Env != EnvDevelopment {
		t.Fatalf("expected default env %q, got %q", EnvDevelopment, cfg.Env)
	}
	if cfg.Runner.MaxConcurrency != defaultMaxConcurrency {
		t.Fatalf("expected default max concurrency %d, got %d", defaultMaxConcurrency, cfg.Runner.MaxConcurrency)
	}
	if cfg.Transport.HasManifestSecret {
		t.Fatal("expected no manifest secret by default")
	}
	if cfg.Cache.Enabled {
		t.Fatal("expected cache disabled by default")
	}
}

func TestLoadReadsRunnerAndTransportOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(envRunnerMaxConcurrency, "16")
	t.Setenv(envManifestSecret, "a-sufficiently-long-secret")
	t.Setenv(envNATSSubject, "mpsim.custom")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Runner.MaxConcurrency != 16 {
		t.Fatalf("expected max concurrency 16, got %d", cfg.Runner.MaxConcurrency)
	}
	if !cfg.Transport.HasManifestSecret {
		t.Fatal("expected manifest secret to be present")
	}
	if cfg.Transport.NATSSubject != "mpsim.custom" {
		t.Fatalf("expected overridden subject, got %q", cfg.Transport.NATSSubject)
	}
}

func TestValidateRejectsNonPositiveMaxConcurrency(t *testing.T) {
	clearEnv(t)
	t.Setenv(envRunnerMaxConcurrency, "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for zero max concurrency")
	}
}

func TestValidateRejectsShortManifestSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv(envManifestSecret, "short")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a too-short manifest secret")
	}
}

func TestValidateRejectsCacheEnabledWithoutHost(t *testing.T) {
	clearEnv(t)
	t.Setenv(envCacheEnabled, "true")
	t.Setenv(envRedisHost, "")

	cfg := Config{
		Runner: RunnerConfig{MaxConcurrency: 1},
		Cache:  CacheConfig{Enabled: true, Host: ""},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for cache enabled without a host")
	}
}
