package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 75, cfg.Fraud.Threshold)
	assert.Equal(t, 3, cfg.Verification.MaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Verification.SessionTTL)
	assert.Equal(t, time.Hour, cfg.Fraud.ScoreCacheTTL)
	assert.Equal(t, time.UTC, cfg.Fraud.Location())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
environment: production
fraud:
  threshold: 60
  score_cache_ttl: 10m
verification:
  max_attempts: 5
telephony:
  provider: log
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("FSU_FRAUD_THRESHOLD", "80")
	t.Setenv("FSU_VERIFICATION_SESSION_TTL", "45m")
	t.Setenv("FSU_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 80, cfg.Fraud.Threshold)
	assert.Equal(t, 10*time.Minute, cfg.Fraud.ScoreCacheTTL)
	assert.Equal(t, 5, cfg.Verification.MaxAttempts)
	assert.Equal(t, 45*time.Minute, cfg.Verification.SessionTTL)
	assert.Equal(t, "log", cfg.Telephony.Provider)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"FSU_FRAUD_THRESHOLD":           "fraud.threshold",
		"FSU_FRAUD_SCORE_CACHE_TTL":     "fraud.score_cache_ttl",
		"FSU_SECURITY_RATE_LIMIT_RPS":   "security.rate_limit_rps",
		"FSU_LOG_LEVEL":                 "log_level",
		"FSU_ENVIRONMENT":               "environment",
		"FSU_VERIFICATION_MAX_ATTEMPTS": "verification.max_attempts",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold above range", func(c *Config) { c.Fraud.Threshold = 101 }},
		{"threshold below range", func(c *Config) { c.Fraud.Threshold = -1 }},
		{"zero attempts", func(c *Config) { c.Verification.MaxAttempts = 0 }},
		{"zero session ttl", func(c *Config) { c.Verification.SessionTTL = 0 }},
		{"zero cache ttl", func(c *Config) { c.Fraud.ScoreCacheTTL = 0 }},
		{"unknown zone", func(c *Config) { c.Fraud.TimeZone = "Mars/Olympus" }},
		{"unknown store", func(c *Config) { c.Verification.Store = "disk" }},
		{"unknown provider", func(c *Config) { c.Telephony.Provider = "carrier-pigeon" }},
		{"unknown sink", func(c *Config) { c.Audit.Sink = "kafka" }},
	}

	require.NoError(t, Defaults().Validate())

	for _, edge := range []int{0, 100} {
		cfg := Defaults()
		cfg.Fraud.Threshold = edge
		assert.NoError(t, cfg.Validate(), "threshold %d", edge)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
