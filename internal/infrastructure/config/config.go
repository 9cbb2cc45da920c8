package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. FSU_FRAUD_THRESHOLD
const EnvPrefix = "FSU_"

// DefaultPath is read when no explicit config file is given
const DefaultPath = "configs/config.yaml"

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server       ServerConfig       `koanf:"server"`
	Database     DatabaseConfig     `koanf:"database"`
	Redis        RedisConfig        `koanf:"redis"`
	Fraud        FraudConfig        `koanf:"fraud"`
	Verification VerificationConfig `koanf:"verification"`
	Telephony    TelephonyConfig    `koanf:"telephony"`
	Audit        AuditConfig        `koanf:"audit"`
	Security     SecurityConfig     `koanf:"security"`
	Telemetry    TelemetryConfig    `koanf:"telemetry"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// PublicBaseURL is where the telephony provider reaches the voice callbacks
	PublicBaseURL string `koanf:"public_base_url"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int           `koanf:"max_conns"`
	MinConns        int           `koanf:"min_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	MaxRetries   int           `koanf:"max_retries"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type FraudConfig struct {
	Threshold               int           `koanf:"threshold"`
	ModelURL                string        `koanf:"model_url"`
	ModelTimeout            time.Duration `koanf:"model_timeout"`
	ScoreCacheTTL           time.Duration `koanf:"score_cache_ttl"`
	LocationChangeThreshold float64       `koanf:"location_change_threshold"`
	TimeZone                string        `koanf:"time_zone"`
	HistoryLimit            int           `koanf:"history_limit"`
	BreakerMaxFailures      int           `koanf:"breaker_max_failures"`
	BreakerResetTimeout     time.Duration `koanf:"breaker_reset_timeout"`
}

type VerificationConfig struct {
	MaxAttempts   int           `koanf:"max_attempts"`
	SessionTTL    time.Duration `koanf:"session_ttl"`
	BlockDuration time.Duration `koanf:"block_duration"`
	// Store is "redis" or "memory"
	Store string `koanf:"store"`
	// RetryCallLimit caps re-dials per transaction within RetryCallWindow
	RetryCallLimit  int           `koanf:"retry_call_limit"`
	RetryCallWindow time.Duration `koanf:"retry_call_window"`
}

type TelephonyConfig struct {
	// Provider is "twilio" or "log"
	Provider    string        `koanf:"provider"`
	AccountSID  string        `koanf:"account_sid"`
	AuthToken   string        `koanf:"auth_token"`
	FromNumber  string        `koanf:"from_number"`
	APIBaseURL  string        `koanf:"api_base_url"`
	CallTimeout time.Duration `koanf:"call_timeout"`
	// MaxRetries applies to dial failures and 429s only
	MaxRetries int `koanf:"max_retries"`
	// VerifySignatures rejects voice callbacks without a valid provider signature
	VerifySignatures bool `koanf:"verify_signatures"`
}

type AuditConfig struct {
	// Sink is "postgres" or "log"
	Sink         string        `koanf:"sink"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type SecurityConfig struct {
	JWTSecret      string `koanf:"jwt_secret"`
	JWTIssuer      string `koanf:"jwt_issuer"`
	EncryptionKey  string `koanf:"encryption_key"`
	RateLimitRPS   int    `koanf:"rate_limit_rps"`
	RateLimitBurst int    `koanf:"rate_limit_burst"`
}

type TelemetryConfig struct {
	Enabled       bool          `koanf:"enabled"`
	OTLPEndpoint  string        `koanf:"otlp_endpoint"`
	SamplingRate  float64       `koanf:"sampling_rate"`
	ExportTimeout time.Duration `koanf:"export_timeout"`
	BatchTimeout  time.Duration `koanf:"batch_timeout"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			PublicBaseURL:   "http://localhost:8080",
		},
		Database: DatabaseConfig{
			MaxConns:        25,
			MinConns:        5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: time.Minute,
		},
		Redis: RedisConfig{
			URL:          "localhost:6379",
			PoolSize:     20,
			MinIdleConns: 2,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Fraud: FraudConfig{
			Threshold:               75,
			ModelTimeout:            2 * time.Second,
			ScoreCacheTTL:           time.Hour,
			LocationChangeThreshold: 1.0,
			TimeZone:                "UTC",
			HistoryLimit:            50,
			BreakerMaxFailures:      5,
			BreakerResetTimeout:     30 * time.Second,
		},
		Verification: VerificationConfig{
			MaxAttempts:     3,
			SessionTTL:      30 * time.Minute,
			BlockDuration:   24 * time.Hour,
			Store:           "redis",
			RetryCallLimit:  3,
			RetryCallWindow: 10 * time.Minute,
		},
		Telephony: TelephonyConfig{
			Provider:         "twilio",
			APIBaseURL:       "https://api.twilio.com",
			CallTimeout:      10 * time.Second,
			MaxRetries:       2,
			VerifySignatures: true,
		},
		Audit: AuditConfig{
			Sink:         "postgres",
			WriteTimeout: 2 * time.Second,
		},
		Security: SecurityConfig{
			JWTIssuer:      "fsu",
			RateLimitRPS:   50,
			RateLimitBurst: 100,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint:  "localhost:4317",
			SamplingRate:  1.0,
			ExportTimeout: 30 * time.Second,
			BatchTimeout:  5 * time.Second,
		},
	}
}

// Load layers defaults, the YAML file at path and FSU_ environment
// variables. An empty path reads DefaultPath when it exists.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var sections = map[string]bool{
	"server": true, "database": true, "redis": true, "fraud": true,
	"verification": true, "telephony": true, "audit": true,
	"security": true, "telemetry": true,
}

// envKey maps FSU_FRAUD_SCORE_CACHE_TTL to fraud.score_cache_ttl and
// FSU_LOG_LEVEL to log_level
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, rest, found := strings.Cut(key, "_")
	if found && sections[section] {
		return section + "." + rest
	}
	return key
}

// Validate rejects configurations the pipeline cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Fraud.Threshold < 0 || c.Fraud.Threshold > 100 {
		errs = append(errs, fmt.Errorf("fraud.threshold must be within 0..100, got %d", c.Fraud.Threshold))
	}
	if c.Fraud.ModelTimeout <= 0 {
		errs = append(errs, errors.New("fraud.model_timeout must be positive"))
	}
	if c.Fraud.ScoreCacheTTL <= 0 {
		errs = append(errs, errors.New("fraud.score_cache_ttl must be positive"))
	}
	if c.Fraud.LocationChangeThreshold <= 0 {
		errs = append(errs, errors.New("fraud.location_change_threshold must be positive"))
	}
	if _, err := time.LoadLocation(c.Fraud.TimeZone); err != nil {
		errs = append(errs, fmt.Errorf("fraud.time_zone: %w", err))
	}
	if c.Verification.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("verification.max_attempts must be at least 1, got %d", c.Verification.MaxAttempts))
	}
	if c.Verification.SessionTTL <= 0 {
		errs = append(errs, errors.New("verification.session_ttl must be positive"))
	}
	if c.Verification.BlockDuration <= 0 {
		errs = append(errs, errors.New("verification.block_duration must be positive"))
	}
	switch c.Verification.Store {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("verification.store must be redis or memory, got %q", c.Verification.Store))
	}
	switch c.Telephony.Provider {
	case "twilio", "log":
	default:
		errs = append(errs, fmt.Errorf("telephony.provider must be twilio or log, got %q", c.Telephony.Provider))
	}
	switch c.Audit.Sink {
	case "postgres", "log":
	default:
		errs = append(errs, fmt.Errorf("audit.sink must be postgres or log, got %q", c.Audit.Sink))
	}
	if c.Verification.RetryCallLimit < 1 || c.Verification.RetryCallWindow <= 0 {
		errs = append(errs, errors.New("verification.retry_call_limit and retry_call_window must be positive"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Location returns the configured fraud time zone, UTC when unset
func (c FraudConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
