package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	cfg.APIBaseURL = strings.TrimSuffix(strings.TrimSpace(cfg.APIBaseURL), "/")
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.SearchDebounce == 0 {
		cfg.SearchDebounce = DefaultSearchDebounce
	}

	if cfg.Cache == nil {
		cfg.Cache = &CacheConfig{}
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = DefaultCacheBackend
	}
	if cfg.Cache.Size == 0 {
		cfg.Cache.Size = DefaultCacheSize
	}
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = DefaultCachePrefix
	}

	if cfg.CircuitBreaker != nil {
		if cfg.CircuitBreaker.FailureThreshold == 0 {
			cfg.CircuitBreaker.FailureThreshold = DefaultFailureThreshold
		}
		if cfg.CircuitBreaker.RecoveryTimeout == 0 {
			cfg.CircuitBreaker.RecoveryTimeout = DefaultRecoveryTimeout
		}
		if cfg.CircuitBreaker.HalfOpenRequests == 0 {
			cfg.CircuitBreaker.HalfOpenRequests = DefaultHalfOpenRequests
		}
	}
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("logLevel must be one of: debug, info, warn, error")
	}

	// Empty base means same origin
	if cfg.APIBaseURL != "" {
		u, err := url.Parse(cfg.APIBaseURL)
		if err != nil {
			return fmt.Errorf("apiBaseUrl: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("apiBaseUrl must be an http or https URL")
		}
	}

	if cfg.RequestTimeout < 0 {
		return fmt.Errorf("requestTimeout must be non-negative")
	}

	if cfg.CacheTTL < 0 {
		return fmt.Errorf("cacheTtl must be non-negative")
	}

	if cfg.SearchDebounce < 0 {
		return fmt.Errorf("searchDebounce must be non-negative")
	}

	if cfg.IsCacheEnabled() {
		switch cfg.Cache.Backend {
		case BackendMemory:
			if cfg.Cache.Size <= 0 {
				return fmt.Errorf("cache.size must be positive when cache is enabled")
			}
		case BackendRedis:
			if cfg.Cache.RedisURL == "" {
				return fmt.Errorf("cache.redisUrl is required for the redis backend")
			}
		default:
			return fmt.Errorf("cache.backend must be 'memory' or 'redis'")
		}
	}

	if cfg.CircuitBreaker != nil && cfg.CircuitBreaker.Enabled {
		if cfg.CircuitBreaker.FailureThreshold < 0 || cfg.CircuitBreaker.HalfOpenRequests < 0 {
			return errors.New("circuitBreaker thresholds must be non-negative")
		}
		if cfg.CircuitBreaker.RecoveryTimeout < 0 {
			return errors.New("circuitBreaker.recoveryTimeout must be non-negative")
		}
	}

	if cfg.Plugins != nil && cfg.Plugins.Timeout < 0 {
		return fmt.Errorf("plugins.timeout must be non-negative")
	}

	return nil
}

// configWithRetryDefault is used for proper default handling of retryEnabled
// and cacheTtl, where an explicit false or 0 differs from absent
type configWithRetryDefault struct {
	Config
	RetryEnabledPtr *bool `json:"retryEnabled"`
	CacheTTLPtr     *int  `json:"cacheTtl"`
}

// LoadWithDefaults reads the optional configuration file, applies .env and
// MOVIEEXPLORER_* environment overrides, then defaults and validation.
// A missing file is not an error.
func LoadWithDefaults(path string) (*Config, error) {
	var rawCfg configWithRetryDefault

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &rawCfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &rawCfg.Config

	// Handle retryEnabled default
	if rawCfg.RetryEnabledPtr != nil {
		cfg.RetryEnabled = *rawCfg.RetryEnabledPtr
	} else {
		cfg.RetryEnabled = DefaultRetryEnabled
	}

	// cacheTtl 0 turns response caching off, so only an absent value defaults
	if rawCfg.CacheTTLPtr != nil {
		cfg.CacheTTL = *rawCfg.CacheTTLPtr
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	_, ttlFromEnv := os.LookupEnv(EnvPrefix + "_CACHE_TTL")
	if rawCfg.CacheTTLPtr == nil && !ttlFromEnv {
		cfg.CacheTTL = DefaultCacheTTL
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnv loads .env from the working directory (if present) and overlays
// MOVIEEXPLORER_* variables on top of the file values.
func applyEnv(cfg *Config) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}
