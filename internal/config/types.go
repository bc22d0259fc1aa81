package config

import (
	"strconv"
	"time"
)

// CacheBackend selects the response cache implementation
type CacheBackend string

const (
	BackendMemory CacheBackend = "memory"
	BackendRedis  CacheBackend = "redis"
)

// Config represents the main configuration structure.
// Durations are stored as milliseconds and exposed through Get*Duration helpers.
type Config struct {
	Host           string                `json:"host" envconfig:"HOST"`
	Port           int                   `json:"port" envconfig:"PORT"`
	LogLevel       string                `json:"logLevel" envconfig:"LOG_LEVEL"`
	APIBaseURL     string                `json:"apiBaseUrl" envconfig:"API_BASE_URL"`
	RequestTimeout int                   `json:"requestTimeout" envconfig:"REQUEST_TIMEOUT"` // ms
	CacheTTL       int                   `json:"cacheTtl" envconfig:"CACHE_TTL"`             // ms - default response TTL for GET
	RetryEnabled   bool                  `json:"retryEnabled" envconfig:"RETRY_ENABLED"`
	SearchDebounce int                   `json:"searchDebounce" envconfig:"SEARCH_DEBOUNCE"` // ms
	Cache          *CacheConfig          `json:"cache,omitempty" envconfig:"CACHE"`
	CircuitBreaker *CircuitBreakerConfig `json:"circuitBreaker,omitempty" envconfig:"CIRCUIT_BREAKER"`
	Plugins        *PluginConfig         `json:"plugins,omitempty" envconfig:"PLUGINS"`
}

// CacheConfig represents response cache storage configuration
type CacheConfig struct {
	Enabled  *bool        `json:"enabled" envconfig:"ENABLED"` // nil means enabled
	Backend  CacheBackend `json:"backend" envconfig:"BACKEND"`
	Size     int          `json:"size" envconfig:"SIZE"` // number of entries (memory backend)
	RedisURL string       `json:"redisUrl" envconfig:"REDIS_URL"`
	Prefix   string       `json:"prefix" envconfig:"PREFIX"` // key prefix (redis backend)
}

// CircuitBreakerConfig represents the remote API circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool `json:"enabled" envconfig:"ENABLED"`
	FailureThreshold int  `json:"failureThreshold" envconfig:"FAILURE_THRESHOLD"`
	RecoveryTimeout  int  `json:"recoveryTimeout" envconfig:"RECOVERY_TIMEOUT"` // ms
	HalfOpenRequests int  `json:"halfOpenRequests" envconfig:"HALF_OPEN_REQUESTS"`
}

// PluginConfig represents interceptor script configuration
type PluginConfig struct {
	Enabled   bool   `json:"enabled" envconfig:"ENABLED"`
	Directory string `json:"directory" envconfig:"DIRECTORY"` // path to plugins directory
	Timeout   int    `json:"timeout" envconfig:"TIMEOUT"`     // execution timeout in milliseconds
}

// Default values
const (
	DefaultHost             = "localhost"
	DefaultPort             = 8080
	DefaultLogLevel         = "info"
	DefaultAPIBaseURL       = ""
	DefaultRequestTimeout   = 15000 // ms
	DefaultCacheTTL         = 30000 // ms
	DefaultRetryEnabled     = true
	DefaultSearchDebounce   = 300 // ms
	DefaultCacheBackend     = BackendMemory
	DefaultCacheSize        = 1000
	DefaultCachePrefix      = "movieexplorer:fetch:"
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 30000 // ms
	DefaultHalfOpenRequests = 2
	DefaultPluginDirectory  = "./plugins"
	DefaultPluginTimeout    = 1000 // ms

	// EnvPrefix is prepended to every environment override, e.g. MOVIEEXPLORER_API_BASE_URL
	EnvPrefix = "MOVIEEXPLORER"
)

// GetRequestTimeoutDuration returns request timeout as time.Duration
func (c *Config) GetRequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Millisecond
}

// GetCacheTTLDuration returns the default response TTL as time.Duration
func (c *Config) GetCacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Millisecond
}

// GetSearchDebounceDuration returns the search quiet period as time.Duration
func (c *Config) GetSearchDebounceDuration() time.Duration {
	return time.Duration(c.SearchDebounce) * time.Millisecond
}

// Addr returns host:port for the HTTP listener
func (c *Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// IsCacheEnabled returns true unless the response cache is explicitly disabled
func (c *Config) IsCacheEnabled() bool {
	return c.Cache == nil || c.Cache.Enabled == nil || *c.Cache.Enabled
}

// IsCircuitBreakerEnabled returns true if the circuit breaker is configured and enabled
func (c *Config) IsCircuitBreakerEnabled() bool {
	return c.CircuitBreaker != nil && c.CircuitBreaker.Enabled
}

// IsPluginsEnabled returns true if plugins are configured and enabled
func (c *Config) IsPluginsEnabled() bool {
	return c.Plugins != nil && c.Plugins.Enabled
}

// GetPluginDirectory returns the plugins directory path
func (c *Config) GetPluginDirectory() string {
	if c.Plugins == nil || c.Plugins.Directory == "" {
		return DefaultPluginDirectory
	}
	return c.Plugins.Directory
}

// GetPluginTimeoutDuration returns plugin timeout as time.Duration
func (c *Config) GetPluginTimeoutDuration() time.Duration {
	if c.Plugins == nil || c.Plugins.Timeout == 0 {
		return time.Duration(DefaultPluginTimeout) * time.Millisecond
	}
	return time.Duration(c.Plugins.Timeout) * time.Millisecond
}

// GetRecoveryTimeoutDuration returns the open-state duration as time.Duration
func (c *CircuitBreakerConfig) GetRecoveryTimeoutDuration() time.Duration {
	return time.Duration(c.RecoveryTimeout) * time.Millisecond
}
