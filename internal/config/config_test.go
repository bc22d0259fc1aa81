package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadWithDefaults_MissingFile(t *testing.T) {
	cfg, err := LoadWithDefaults(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, "", cfg.APIBaseURL)
	assert.Equal(t, 15000, cfg.RequestTimeout)
	assert.Equal(t, 30000, cfg.CacheTTL)
	assert.Equal(t, 300, cfg.SearchDebounce)
	assert.True(t, cfg.RetryEnabled)
	require.True(t, cfg.IsCacheEnabled())
	assert.Equal(t, BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, DefaultCacheSize, cfg.Cache.Size)
	assert.False(t, cfg.IsCircuitBreakerEnabled())
}

func TestLoadWithDefaults_StripsTrailingSlash(t *testing.T) {
	path := writeConfig(t, `{"apiBaseUrl": "https://api.example.com/", "retryEnabled": false}`)

	cfg, err := LoadWithDefaults(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.APIBaseURL)
	assert.False(t, cfg.RetryEnabled)
}

func TestLoadWithDefaults_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{"port": 9000, "logLevel": "warn", "cache": {"enabled": true}}`)
	t.Setenv("MOVIEEXPLORER_PORT", "9100")
	t.Setenv("MOVIEEXPLORER_API_BASE_URL", "http://localhost:8000/")
	t.Setenv("MOVIEEXPLORER_CACHE_SIZE", "42")

	cfg, err := LoadWithDefaults(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	require.True(t, cfg.IsCacheEnabled())
	assert.Equal(t, 42, cfg.Cache.Size)
	assert.Equal(t, BackendMemory, cfg.Cache.Backend)
}

func TestLoadWithDefaults_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad log level":    `{"logLevel": "loud"}`,
		"bad base url":     `{"apiBaseUrl": "ftp://example.com"}`,
		"redis needs url":  `{"cache": {"enabled": true, "backend": "redis"}}`,
		"unknown backend":  `{"cache": {"enabled": true, "backend": "disk"}}`,
		"negative timeout": `{"requestTimeout": -1}`,
		"negative ttl":     `{"cacheTtl": -5}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadWithDefaults(writeConfig(t, body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestDurations(t *testing.T) {
	cfg, err := LoadWithDefaults(writeConfig(t, `{"circuitBreaker": {"enabled": true}}`))
	require.NoError(t, err)

	assert.Equal(t, "15s", cfg.GetRequestTimeoutDuration().String())
	assert.Equal(t, "30s", cfg.GetCacheTTLDuration().String())
	assert.Equal(t, "300ms", cfg.GetSearchDebounceDuration().String())
	assert.Equal(t, "1s", cfg.GetPluginTimeoutDuration().String())
	assert.Equal(t, "30s", cfg.CircuitBreaker.GetRecoveryTimeoutDuration().String())
	assert.Equal(t, DefaultFailureThreshold, cfg.CircuitBreaker.FailureThreshold)
	assert.Equal(t, "localhost:8080", cfg.Addr())
}

func TestCacheEnabled(t *testing.T) {
	cfg, err := LoadWithDefaults(writeConfig(t, `{"cache": {"enabled": false}}`))
	require.NoError(t, err)
	assert.False(t, cfg.IsCacheEnabled())

	cfg, err = LoadWithDefaults(writeConfig(t, `{"cache": {"size": 10}}`))
	require.NoError(t, err)
	assert.True(t, cfg.IsCacheEnabled())
	assert.Equal(t, 10, cfg.Cache.Size)

	t.Setenv("MOVIEEXPLORER_CACHE_ENABLED", "false")
	cfg, err = LoadWithDefaults(writeConfig(t, `{}`))
	require.NoError(t, err)
	assert.False(t, cfg.IsCacheEnabled())
}

func TestCacheTTL_ZeroDisablesCaching(t *testing.T) {
	cfg, err := LoadWithDefaults(writeConfig(t, `{"cacheTtl": 0}`))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.CacheTTL)
	assert.Zero(t, cfg.GetCacheTTLDuration())

	cfg, err = LoadWithDefaults(writeConfig(t, `{"cacheTtl": 5000}`))
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.CacheTTL)

	cfg, err = LoadWithDefaults(writeConfig(t, `{}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL)

	t.Setenv("MOVIEEXPLORER_CACHE_TTL", "0")
	cfg, err = LoadWithDefaults(writeConfig(t, `{"cacheTtl": 5000}`))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.CacheTTL, "env overrides file")
}
