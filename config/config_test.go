package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DriverBrowser, cfg.LoginDriver)
	assert.True(t, cfg.Headless)
	assert.Equal(t, Duration(30*time.Second), cfg.RequestTimeout)
	assert.Equal(t, Duration(10*time.Second), cfg.LoginTimeout)
	assert.Equal(t, 10, cfg.MaxPages)
	assert.False(t, cfg.HasCredentials())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
base_url: https://canvas.example.edu
login_driver: form
request_timeout: 5s
cache_ttl: 2m
fallback_statuses: [403, 501]
log:
  level: debug
  format: json
`)
	t.Setenv("LMS_USERNAME", "student@example.com")
	t.Setenv("LMS_PASSWORD", "correctpw")
	t.Setenv("LMS_REQUEST_TIMEOUT", "12s")
	t.Setenv("LMS_RATE_LIMIT_PER_MINUTE", "60")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://canvas.example.edu", cfg.BaseURL)
	assert.Equal(t, DriverForm, cfg.LoginDriver)
	assert.Equal(t, Duration(12*time.Second), cfg.RequestTimeout)
	assert.Equal(t, Duration(2*time.Minute), cfg.CacheTTL)
	assert.Equal(t, []int{403, 501}, cfg.FallbackStatuses)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
	assert.True(t, cfg.HasCredentials())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeFile(t, "base_ulr: https://canvas.example.edu\n"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LMS_ACCESS_TOKEN":      " tok ",
		"LMS_HEADLESS":          "false",
		"LMS_FALLBACK_STATUSES": "403, 404,,500",
		"LMS_CACHE_TTL":         "90s",
	}
	cfg := Default()
	require.NoError(t, cfg.applyEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}))
	assert.Equal(t, "tok", cfg.AccessToken)
	assert.False(t, cfg.Headless)
	assert.Equal(t, []int{403, 404, 500}, cfg.FallbackStatuses)
	assert.Equal(t, Duration(90*time.Second), cfg.CacheTTL)
}

func TestApplyEnvErrors(t *testing.T) {
	for key, value := range map[string]string{
		"LMS_LOGIN_TIMEOUT":         "ten",
		"LMS_RATE_LIMIT_PER_MINUTE": "lots",
		"LMS_HEADLESS":              "maybe",
		"LMS_FALLBACK_STATUSES":     "403,forbidden",
	} {
		cfg := Default()
		err := cfg.applyEnv(func(k string) (string, bool) {
			if k == key {
				return value, true
			}
			return "", false
		})
		assert.ErrorContains(t, err, key)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"relative base url", func(c *Config) { c.BaseURL = "learn.mywhitecliffe.com" }, "base_url"},
		{"unknown driver", func(c *Config) { c.LoginDriver = "selenium" }, "login_driver"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "request_timeout"},
		{"zero login timeout", func(c *Config) { c.LoginTimeout = 0 }, "login_timeout"},
		{"negative rate", func(c *Config) { c.RateLimitPerMinute = -1 }, "rate_limit_per_minute"},
		{"no pages", func(c *Config) { c.MaxPages = 0 }, "max_pages"},
		{"success status", func(c *Config) { c.FallbackStatuses = []int{200} }, "fallback status 200"},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, "unknown log level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
	assert.NoError(t, Default().Validate())
}
