// Package config loads the LMS client configuration from an optional YAML
// file and LMS_* environment variables. Environment values win.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/flitsinc/go-lms/logging"
)

const DefaultBaseURL = "https://learn.mywhitecliffe.com"

// Login drivers.
const (
	DriverBrowser = "browser"
	DriverForm    = "form"
)

// Duration is a time.Duration written as "30s" or "1m30s" in config files.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

type Config struct {
	BaseURL     string `json:"base_url"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
	AccessToken string `json:"access_token,omitempty"`

	// LoginDriver is DriverBrowser or DriverForm.
	LoginDriver string `json:"login_driver"`
	Headless    bool   `json:"headless"`

	RequestTimeout     Duration `json:"request_timeout"`
	LoginTimeout       Duration `json:"login_timeout"`
	CacheTTL           Duration `json:"cache_ttl,omitempty"`
	RateLimitPerMinute int      `json:"rate_limit_per_minute,omitempty"`
	MaxPages           int      `json:"max_pages"`
	// FallbackStatuses narrows the HTML fallback to these API statuses.
	// Empty means any API failure falls back.
	FallbackStatuses []int `json:"fallback_statuses,omitempty"`

	Log LogConfig `json:"log"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		BaseURL:        DefaultBaseURL,
		LoginDriver:    DriverBrowser,
		Headless:       true,
		RequestTimeout: Duration(30 * time.Second),
		LoginTimeout:   Duration(10 * time.Second),
		MaxPages:       10,
		Log:            LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the file at path, when path is not empty, over the defaults and
// then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	str("LMS_BASE_URL", &c.BaseURL)
	str("LMS_USERNAME", &c.Username)
	str("LMS_PASSWORD", &c.Password)
	str("LMS_ACCESS_TOKEN", &c.AccessToken)
	str("LMS_LOGIN_DRIVER", &c.LoginDriver)
	str("LMS_LOG_LEVEL", &c.Log.Level)
	str("LMS_LOG_FORMAT", &c.Log.Format)

	durations := map[string]*Duration{
		"LMS_REQUEST_TIMEOUT": &c.RequestTimeout,
		"LMS_LOGIN_TIMEOUT":   &c.LoginTimeout,
		"LMS_CACHE_TTL":       &c.CacheTTL,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = Duration(d)
	}

	ints := map[string]*int{
		"LMS_RATE_LIMIT_PER_MINUTE": &c.RateLimitPerMinute,
		"LMS_MAX_PAGES":             &c.MaxPages,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	if v, ok := lookup("LMS_HEADLESS"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("LMS_HEADLESS: %w", err)
		}
		c.Headless = b
	}

	if v, ok := lookup("LMS_FALLBACK_STATUSES"); ok {
		c.FallbackStatuses = nil
		for _, field := range strings.Split(v, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			code, err := strconv.Atoi(field)
			if err != nil {
				return fmt.Errorf("LMS_FALLBACK_STATUSES: %w", err)
			}
			c.FallbackStatuses = append(c.FallbackStatuses, code)
		}
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	if c.LoginDriver != DriverBrowser && c.LoginDriver != DriverForm {
		return fmt.Errorf("login_driver must be %q or %q, got %q", DriverBrowser, DriverForm, c.LoginDriver)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.LoginTimeout <= 0 {
		return fmt.Errorf("login_timeout must be positive")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl cannot be negative")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate_limit_per_minute cannot be negative")
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("max_pages must be at least 1")
	}
	for _, code := range c.FallbackStatuses {
		if code < 400 || code > 599 {
			return fmt.Errorf("fallback status %d is not an HTTP error status", code)
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		return fmt.Errorf("log format must be \"text\" or \"json\", got %q", c.Log.Format)
	}
	return nil
}

// HasCredentials reports whether a username and password are configured.
func (c *Config) HasCredentials() bool {
	return c.Username != "" && c.Password != ""
}
