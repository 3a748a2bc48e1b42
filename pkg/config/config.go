// Package config loads connector settings from YAML and the environment.
//
// Example configuration:
//
//	base_url: https://rally1.rallydev.com/slm/webservice/v2.0
//	username: user@example.com
//	workers: 4
//	page_size: 200
//	connect_timeout: 300s
//	integration:
//	  name: wsapi-fetch
//	  version: 1.0.0
//	redis:
//	  addr: localhost:6379
//	  ttl: 5m
//	rate_limit:
//	  requests_per_second: 10
//	  burst: 4
//	log:
//	  level: info
//
// Environment variables (WSAPI_*) override file values; see ApplyEnv.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/rally-wsapi-client/pkg/client"
	"github.com/Sternrassler/rally-wsapi-client/pkg/logging"
	"github.com/Sternrassler/rally-wsapi-client/pkg/ratelimit"
	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the hosted WSAPI endpoint.
const DefaultBaseURL = "https://rally1.rallydev.com/slm/webservice/v2.0"

// Environment variables read by ApplyEnv.
const (
	EnvBaseURL   = "WSAPI_BASE_URL"
	EnvAPIKey    = "WSAPI_API_KEY"
	EnvUsername  = "WSAPI_USERNAME"
	EnvPassword  = "WSAPI_PASSWORD"
	EnvWorkers   = "WSAPI_WORKERS"
	EnvDebug     = "WSAPI_DEBUG"
	EnvRedisAddr = "WSAPI_REDIS_ADDR"
)

// Integration headers identifying the calling tool to the service.
const (
	HeaderIntegrationName    = "X-RallyIntegrationName"
	HeaderIntegrationVersion = "X-RallyIntegrationVersion"
	HeaderIntegrationVendor  = "X-RallyIntegrationVendor"
)

// Config is the root configuration structure.
type Config struct {
	// BaseURL is the WSAPI root, e.g. https://rally1.rallydev.com/slm/webservice/v2.0.
	BaseURL string `yaml:"base_url"`

	// Authentication. An API key takes precedence over username/password.
	APIKey   string `yaml:"api_key"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Workers is the paged-fetch worker count, clamped to 1..4 by the client.
	// Zero selects the default.
	Workers int `yaml:"workers"`

	// PageSize and Limit are the defaults for paged queries. Limit 0 means unbounded.
	PageSize int `yaml:"page_size"`
	Limit    int `yaml:"limit"`

	// Debug enables request tracing.
	Debug bool `yaml:"debug"`

	// Transport
	Proxy              string   `yaml:"proxy"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify"`
	ConnectTimeout     Duration `yaml:"connect_timeout"`
	ReadTimeout        Duration `yaml:"read_timeout"`

	Integration IntegrationConfig `yaml:"integration"`

	// Headers are extra headers sent with every request.
	Headers map[string]string `yaml:"headers"`

	Redis     RedisConfig      `yaml:"redis"`
	RateLimit ratelimit.Config `yaml:"rate_limit"`
	Log       logging.Config   `yaml:"log"`
}

// IntegrationConfig fills the X-RallyIntegration* headers.
type IntegrationConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Vendor  string `yaml:"vendor"`
}

// RedisConfig enables the GET response cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL:            DefaultBaseURL,
		Workers:            client.DefaultWorkers,
		PageSize:           200,
		Limit:              99999,
		InsecureSkipVerify: true,
		ConnectTimeout:     Duration(client.DefaultConnectTimeout),
		ReadTimeout:        Duration(client.DefaultReadTimeout),
		Redis: RedisConfig{
			TTL: Duration(5 * time.Minute),
		},
		Log: logging.DefaultConfig(),
	}
}

// Load reads a YAML file over the defaults. It does not apply the
// environment or validate; callers do both after Load.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays WSAPI_* variables read through getenv (os.Getenv when
// nil). An invalid WSAPI_WORKERS is reported and the configured count is
// kept; the remaining variables are still applied. Counts below 1 become 1.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}

	var errs []error

	if v := getenv(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := getenv(EnvAPIKey); v != "" {
		c.APIKey = v
	}
	if v := getenv(EnvUsername); v != "" {
		c.Username = v
	}
	if v := getenv(EnvPassword); v != "" {
		c.Password = v
	}
	if v := getenv(EnvWorkers); v != "" {
		n, err := client.ParseWorkers(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvWorkers, err))
		} else {
			c.Workers = max(n, client.MinWorkers)
		}
	}
	if v := getenv(EnvDebug); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid boolean %q", EnvDebug, v))
		} else {
			c.Debug = enabled
		}
	}
	if v := getenv(EnvRedisAddr); v != "" {
		c.Redis.Addr = v
	}

	return errors.Join(errs...)
}

// Validate checks the configuration for values the client cannot use.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.BaseURL)
	switch {
	case c.BaseURL == "":
		errs = append(errs, errors.New("base_url is required"))
	case err != nil:
		errs = append(errs, fmt.Errorf("base_url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("base_url must use http or https (got %q)", c.BaseURL))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("base_url must include a host (got %q)", c.BaseURL))
	}

	if c.PageSize < 0 {
		errs = append(errs, fmt.Errorf("page_size must be >= 0 (got %d)", c.PageSize))
	}
	if c.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("connect_timeout must be >= 0 (got %s)", c.ConnectTimeout.Duration()))
	}
	if c.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("read_timeout must be >= 0 (got %s)", c.ReadTimeout.Duration()))
	}
	if c.Username != "" && c.Password == "" && c.APIKey == "" {
		errs = append(errs, errors.New("password is required with username"))
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.requests_per_second must be >= 0 (got %g)", c.RateLimit.RequestsPerSecond))
	}
	if c.RateLimit.Burst < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.burst must be >= 0 (got %d)", c.RateLimit.Burst))
	}
	if c.Redis.TTL < 0 {
		errs = append(errs, fmt.Errorf("redis.ttl must be >= 0 (got %s)", c.Redis.TTL.Duration()))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}

// URL joins a resource path such as "defect" or "/hierarchicalrequirement"
// onto the base URL.
func (c *Config) URL(resource string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(resource, "/")
}

// HeaderTemplate returns the request header template: integration headers plus
// any configured extras.
func (c *Config) HeaderTemplate() http.Header {
	h := http.Header{}
	if c.Integration.Name != "" {
		h.Set(HeaderIntegrationName, c.Integration.Name)
	}
	if c.Integration.Version != "" {
		h.Set(HeaderIntegrationVersion, c.Integration.Version)
	}
	if c.Integration.Vendor != "" {
		h.Set(HeaderIntegrationVendor, c.Integration.Vendor)
	}
	for k, v := range c.Headers {
		h.Set(k, v)
	}
	return h
}

// ClientConfig translates the configuration into a client.Config. Cache and
// limiter are left for the caller to attach.
func (c *Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig()
	cfg.Headers = c.HeaderTemplate()
	cfg.APIKey = c.APIKey
	cfg.Username = c.Username
	cfg.Password = c.Password
	cfg.Workers = c.Workers
	cfg.ConnectTimeout = c.ConnectTimeout.Duration()
	cfg.ReadTimeout = c.ReadTimeout.Duration()
	cfg.InsecureSkipVerify = c.InsecureSkipVerify
	cfg.Proxy = c.Proxy
	cfg.Debug = c.Debug
	return cfg
}
