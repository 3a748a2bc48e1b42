// Package client provides the WSAPI connection: authentication state,
// request headers, security token handling and the single-request executor.
package client

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/rally-wsapi-client/pkg/cache"
	"github.com/Sternrassler/rally-wsapi-client/pkg/logging"
	"github.com/Sternrassler/rally-wsapi-client/pkg/ratelimit"
	"github.com/rs/zerolog"
)

// Worker pool bounds for paged fetches.
const (
	MinWorkers     = 1
	MaxWorkers     = 4
	DefaultWorkers = 4
)

// SessionHeader carries the API key.
const SessionHeader = "ZSESSIONID"

// Connection is shared by every request issued through it. The security
// token, API key and worker count may be changed between paged fetches;
// they must not be changed while a paged fetch is in flight.
type Connection struct {
	httpClient *http.Client
	headers    http.Header
	cache      *cache.Manager
	limiter    *ratelimit.Limiter
	logger     zerolog.Logger

	mu            sync.RWMutex
	securityToken string
	apiKey        string
	username      string
	password      string
	workers       int
	debugEnabled  bool
	debugSink     logging.DebugSink
	debug         zerolog.Logger
}

// Config holds the connection configuration.
type Config struct {
	// Headers is the template copied into every request
	// (e.g. X-RallyIntegrationName, X-RallyIntegrationVersion).
	Headers http.Header

	// Authentication. An API key takes precedence over username/password.
	APIKey   string
	Username string
	Password string

	// SecurityToken presets the token instead of acquiring it over the network.
	SecurityToken string

	// Workers is the paged-fetch worker count, clamped to 1..4 (0 selects the default).
	Workers int

	// Transport
	ConnectTimeout     time.Duration
	ReadTimeout        time.Duration
	InsecureSkipVerify bool
	Proxy              string

	// Getenv resolves proxy environment variables (default: os.Getenv).
	Getenv func(string) string

	// HTTPClient replaces the transport built from the settings above.
	HTTPClient *http.Client

	// Request tracing
	Debug     bool
	DebugSink logging.DebugSink

	// Optional collaborators
	Cache   *cache.Manager
	Limiter *ratelimit.Limiter
}

// DefaultConfig returns the default configuration. TLS certificate
// verification is disabled by default to reach on-premise installations
// with self-signed certificates; New logs a warning whenever it is off.
func DefaultConfig() Config {
	return Config{
		Headers:            http.Header{},
		Workers:            DefaultWorkers,
		ConnectTimeout:     DefaultConnectTimeout,
		ReadTimeout:        DefaultReadTimeout,
		InsecureSkipVerify: true,
	}
}

// New creates a new WSAPI connection.
func New(cfg Config) (*Connection, error) {
	if cfg.ConnectTimeout < 0 {
		return nil, fmt.Errorf("connect_timeout must be >= 0 (got %s)", cfg.ConnectTimeout)
	}
	if cfg.ReadTimeout < 0 {
		return nil, fmt.Errorf("read_timeout must be >= 0 (got %s)", cfg.ReadTimeout)
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}

	logger := logging.NewLogger("wsapi-client")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		proxyURL, err := ResolveProxy(cfg.Proxy, cfg.Getenv)
		if err != nil {
			return nil, err
		}
		if proxyURL != nil {
			logger.Info().Str("proxy", proxyURL.Redacted()).Msg("Using HTTP proxy")
		}
		if cfg.InsecureSkipVerify {
			logger.Warn().Msg("TLS certificate verification is DISABLED for WSAPI requests")
		}
		httpClient = newHTTPClient(cfg, proxyURL)
	}

	headers := cfg.Headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}

	c := &Connection{
		httpClient:    httpClient,
		headers:       headers,
		cache:         cfg.Cache,
		limiter:       cfg.Limiter,
		logger:        logger,
		securityToken: cfg.SecurityToken,
		workers:       clampWorkers(cfg.Workers),
		debugEnabled:  cfg.Debug,
		debugSink:     cfg.DebugSink,
		debug:         logging.NewDebugLogger(cfg.Debug, cfg.DebugSink),
	}
	c.SetAuth(Credentials{APIKey: cfg.APIKey, Username: cfg.Username, Password: cfg.Password})

	return c, nil
}

// Credentials selects how requests authenticate.
type Credentials struct {
	APIKey   string
	Username string
	Password string
}

// SetAuth installs credentials. With an API key, requests carry the
// ZSESSIONID header; otherwise username/password are sent as basic auth.
func (c *Connection) SetAuth(creds Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if creds.APIKey != "" {
		c.apiKey = creds.APIKey
		c.username, c.password = "", ""
		return
	}
	c.apiKey = ""
	c.username, c.password = creds.Username, creds.Password
}

// SetAPIKey installs an API key.
func (c *Connection) SetAPIKey(key string) {
	c.SetAuth(Credentials{APIKey: key})
}

// HasAPIKey reports whether an API key is installed.
func (c *Connection) HasAPIKey() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey != ""
}

// Workers returns the configured paged-fetch worker count.
func (c *Connection) Workers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.workers
}

// SetWorkers sets the worker count, clamped to 1..4, and returns the value
// actually stored.
func (c *Connection) SetWorkers(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workers = clampWorkers(n)
	return c.workers
}

// SetWorkersFromString parses and applies a worker count. Non-integer input
// returns ErrInvalidWorkerCount and leaves the current count unchanged.
func (c *Connection) SetWorkersFromString(s string) error {
	n, err := ParseWorkers(s)
	if err != nil {
		return err
	}
	c.SetWorkers(n)
	return nil
}

// ParseWorkers parses a worker count without clamping it.
func ParseWorkers(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWorkerCount, s)
	}
	return n, nil
}

func clampWorkers(n int) int {
	if n < MinWorkers {
		return MinWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}

// SetDebug toggles request tracing.
func (c *Connection) SetDebug(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debugEnabled = enabled
	c.debug = logging.NewDebugLogger(enabled, c.debugSink)
}

// SetDebugSink replaces the request trace sink. A nil sink writes traces to stdout.
func (c *Connection) SetDebugSink(sink logging.DebugSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debugSink = sink
	c.debug = logging.NewDebugLogger(c.debugEnabled, sink)
}

// Close releases idle transport connections.
func (c *Connection) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// authState is the per-request snapshot of mutable connection state.
type authState struct {
	securityToken string
	apiKey        string
	username      string
	password      string
	debug         zerolog.Logger
}

func (c *Connection) snapshot() authState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return authState{
		securityToken: c.securityToken,
		apiKey:        c.apiKey,
		username:      c.username,
		password:      c.password,
		debug:         c.debug,
	}
}

// fingerprint identifies an API key without exposing it.
func fingerprint(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:8])
}
