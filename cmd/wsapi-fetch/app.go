package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/rally-wsapi-client/internal/credentials"
	"github.com/Sternrassler/rally-wsapi-client/pkg/cache"
	"github.com/Sternrassler/rally-wsapi-client/pkg/client"
	"github.com/Sternrassler/rally-wsapi-client/pkg/config"
	"github.com/Sternrassler/rally-wsapi-client/pkg/logging"
	"github.com/Sternrassler/rally-wsapi-client/pkg/pagination"
	"github.com/Sternrassler/rally-wsapi-client/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const redisPingTimeout = 5 * time.Second

// app holds everything a subcommand needs to talk to WSAPI.
type app struct {
	cfg     *config.Config
	conn    *client.Connection
	fetcher *pagination.Fetcher
	redis   *redis.Client
	logger  zerolog.Logger
}

// loadConfig resolves file, environment and flag settings, in that order.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(o.getenv); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if o.logLevel != "" {
		cfg.Log.Level = logging.LogLevel(o.logLevel)
	}
	if o.debug {
		cfg.Debug = true
	}
	if o.workers != "" {
		n, err := client.ParseWorkers(o.workers)
		if err != nil {
			return nil, fmt.Errorf("--workers: %w", err)
		}
		cfg.Workers = max(n, client.MinWorkers)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newApp loads configuration, configures logging and opens the connection.
func (o *rootOptions) newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Log
	logCfg.Output = cmd.ErrOrStderr()
	logging.Setup(logCfg)
	logger := logging.NewLogger("cli")

	if cfg.APIKey == "" && cfg.Username == "" {
		o.applyStoredKey(cfg, logger)
	}

	ccfg := cfg.ClientConfig()
	ccfg.Getenv = o.getenv
	ccfg.Limiter = ratelimit.New(cfg.RateLimit, logging.NewLogger("ratelimit"))

	a := &app{cfg: cfg, logger: logger}

	if cfg.Redis.Enabled() {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(cmd.Context(), redisPingTimeout)
		defer cancel()
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.redis.Close()
			return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
		ccfg.Cache = cache.NewManager(a.redis, cfg.Redis.TTL.Duration())
	}

	conn, err := client.New(ccfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create WSAPI connection: %w", err)
	}
	a.conn = conn
	a.fetcher = pagination.NewFetcher(conn)
	return a, nil
}

// applyStoredKey fills cfg.APIKey from the keychain when one is stored.
func (o *rootOptions) applyStoredKey(cfg *config.Config, logger zerolog.Logger) {
	store, err := o.openStore()
	if err != nil {
		logger.Debug().Err(err).Msg("Keychain unavailable")
		return
	}
	key, err := store.APIKey()
	switch {
	case err == nil:
		cfg.APIKey = key
		logger.Debug().Msg("Using API key from keychain")
	case errors.Is(err, credentials.ErrNotFound):
	default:
		logger.Warn().Err(err).Msg("Failed to read API key from keychain")
	}
}

// authorize acquires a security token when the connection uses basic auth.
// Servers without a token endpoint are tolerated.
func (a *app) authorize(ctx context.Context) error {
	if a.conn.HasAPIKey() || a.conn.SecurityToken() != "" {
		return nil
	}
	_, err := a.conn.AcquireSecurityToken(ctx, client.SecurityURL(a.cfg.BaseURL))
	return err
}

// Close releases the connection and the Redis client.
func (a *app) Close() {
	if a.conn != nil {
		_ = a.conn.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
