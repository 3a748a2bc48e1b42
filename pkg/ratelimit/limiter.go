// Package ratelimit gates outgoing WSAPI requests with a token bucket shared
// by every worker of a connection.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request gating.
var (
	wsapiRateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wsapi_rate_limit_wait_seconds",
		Help:    "Time requests spent waiting for the client-side rate limiter",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	wsapiRateLimitCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wsapi_rate_limit_cancelled_total",
		Help: "Total number of requests abandoned while waiting for the rate limiter",
	})
)

// slowWait is the wait above which a throttled request is logged.
const slowWait = time.Second

// Config holds limiter configuration.
type Config struct {
	// RequestsPerSecond is the sustained request rate. Zero or less disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the number of requests allowed at once (default: 1).
	Burst int `yaml:"burst"`
}

// Limiter gates requests. A nil *Limiter allows every request immediately.
type Limiter struct {
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// New creates a limiter from cfg. It returns nil when limiting is disabled.
func New(cfg Config, logger zerolog.Logger) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		logger:  logger,
	}
}

// Wait blocks until a request may be issued or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}

	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		wsapiRateLimitCancelledTotal.Inc()
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	waited := time.Since(start)
	wsapiRateLimitWaitSeconds.Observe(waited.Seconds())
	if waited > slowWait {
		l.logger.Warn().
			Dur("wait_duration", waited).
			Float64("limit_rps", float64(l.limiter.Limit())).
			Msg("Request throttled by client-side rate limiter")
	}
	return nil
}

// Limit returns the configured rate, or rate.Inf for a nil limiter.
func (l *Limiter) Limit() rate.Limit {
	if l == nil {
		return rate.Inf
	}
	return l.limiter.Limit()
}
