package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/JaimeStill/scribe/internal/auth"
	"github.com/JaimeStill/scribe/internal/telemetry"
	"github.com/JaimeStill/scribe/pkg/handlers"
	"github.com/JaimeStill/scribe/pkg/lifecycle"
)

// Limiter guards routes with a per-caller token bucket. A disabled Limiter
// passes every request through.
type Limiter struct {
	client     *redis.Client
	bucket     *Bucket
	failClosed bool
	metrics    *telemetry.Metrics
	logger     *slog.Logger
}

// New creates a Limiter. No connection is made until the first request.
func New(cfg *Config, metrics *telemetry.Metrics, logger *slog.Logger) *Limiter {
	l := &Limiter{
		failClosed: cfg.FailClosed,
		metrics:    metrics,
		logger:     logger.With("system", "ratelimit"),
	}
	if !cfg.Enabled {
		return l
	}

	l.client = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	l.bucket = NewBucket(l.client, cfg.KeyPrefix, cfg.Capacity, cfg.RefillPerSecond, cfg.TTLDuration())
	return l
}

func (l *Limiter) Enabled() bool {
	return l.bucket != nil
}

// Start checks Redis connectivity and closes the client on shutdown.
// An unreachable Redis is logged, not fatal; requests then follow fail_closed.
func (l *Limiter) Start(lc *lifecycle.Coordinator) {
	if l.client == nil {
		return
	}

	lc.OnStartup(func() error {
		if err := l.client.Ping(lc.Context()).Err(); err != nil {
			l.logger.Warn("redis unreachable", "addr", l.client.Options().Addr, "error", err)
			return nil
		}
		l.logger.Info("rate limiter connected", "addr", l.client.Options().Addr)
		return nil
	})

	lc.OnShutdown(func() {
		<-lc.Drained()
		if err := l.client.Close(); err != nil {
			l.logger.Error("redis close failed", "error", err)
		}
	})
}

// Allow applies the bucket for key. Redis errors follow the fail_closed setting.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	if l.bucket == nil {
		return Decision{Allowed: true}, nil
	}

	d, err := l.bucket.Allow(ctx, key)
	if err != nil {
		return Decision{Allowed: !l.failClosed}, err
	}
	return d, nil
}

// Middleware rejects callers that exhaust their bucket with 429 and a
// Retry-After header.
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l.bucket == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := callerKey(r)
			d, err := l.Allow(r.Context(), key)
			if err != nil {
				l.logger.Error("rate limit check failed", "key", key, "error", err)
			}

			if !d.Allowed {
				l.metrics.RateLimited()
				if d.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
				}
				status := http.StatusTooManyRequests
				if err != nil {
					status = http.StatusServiceUnavailable
				}
				handlers.RespondError(w, l.logger, status, fmt.Errorf("rate limit exceeded"))
				return
			}

			if err == nil {
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// callerKey identifies the caller by principal, falling back to the client address.
func callerKey(r *http.Request) string {
	if p, ok := auth.FromContext(r.Context()); ok {
		return "user:" + p.Subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
