package middleware

import (
	"fmt"
	"net/http"

	"structura/logger"
	"structura/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const rateLimitPrefix = "structura:ratelimit:"

// RateLimitConfig describes one throttled route.
type RateLimitConfig struct {
	// Rate in limiter's "<limit>-<S|M|H|D>" format.
	Rate string
	// Route labels the rejection metric.
	Route string
	// Redis, when set, shares counters across instances.
	Redis *redis.Client
	// TrustForwardHeader keys clients by X-Forwarded-For/X-Real-IP. Enable it
	// only behind a proxy that overwrites those headers.
	TrustForwardHeader bool
}

// RateLimit throttles requests per client IP. Rejected requests get a 429
// with the X-RateLimit-* headers set by the limiter.
func RateLimit(cfg RateLimitConfig) (func(http.Handler) http.Handler, error) {
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", cfg.Rate, err)
	}

	var store limiter.Store
	if cfg.Redis != nil {
		store, err = sredis.NewStoreWithOptions(cfg.Redis, limiter.StoreOptions{
			Prefix:   rateLimitPrefix + cfg.Route + ":",
			MaxRetry: 3,
		})
		if err != nil {
			return nil, fmt.Errorf("creating redis limiter store: %w", err)
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          rateLimitPrefix + cfg.Route + ":",
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		})
	}

	mw := stdlib.NewMiddleware(
		limiter.New(store, rate, limiter.WithTrustForwardHeader(cfg.TrustForwardHeader)),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RateLimited.WithLabelValues(cfg.Route).Inc()
			logger.FromContext(r.Context()).Warn("Rate limit reached", "route", cfg.Route, "remote", r.RemoteAddr)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}`))
		}),
	)
	return mw.Handler, nil
}
