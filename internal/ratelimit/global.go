package ratelimit

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/toko-storefront/internal/common"
)

const globalPrefix = "ratelimit:global"

// GlobalConfig configures the API-wide fixed window limiter.
type GlobalConfig struct {
	// Rate uses the ulule format, for example "300-M".
	Rate    string
	Redis   redis.UniversalClient
	OnError func(error)
}

// NewGlobal returns a per-client-IP middleware. The counters live in Redis when a client
// is given and in process memory otherwise. An empty rate disables limiting.
func NewGlobal(cfg GlobalConfig) (func(http.Handler) http.Handler, error) {
	if strings.TrimSpace(cfg.Rate) == "" {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	rate, err := limiter.NewRateFromFormatted(strings.TrimSpace(cfg.Rate))
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse rate %q: %w", cfg.Rate, err)
	}

	var store limiter.Store
	if cfg.Redis != nil {
		store, err = limiterredis.NewStoreWithOptions(cfg.Redis, limiter.StoreOptions{Prefix: globalPrefix, MaxRetry: 3})
		if err != nil {
			return nil, fmt.Errorf("ratelimit: redis store: %w", err)
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: globalPrefix, CleanUpInterval: limiter.DefaultCleanUpInterval})
	}

	mw := stdlib.NewMiddleware(limiter.New(store, rate),
		stdlib.WithKeyGetter(common.ClientIP),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, _ *http.Request) {
			common.JSONError(w, http.StatusTooManyRequests, common.CodeRateLimited, "rate limit exceeded", nil)
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
			if cfg.OnError != nil {
				cfg.OnError(err)
			}
			common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "rate limiter unavailable", nil)
		}),
	)
	return mw.Handler, nil
}
