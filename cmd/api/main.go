package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/cache"
	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/checkout"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/config"
	"github.com/noah-isme/toko-storefront/internal/health"
	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/policy"
	"github.com/noah-isme/toko-storefront/internal/ratelimit"
	"github.com/noah-isme/toko-storefront/internal/resilience"
	"github.com/noah-isme/toko-storefront/internal/security"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
	resilience.MustRegisterMetrics(cfg.Obs.MetricsNamespace, nil)

	if cfg.Obs.EnableTracing {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   cfg.Obs.ServiceName,
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TraceExporter,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("failed to initialise tracing")
		} else {
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(flushCtx); err != nil {
					logger.Error().Err(err).Msg("failed to shutdown tracer provider")
				}
			}()
		}
	}

	redisClient := connectRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	validate := common.NewValidator()

	products, err := catalog.LoadRepository(cfg.ProductsFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("load products")
	}
	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Store:     products,
		Cache:     cache.NewJSON(redisClient, cfg.CatalogCacheTTL),
		Validator: validate,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("catalog service")
	}

	policies, err := buildPolicyCatalog(cfg, redisClient, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("load policies")
	}

	var (
		cartStore  cart.Store  = cart.NewMemoryStore()
		cartLocker lock.Locker = &lock.Local{}
	)
	if redisClient != nil {
		cartStore = cart.NewRedisStore(cache.NewJSON(redisClient, cfg.CartTTL))
		cartLocker = lock.Redis{R: redisClient}
	}
	cartSvc, err := cart.NewService(cart.ServiceConfig{Store: cartStore, Products: catalogSvc, Locker: cartLocker, Logger: logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("cart service")
	}

	checkoutSvc, err := checkout.NewService(checkout.ServiceConfig{
		Policies:              policies,
		Products:              catalogSvc,
		Carts:                 cartSvc,
		DefaultTaxPolicy:      cfg.DefaultTaxPolicy,
		DefaultShippingPolicy: cfg.DefaultShippingPolicy,
		Logger:                logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("checkout service")
	}

	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogSvc})
	policyHandler := policy.NewHandler(policies)
	cartHandler := &cart.Handler{Svc: cartSvc, Validator: validate}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc, Validator: validate, Currency: cfg.CurrencyCode}

	var writeMW func(http.Handler) http.Handler
	if redisClient != nil {
		writeMW = common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}.Middleware
	}

	onLimiterError := func(err error) {
		logger.Warn().Err(err).Msg("rate_limiter_unavailable")
	}
	globalLimit, err := ratelimit.NewGlobal(ratelimit.GlobalConfig{
		Rate:    cfg.APIRateLimit,
		Redis:   redisUniversal(redisClient),
		OnError: onLimiterError,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api rate limiter")
	}

	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.EnablePrometheus {
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.HTTPBuckets), nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.Obs.EnableTracing {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Total-Count", "X-RateLimit-Remaining", "Idempotent-Replayed"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if cfg.Obs.EnablePrometheus {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.Obs.EnablePprof {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.Obs.PprofUser, cfg.Obs.PprofPass))
	}

	healthHandler := health.Handler{Probes: readinessProbes(redisClient, policies), Timeout: 500 * time.Millisecond}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	quoteLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisUniversal(redisClient)},
		Config: ratelimit.Config{
			Key:    ratelimit.ByClientIP("quote"),
			Window: time.Minute,
			Max:    cfg.QuoteRateLimitPerMin,
		},
		OnError: onLimiterError,
	}

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(globalLimit)

		v.Group(func(g chi.Router) {
			if writeMW != nil {
				g.Use(onlyWrites(writeMW))
			}
			catalogHandler.Routes(g)
		})

		v.Get("/promotions", policyHandler.Promotions)
		v.Get("/taxes", policyHandler.TaxPolicies)
		v.Get("/shipping-policies", policyHandler.ShippingPolicies)

		v.Route("/carts", cartHandler.Routes(writeMW))

		v.Route("/checkout", func(c chi.Router) {
			if redisClient != nil && cfg.QuoteRateLimitPerMin > 0 {
				c.Use(quoteLimit.Middleware)
			}
			checkoutHandler.Routes(c)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("currency", cfg.CurrencyCode).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
		logger.Info().Msg("server stopped")
	}
}

func connectRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	if !cfg.RedisEnabled() {
		logger.Info().Msg("redis disabled, using in-memory carts and no caching")
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse REDIS_URL")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Warn().Err(err).Msg("redis tracing instrumentation failed")
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		logger.Warn().Err(err).Msg("redis metrics instrumentation failed")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis ping failed")
	}
	return client
}

// buildPolicyCatalog layers the remote document and the Redis cache over the static file.
func buildPolicyCatalog(cfg *config.Config, client *redis.Client, logger zerolog.Logger) (policy.Catalog, error) {
	static, err := policy.LoadStatic(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}
	var c policy.Catalog = static
	if cfg.PolicyRemoteURL != "" {
		c = policy.NewRemote(policy.RemoteConfig{
			URL:             cfg.PolicyRemoteURL,
			Timeout:         cfg.PolicyRemoteTimeout,
			RefreshInterval: cfg.PolicyRemoteRefresh,
			Fallback:        static,
			Logger:          logger,
		})
	}
	if client != nil {
		c = policy.NewCached(c, cache.NewJSON(client, cfg.PolicyCacheTTL), logger)
	}
	return c, nil
}

func readinessProbes(client *redis.Client, policies policy.Catalog) map[string]health.Probe {
	probes := map[string]health.Probe{
		"policies": func(ctx context.Context) error {
			_, err := policies.ListShippingPolicies(ctx)
			return err
		},
	}
	if client != nil {
		probes["redis"] = health.RedisProbe(client)
	}
	return probes
}

// redisUniversal avoids handing a typed nil to interface-typed consumers.
func redisUniversal(client *redis.Client) redis.UniversalClient {
	if client == nil {
		return nil
	}
	return client
}

func onlyWrites(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				wrapped.ServeHTTP(w, r)
			}
		})
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
