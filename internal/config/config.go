package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string
	CurrencyCode       string

	PolicyFile          string
	PolicyRemoteURL     string
	PolicyRemoteTimeout time.Duration
	PolicyRemoteRefresh time.Duration
	PolicyCacheTTL      time.Duration
	ProductsFile        string
	CatalogCacheTTL     time.Duration
	CartTTL             time.Duration
	IdempotencyTTL      time.Duration

	DefaultTaxPolicy      string
	DefaultShippingPolicy string

	QuoteRateLimitPerMin int
	APIRateLimit         string
	BodyLimitBytes       int64

	Obs ObsConfig
}

// ObsConfig groups logging, metrics and tracing settings.
type ObsConfig struct {
	LogFormat        string
	LogLevel         string
	EnablePrometheus bool
	MetricsNamespace string
	HTTPBuckets      string
	EnableTracing    bool
	TraceExporter    string
	OTLPEndpoint     string
	SamplingRatio    float64
	ServiceName      string
	EnablePprof      bool
	PprofUser        string
	PprofPass        string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CurrencyCode:       strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "KZT")),

		PolicyFile:          strings.TrimSpace(k.String("POLICY_FILE")),
		PolicyRemoteURL:     strings.TrimSpace(k.String("POLICY_REMOTE_URL")),
		PolicyRemoteTimeout: parseDuration(k.String("POLICY_REMOTE_TIMEOUT"), "3s"),
		PolicyRemoteRefresh: parseDuration(k.String("POLICY_REMOTE_REFRESH"), "30s"),
		PolicyCacheTTL:      parseDuration(k.String("POLICY_CACHE_TTL"), "5m"),
		ProductsFile:        strings.TrimSpace(k.String("PRODUCTS_FILE")),
		CatalogCacheTTL:     parseDuration(k.String("CATALOG_CACHE_TTL"), "1m"),
		CartTTL:             parseDuration(k.String("CART_TTL"), "168h"),
		IdempotencyTTL:      parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		DefaultTaxPolicy:      valueOrDefault(k.String("CHECKOUT_DEFAULT_TAX_POLICY"), "progressive"),
		DefaultShippingPolicy: valueOrDefault(k.String("CHECKOUT_DEFAULT_SHIPPING_POLICY"), "none"),

		QuoteRateLimitPerMin: parseInt(k.String("RATE_LIMIT_QUOTES_PER_MIN"), 120),
		APIRateLimit:         valueOrDefault(k.String("RATE_LIMIT_API"), "600-M"),
		BodyLimitBytes:       int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),

		Obs: ObsConfig{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			EnablePrometheus: parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "toko"),
			HTTPBuckets:      k.String("OBS_HTTP_BUCKETS_MS"),
			EnableTracing:    parseBool(k.String("OBS_ENABLE_TRACING"), false),
			TraceExporter:    valueOrDefault(k.String("OBS_TRACE_EXPORTER"), "otlp"),
			OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
			ServiceName:      valueOrDefault(k.String("OBS_SERVICE_NAME"), "toko-storefront"),
			EnablePprof:      parseBool(k.String("OBS_ENABLE_PPROF"), false),
			PprofUser:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
			PprofPass:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.QuoteRateLimitPerMin < 0 {
		return fmt.Errorf("RATE_LIMIT_QUOTES_PER_MIN must not be negative")
	}
	if c.BodyLimitBytes < 0 {
		return fmt.Errorf("BODY_LIMIT_BYTES must not be negative")
	}
	if c.Obs.SamplingRatio < 0 || c.Obs.SamplingRatio > 1 {
		return fmt.Errorf("OBS_TRACING_SAMPLING_RATIO must be within [0,1]")
	}
	return nil
}

// RedisEnabled reports whether Redis-backed components should be wired.
func (c *Config) RedisEnabled() bool { return c.RedisURL != "" }

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
