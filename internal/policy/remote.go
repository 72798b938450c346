package policy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/resilience"
)

const maxRemoteDocumentBytes = 1 << 20

// RemoteConfig configures a Remote catalog.
type RemoteConfig struct {
	URL             string
	Timeout         time.Duration
	RefreshInterval time.Duration
	Fallback        Catalog
	Logger          zerolog.Logger
	Client          *http.Client
	Breaker         *resilience.Breaker
	Now             func() time.Time
}

// Remote fetches the policy document from an HTTP endpoint and keeps it for the
// refresh interval. Failed fetches fall back to the last good document, then to the
// configured fallback catalog.
type Remote struct {
	url      string
	client   resilience.HTTPClient
	fallback Catalog
	logger   zerolog.Logger
	refresh  time.Duration
	now      func() time.Time

	mu        sync.Mutex
	lastGood  *Static
	checkedAt time.Time
}

// NewRemote constructs a remote catalog.
func NewRemote(cfg RemoteConfig) *Remote {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget(resilience.TargetPolicyRemote).WithLogger(cfg.Logger)
	}
	refresh := cfg.RefreshInterval
	if refresh <= 0 {
		refresh = 30 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Remote{
		url: strings.TrimSpace(cfg.URL),
		client: resilience.HTTPClient{
			Client:      httpClient,
			Breaker:     breaker,
			BaseBackoff: 100 * time.Millisecond,
			MaxAttempts: 3,
			Jitter:      0.2,
			Timeout:     timeout,
		},
		fallback: cfg.Fallback,
		logger:   cfg.Logger,
		refresh:  refresh,
		now:      now,
	}
}

// Snapshot implements Snapshotter. Every list of the returned catalog comes from the
// same fetched document.
func (r *Remote) Snapshot(ctx context.Context) (Catalog, error) {
	c, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	return Snapshot(ctx, c)
}

// ListPromotions implements Catalog.
func (r *Remote) ListPromotions(ctx context.Context) ([]Promotion, error) {
	c, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	return c.ListPromotions(ctx)
}

// ListTaxPolicies implements Catalog.
func (r *Remote) ListTaxPolicies(ctx context.Context) ([]TaxPolicy, error) {
	c, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	return c.ListTaxPolicies(ctx)
}

// ListShippingPolicies implements Catalog.
func (r *Remote) ListShippingPolicies(ctx context.Context) ([]pricing.ShippingPolicy, error) {
	c, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	return c.ListShippingPolicies(ctx)
}

// current returns the cached document while it is fresh and refetches otherwise. The
// mutex is held across the fetch so concurrent callers share one request.
func (r *Remote) current(ctx context.Context) (Catalog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.lastGood != nil && now.Sub(r.checkedAt) < r.refresh {
		return r.lastGood, nil
	}

	static, err := r.fetch(ctx)
	if err == nil {
		r.lastGood = static
		r.checkedAt = now
		return static, nil
	}

	logger := r.logger.Warn().Err(err).Str("url", r.url)
	switch {
	case r.lastGood != nil:
		r.checkedAt = now
		logger.Msg("policy_remote_stale")
		observeFallback("last_good")
		return r.lastGood, nil
	case r.fallback != nil:
		logger.Msg("policy_remote_fallback")
		observeFallback("fallback")
		return r.fallback, nil
	default:
		return nil, err
	}
}

func (r *Remote) fetch(ctx context.Context) (*Static, error) {
	if r.url == "" {
		return nil, fmt.Errorf("policy remote: url not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("policy remote: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml")
	resp, err := r.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("policy remote: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("policy remote: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("policy remote: read body: %w", err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return NewStatic(doc)
}

func observeFallback(source string) {
	if obs.PolicyRemoteFallbackTotal != nil {
		obs.PolicyRemoteFallbackTotal.WithLabelValues(source).Inc()
	}
}
