package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutQuotesTotal counts checkout quotes by applied promotion and outcome.
	CheckoutQuotesTotal *prometheus.CounterVec
	// CheckoutBestPromotionTotal counts which promotion automatic selection picked.
	CheckoutBestPromotionTotal *prometheus.CounterVec
	// CheckoutQuoteDuration records quote latency in milliseconds.
	CheckoutQuoteDuration prometheus.Histogram
	// CacheLookupsTotal counts Redis cache lookups by cache name and outcome.
	CacheLookupsTotal *prometheus.CounterVec
	// PolicyRemoteFallbackTotal counts remote policy fetches served from a fallback.
	PolicyRemoteFallbackTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutQuotesTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_quotes_total",
			Help:      "Count of checkout quotes by promotion and outcome.",
		}, []string{"promotion", "result"}))
		CheckoutBestPromotionTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_best_promotion_total",
			Help:      "Count of automatic promotion selections by chosen promotion.",
		}, []string{"promotion"}))
		CheckoutQuoteDuration = registerOrReuse(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_quote_duration_ms",
			Help:      "Latency for checkout quotes in milliseconds.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		}))
		CacheLookupsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Count of cache lookups by cache and outcome.",
		}, []string{"cache", "result"}))
		PolicyRemoteFallbackTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_remote_fallback_total",
			Help:      "Count of remote policy fetch failures by the source that served instead.",
		}, []string{"source"}))
	})
}

// ObserveCacheLookup records a cache hit or miss when domain metrics are registered.
func ObserveCacheLookup(cache string, hit bool) {
	if CacheLookupsTotal == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(cache, result).Inc()
}
