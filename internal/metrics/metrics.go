package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the audit service
type Metrics struct {
	// Audit runs
	AuditsTotal   prometheus.Counter
	AuditsFailed  prometheus.Counter
	AuditDuration prometheus.Histogram

	// Per-group outcomes
	GroupsAudited     *prometheus.CounterVec
	GroupsSkipped     *prometheus.CounterVec
	BalancedAccuracy  *prometheus.GaugeVec
	AdaptiveThreshold *prometheus.GaugeVec
	FairnessScore     *prometheus.GaugeVec

	// Embedding cache and provider
	EmbedCacheHits   prometheus.Counter
	EmbedCacheMisses prometheus.Counter
	EmbedCacheShared prometheus.Counter
	EmbedCacheEvicts prometheus.Counter
	EmbedFailures    *prometheus.CounterVec
	EmbedDuration    prometheus.Histogram

	// Serving
	CompareDecisions *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	RateLimited      prometheus.Counter
}

// New creates and registers all metrics on the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not panic.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AuditsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "fairaudit_audits_total",
			Help: "Total number of fairness audits started",
		}),
		AuditsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "fairaudit_audits_failed_total",
			Help: "Number of fairness audits that produced no group report",
		}),
		AuditDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fairaudit_audit_duration_seconds",
			Help:    "Wall time of a full fairness audit",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}),

		GroupsAudited: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fairaudit_groups_audited_total",
				Help: "Group reports produced, by group and interpretation status",
			},
			[]string{"group", "status"},
		),
		GroupsSkipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fairaudit_groups_skipped_total",
				Help: "Groups skipped because the folder was missing or had no usable images",
			},
			[]string{"group"},
		),
		BalancedAccuracy: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fairaudit_group_balanced_accuracy",
				Help: "Balanced accuracy of the last audit per group and variant (baseline|mitigated)",
			},
			[]string{"group", "variant"},
		),
		AdaptiveThreshold: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fairaudit_group_adaptive_threshold",
				Help: "Adaptive threshold calibrated by the last audit per group",
			},
			[]string{"group"},
		),
		FairnessScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fairaudit_fairness_score",
				Help: "Overall fairness score of the last audit by variant (baseline|mitigated)",
			},
			[]string{"variant"},
		),

		EmbedCacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "fairaudit_embed_cache_hits_total",
			Help: "Embedding lookups served from the cache",
		}),
		EmbedCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "fairaudit_embed_cache_misses_total",
			Help: "Embedding lookups that called the provider",
		}),
		EmbedCacheShared: f.NewCounter(prometheus.CounterOpts{
			Name: "fairaudit_embed_cache_shared_total",
			Help: "Embedding lookups that joined an in-flight computation for the same key",
		}),
		EmbedCacheEvicts: f.NewCounter(prometheus.CounterOpts{
			Name: "fairaudit_embed_cache_evictions_total",
			Help: "Embeddings dropped from the in-process cache for capacity",
		}),
		EmbedFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fairaudit_embed_failures_total",
				Help: "Images that produced no embedding, by reason",
			},
			[]string{"reason"},
		),
		EmbedDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fairaudit_embed_duration_seconds",
			Help:    "Latency of embedding provider calls",
			Buckets: prometheus.DefBuckets,
		}),

		CompareDecisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fairaudit_compare_decisions_total",
				Help: "Threshold decisions by threshold source and outcome",
			},
			[]string{"source", "within"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fairaudit_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "fairaudit_http_rate_limited_total",
			Help: "Requests rejected by the token bucket",
		}),
	}
}
