// Package metrics exposes the trust plane's Prometheus instrumentation:
// rate-limit denials, spam verdicts, raid severity, delivery attempts, and
// active lockdowns.
//
// Grounded on the teacher's internal/monitoring/monitoring_system.go
// counter/gauge registration pattern, generalized from AOCS contract and
// entropy metrics to this domain's four subsystems.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every metric the trust plane emits. Construct one with
// NewRegistry and pass it to each subsystem that reports metrics.
type Registry struct {
	RateLimitChecks   *prometheus.CounterVec
	RateLimitDenied   *prometheus.CounterVec
	SpamVerdicts      *prometheus.CounterVec
	RaidsDetected     *prometheus.CounterVec
	LockdownsActive   *prometheus.GaugeVec
	DeliveryAttempts  *prometheus.CounterVec
	DeliveryLatency   *prometheus.HistogramVec
	TokensIssued      prometheus.Counter
	TokensRevoked     prometheus.Counter
}

// NewRegistry registers every metric against reg. Pass
// prometheus.NewRegistry() in tests to avoid collisions with the global
// default registry across parallel test binaries.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		RateLimitChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trustplane",
			Subsystem: "quota",
			Name:      "checks_total",
			Help:      "Total rate limit admission checks by action.",
		}, []string{"action"}),
		RateLimitDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trustplane",
			Subsystem: "quota",
			Name:      "denied_total",
			Help:      "Total rate limit denials by action.",
		}, []string{"action"}),
		SpamVerdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trustplane",
			Subsystem: "spam",
			Name:      "verdicts_total",
			Help:      "Total spam analysis verdicts by severity.",
		}, []string{"severity", "is_spam"}),
		RaidsDetected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trustplane",
			Subsystem: "raid",
			Name:      "detected_total",
			Help:      "Total raid patterns detected by type and severity.",
		}, []string{"raid_type", "severity"}),
		LockdownsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trustplane",
			Subsystem: "raid",
			Name:      "lockdowns_active",
			Help:      "Currently active lockdowns by level.",
		}, []string{"level"}),
		DeliveryAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trustplane",
			Subsystem: "events",
			Name:      "delivery_attempts_total",
			Help:      "Webhook delivery attempts by final status.",
		}, []string{"status"}),
		DeliveryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trustplane",
			Subsystem: "events",
			Name:      "delivery_duration_seconds",
			Help:      "Time from dispatch start to terminal delivery state.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		TokensIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trustplane",
			Subsystem: "auth",
			Name:      "tokens_issued_total",
			Help:      "Total access/refresh token pairs issued.",
		}),
		TokensRevoked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trustplane",
			Subsystem: "auth",
			Name:      "tokens_revoked_total",
			Help:      "Total tokens revoked.",
		}),
	}
}
