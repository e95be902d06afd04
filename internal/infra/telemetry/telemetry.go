package telemetry

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// SecurityMetrics counts authentication and throttling outcomes.
type SecurityMetrics struct {
	authFailures *prometheus.CounterVec
	rateLimited  *prometheus.CounterVec
	revocations  prometheus.Counter
}

// NewSecurityMetrics registers the collectors with reg, reusing collectors
// that are already registered under the same name.
func NewSecurityMetrics(reg prometheus.Registerer, namespace string) (*SecurityMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "dreamwise"
	}

	authFailures, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "failures_total",
		Help:      "Rejected authentication attempts partitioned by reason.",
	}, "reason")
	if err != nil {
		return nil, err
	}

	rateLimited, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ratelimit",
		Name:      "rejections_total",
		Help:      "Requests rejected by the rate limiter partitioned by rule.",
	}, "rule")
	if err != nil {
		return nil, err
	}

	revocations := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "token_revocations_total",
		Help:      "Tokens revoked by logout or refresh.",
	})
	if err := reg.Register(revocations); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, fmt.Errorf("register revocations collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(prometheus.Counter)
		if !ok {
			return nil, fmt.Errorf("existing revocations collector has unexpected type %T", already.ExistingCollector)
		}
		revocations = existing
	}

	return &SecurityMetrics{
		authFailures: authFailures,
		rateLimited:  rateLimited,
		revocations:  revocations,
	}, nil
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, label string) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(opts, []string{label})
	if err := reg.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, fmt.Errorf("register %s collector: %w", opts.Name, err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("existing %s collector has unexpected type %T", opts.Name, already.ExistingCollector)
		}
		return existing, nil
	}
	return vec, nil
}

// AuthFailure records a rejected credential or token. Safe on a nil receiver.
func (m *SecurityMetrics) AuthFailure(reason string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(reason).Inc()
}

// RateLimited records a 429 for rule.
func (m *SecurityMetrics) RateLimited(rule string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(rule).Inc()
}

func (m *SecurityMetrics) TokenRevoked() {
	if m == nil {
		return
	}
	m.revocations.Inc()
}
