// Package metrics exposes the Prometheus counters and histograms the CLI
// and registry service publish around sign/verify/revocation operations.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups the metrics this module publishes, constructed once per
// process and passed by reference to call sites.
type Registry struct {
	SignTotal             *prometheus.CounterVec
	VerifyTotal           *prometheus.CounterVec
	VerifyDurationSeconds prometheus.Histogram
	RevocationCheckTotal  *prometheus.CounterVec
}

// NewRegistry registers and returns a fresh set of metrics against reg.
// Passing nil uses prometheus.DefaultRegisterer via promauto.
func NewRegistry(reg prometheus.Registerer) *Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Registry{
		SignTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "skillvault_sign_total",
			Help: "Total number of skill signing operations, by outcome.",
		}, []string{"outcome"}),
		VerifyTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "skillvault_verify_total",
			Help: "Total number of skill verifications, by trust level.",
		}, []string{"trust_level"}),
		VerifyDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "skillvault_verify_duration_seconds",
			Help:    "Wall-clock duration of Verifier.Verify calls.",
			Buckets: prometheus.DefBuckets,
		}),
		RevocationCheckTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "skillvault_revocation_check_total",
			Help: "Total number of revocation evaluations, by decision.",
		}, []string{"decision"}),
	}
}

// Handler returns the standard Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
