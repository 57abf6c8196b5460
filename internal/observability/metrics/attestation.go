package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by attestation and proving metrics.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeProved   = "proved"
	OutcomeRetry    = "retry"
	OutcomeFailed   = "failed"
)

var (
	attestations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attest_attestations_total",
		Help: "Attestation requests by kind and outcome.",
	}, []string{"kind", "outcome"})

	provingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "attest_proving_duration_seconds",
		Help:    "Time spent in setup, prove and verify for one job.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 9),
	}, []string{"kind", "outcome"})

	jobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "attest_proving_jobs_in_flight",
		Help: "Proving jobs currently held by workers.",
	})
)

// ObserveAttestation counts one pass through the attestation pipeline.
func ObserveAttestation(kind, outcome string) {
	attestations.WithLabelValues(kind, outcome).Inc()
}

// ObserveProving records how long a proving job took.
func ObserveProving(kind, outcome string, duration time.Duration) {
	provingDuration.WithLabelValues(kind, outcome).Observe(duration.Seconds())
}

// TrackJob marks a job as in flight until the returned func is called.
func TrackJob() func() {
	jobsInFlight.Inc()
	return jobsInFlight.Dec
}
