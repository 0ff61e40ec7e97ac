package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Claim lifecycle counters, partitioned by claim type and outcome.

var (
	ClaimsSubmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "digitalid",
		Subsystem: "orchestrator",
		Name:      "claims_submitted_total",
		Help:      "Total verification claims accepted for processing",
	}, []string{"claim_type"})

	ClaimsResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "digitalid",
		Subsystem: "orchestrator",
		Name:      "claims_resolved_total",
		Help:      "Total verification claims resolved",
	}, []string{"claim_type", "status"})

	ClaimProcessingErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "digitalid",
		Subsystem: "orchestrator",
		Name:      "processing_errors_total",
		Help:      "Total claim processing failures by error class",
	}, []string{"class"})

	ClaimProcessingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "digitalid",
		Subsystem: "orchestrator",
		Name:      "processing_duration_seconds",
		Help:      "End-to-end claim processing duration including provider call",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"claim_type"})

	ProviderCallLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "digitalid",
		Subsystem: "kyc",
		Name:      "provider_call_duration_seconds",
		Help:      "KYC provider call duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"outcome"})

	SweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "digitalid",
		Subsystem: "orchestrator",
		Name:      "sweep_runs_total",
		Help:      "Total reconciliation sweep runs executed",
	}, []string{"result"})

	SweepRecoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "digitalid",
		Subsystem: "orchestrator",
		Name:      "sweep_recovered_total",
		Help:      "Total stuck pending claims picked up by the sweep",
	})

	ClaimsArchivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "digitalid",
		Subsystem: "orchestrator",
		Name:      "claims_archived_total",
		Help:      "Total resolved claims archived by the cleanup loop",
	})
)
