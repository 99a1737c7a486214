package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransfersTotal counts transfer attempts by direction and terminal status.
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courier",
		Name:      "transfers_total",
		Help:      "Transfer attempts by direction and terminal status",
	}, []string{"source_chain", "destination_chain", "status"})

	// TransferLegDuration observes how long each leg takes from build to confirmation.
	TransferLegDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "courier",
		Name:      "transfer_leg_duration_seconds",
		Help:      "Duration of a transfer leg from build to confirmation",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	}, []string{"leg", "chain"})

	// AttestationPollAttempts counts oracle poll attempts.
	AttestationPollAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "courier",
		Name:      "attestation_poll_attempts",
		Help:      "Number of oracle polls before an attestation was ready",
	})

	// AttestationPollDuration observes total wall time spent polling the oracle.
	AttestationPollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "courier",
		Name:      "attestation_poll_duration_seconds",
		Help:      "Total time spent polling the attestation oracle per transfer",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	// RefundsTotal counts ephemeral account refund sweeps by outcome.
	RefundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courier",
		Name:      "refunds_total",
		Help:      "Ephemeral account refund sweeps by outcome",
	}, []string{"outcome"})

	// DatabaseConnectionsGauge tracks connection pool state.
	DatabaseConnectionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "courier",
		Name:      "database_connections",
		Help:      "Database connection pool state",
	}, []string{"state"})
)
