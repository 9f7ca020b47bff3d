// Copyright 2025 Certen Protocol
//
// Prometheus metrics for the ceremony service.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Every gauge/counter the ceremony service exposes, as package-level vars
// registered with the default Prometheus registry in init. The ABCI
// application updates them; the ceremony module does not use them.
var (
	CurrentPhase = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ceremony",
		Name:      "current_phase",
		Help:      "Current ceremony phase (0=Registering, 1=Assigning, 2=Witnessing)",
	})

	CurrentCeremonyIndex = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ceremony",
		Name:      "current_index",
		Help:      "Index of the ceremony cycle currently in progress",
	})

	ParticipantCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ceremony",
		Name:      "participant_count",
		Help:      "Number of participants registered in the current cycle",
	})

	MeetupCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ceremony",
		Name:      "meetup_count",
		Help:      "Number of meetups assigned in the current cycle",
	})

	WitnessesSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ceremony",
		Name:      "witnesses_submitted_total",
		Help:      "Total number of accepted register_witnesses submissions",
	})

	RewardsIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ceremony",
		Name:      "rewards_issued_total",
		Help:      "Total number of participants credited a reward across all closed ceremonies",
	})

	PhaseTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ceremony",
		Name:      "phase_transitions_total",
		Help:      "Total number of AdvancePhase calls, labeled by resulting phase",
	}, []string{"phase"})

	TransactionsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ceremony",
		Name:      "transactions_rejected_total",
		Help:      "Total number of rejected ABCI transactions, labeled by kind",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(
		CurrentPhase,
		CurrentCeremonyIndex,
		ParticipantCount,
		MeetupCount,
		WitnessesSubmittedTotal,
		RewardsIssuedTotal,
		PhaseTransitionsTotal,
		TransactionsRejectedTotal,
	)
}

// Handler returns the HTTP handler that serves the registered metrics
// (mounted at /metrics by main).
func Handler() http.Handler {
	return promhttp.Handler()
}
