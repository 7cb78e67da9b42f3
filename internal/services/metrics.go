package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// pollsStarted counts background polls launched by the registry.
	pollsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "onboarding_polls_started_total",
		Help: "Background SSL validation polls started.",
	})

	// pollsJoined counts onboarding requests that attached to a running poll.
	pollsJoined = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "onboarding_polls_joined_total",
		Help: "Onboarding requests that joined an existing poll for the same domain.",
	})

	// pollOutcomes counts finished polls by outcome (persisted|timeout|cancelled|error).
	pollOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "onboarding_poll_outcomes_total",
		Help: "Finished background polls by outcome.",
	}, []string{"outcome"})

	pollsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "onboarding_polls_active",
		Help: "Background polls currently running.",
	})

	// registrarOps counts registrar calls by registrar and outcome
	// (success|no_changes|not_found|error).
	registrarOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registrar_operations_total",
		Help: "Downstream registrar operations by registrar and outcome.",
	}, []string{"registrar", "outcome"})
)

func init() {
	prometheus.MustRegister(pollsStarted, pollsJoined, pollOutcomes, pollsActive, registrarOps)
}
