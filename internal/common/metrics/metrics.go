// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_turns_processed_total",
			Help: "Total number of inbound message turns processed",
		},
		[]string{"tenant"},
	)

	IntentDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_decisions_total",
			Help: "Intent scoring decisions by outcome",
		},
		[]string{"tenant", "decision"},
	)

	Escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_escalations_total",
			Help: "Sessions handed off to a human agent",
		},
		[]string{"tenant", "reason"},
	)

	ProviderFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_failures_total",
			Help: "Provider gateway failures by capability and error code",
		},
		[]string{"capability", "error_code"},
	)

	DroppedTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_turns_dropped_total",
			Help: "Turns dropped after an unresolvable session write conflict",
		},
		[]string{"tenant"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "conversation_turn_duration_seconds",
			Help: "Duration of turn processing in seconds",
		},
		[]string{"tenant"},
	)
)
