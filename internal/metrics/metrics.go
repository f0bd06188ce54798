// Package metrics provides Prometheus instrumentation for the moderation
// engine. It exposes counters for message outcomes and issued actions,
// gauges for queue and store sizes, and a histogram for per-message decision
// latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MessagesTotal counts processed messages by decision outcome:
	// "deduped", "out_of_scope", "command", "inactive", "unattributable",
	// "clean", "violation", or "error".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "modguard_messages_total",
		Help: "Total number of inbound messages by decision outcome",
	}, []string{"outcome"})

	// CommandsTotal counts recognized operator commands by type and result
	// ("ok", "denied", "usage").
	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "modguard_commands_total",
		Help: "Total number of recognized operator commands",
	}, []string{"type", "result"})

	// ActionsTotal counts moderation actions requested from the transport,
	// labeled by action ("delete", "warn", "remove", "deny", "notice") and
	// outcome ("ok", "failed").
	ActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "modguard_actions_total",
		Help: "Total number of moderation actions issued to the transport",
	}, []string{"action", "outcome"})

	// QueueDepth tracks the number of messages waiting for the decision worker.
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "modguard_queue_depth",
		Help: "Current number of messages in the processing queue",
	})

	// DedupLedgerSize tracks the number of message IDs in the dedup ledger.
	DedupLedgerSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "modguard_dedup_ledger_size",
		Help: "Current number of message identifiers in the dedup ledger",
	})

	// TrackedIdentities tracks identities with at least one strike.
	TrackedIdentities = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "modguard_tracked_identities",
		Help: "Current number of identities with a non-zero warning count",
	})

	// DecisionLatency records the full decision-procedure latency per message,
	// including transport I/O for delete/send/remove.
	DecisionLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "modguard_decision_latency_seconds",
		Help:    "Per-message decision procedure latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})
)

func init() {
	prometheus.MustRegister(
		MessagesTotal,
		CommandsTotal,
		ActionsTotal,
		QueueDepth,
		DedupLedgerSize,
		TrackedIdentities,
		DecisionLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
