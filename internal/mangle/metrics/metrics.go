// Package metrics declares the engine's Prometheus instrumentation.
// Grounded on client/doublezerod/internal/manager/metrics.go's pattern:
// package-level promauto.New*Vec constructors plus a small const block of
// label values, wired into each component's hot path rather than computed
// on demand.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/netshroud/shroud/internal/mangle/packet"
)

// Queue status labels for QueueLength, matching packet.QueueStatus.String().
const (
	LabelStatusYoung = "young"
	LabelStatusKeep  = "keep"
	LabelStatusSend  = "send"
)

const (
	labelJudgePrescription = "prescription"
	labelJudgeInnocent     = "innocent"
	labelJudgeGuilty       = "guilty"
	labelJudgeMalformed    = "malformed"
)

var (
	// QueueLength is the current packet count per lifecycle list.
	QueueLength = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "shroud",
		Subsystem: "queue",
		Name:      "length",
		Help:      "Current number of packets on each PacketQueue list.",
	}, []string{"status"})

	// SessionMapSize is the current SessionMap entry count.
	SessionMapSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "shroud",
		Subsystem: "session",
		Name:      "map_size",
		Help:      "Current number of tracked sessions.",
	})

	// SessionEvictions counts SessionMap.Manage evictions.
	SessionEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shroud",
		Subsystem: "session",
		Name:      "evictions_total",
		Help:      "Total sessions evicted by idle-age or size bound.",
	})

	// TTLFocusMapSize is the current TTLFocusMap entry count.
	TTLFocusMapSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "shroud",
		Subsystem: "ttlfocus",
		Name:      "map_size",
		Help:      "Current number of tracked destination TTL foci.",
	})

	// TTLFocusEvictions counts TTLFocusMap.Manage evictions.
	TTLFocusEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shroud",
		Subsystem: "ttlfocus",
		Name:      "evictions_total",
		Help:      "Total TTL foci evicted by idle-age or size bound.",
	})

	// TTLFocusTopologyMismatch counts NoteObservedTTL mismatches across all
	// foci (the supplemental topology-change hook).
	TTLFocusTopologyMismatch = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shroud",
		Subsystem: "ttlfocus",
		Name:      "topology_mismatch_total",
		Help:      "Total inbound TTL observations that disagreed with a KNOWN focus's learned ttl_synack.",
	})

	// TTLProbesSent counts forged TTL-bruteforce probes emitted.
	TTLProbesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shroud",
		Subsystem: "ttlfocus",
		Name:      "probes_sent_total",
		Help:      "Total TTL bruteforce probes emitted by execute_ttl_bruteforces.",
	})

	// EngineTicks counts completed engine ticks.
	EngineTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shroud",
		Subsystem: "engine",
		Name:      "ticks_total",
		Help:      "Total HackEngine ticks run to completion.",
	})

	// InjectedPackets counts plugin-injected decoys by judge.
	InjectedPackets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shroud",
		Subsystem: "engine",
		Name:      "injected_packets_total",
		Help:      "Total decoy packets injected by inject_hack, labeled by judge.",
	}, []string{"judge"})

	// PluginLoads counts load attempts by outcome.
	PluginLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shroud",
		Subsystem: "plugin",
		Name:      "loads_total",
		Help:      "Plugin load attempts, labeled by outcome (ok|rejected).",
	}, []string{"outcome"})
)

// JudgeLabel returns the metric label for a packet.Judge value.
func JudgeLabel(j packet.Judge) string {
	switch j {
	case packet.JudgePrescription:
		return labelJudgePrescription
	case packet.JudgeInnocent:
		return labelJudgeInnocent
	case packet.JudgeGuilty:
		return labelJudgeGuilty
	case packet.JudgeMalformed:
		return labelJudgeMalformed
	default:
		return "unassigned"
	}
}
