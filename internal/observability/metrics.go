package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector the coordination pipeline
// publishes. A nil *Metrics is not usable; callers should always go through
// New or NewRegistered.
type Metrics struct {
	AuditQueueDepth    prometheus.Gauge
	AuditEntriesTotal  prometheus.Counter
	EscalationsTotal   *prometheus.CounterVec // label: level
	ApprovalLatency    prometheus.Histogram
	ApprovalOutcomes   *prometheus.CounterVec // label: status
	MonitorTicksTotal  *prometheus.CounterVec // label: spec
	MonitorDropsTotal  *prometheus.CounterVec // label: spec
	SelfcodeStageSecs  *prometheus.HistogramVec // label: stage
	RoutingDecisions   *prometheus.CounterVec // label: method
	CircuitBreakerTrip *prometheus.CounterVec // label: worker
}

// New builds the collector set without registering it anywhere; callers
// that want /metrics exposure should use NewRegistered instead.
func New() *Metrics {
	return &Metrics{
		AuditQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "atlas",
			Subsystem: "audit",
			Name:      "queue_depth",
			Help:      "Current number of entries held in the audit trail.",
		}),
		AuditEntriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "atlas",
			Subsystem: "audit",
			Name:      "entries_total",
			Help:      "Total audit entries appended.",
		}),
		EscalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atlas",
			Subsystem: "escalation",
			Name:      "total",
			Help:      "Total escalations by resulting level.",
		}, []string{"level"}),
		ApprovalLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "atlas",
			Subsystem: "approval",
			Name:      "resolution_seconds",
			Help:      "Time from RequestApproval to resolution (approve, reject, or timeout).",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		ApprovalOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atlas",
			Subsystem: "approval",
			Name:      "outcomes_total",
			Help:      "Approval resolutions by status.",
		}, []string{"status"}),
		MonitorTicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atlas",
			Subsystem: "monitor",
			Name:      "ticks_total",
			Help:      "Monitor spec ticks dispatched.",
		}, []string{"spec"}),
		MonitorDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atlas",
			Subsystem: "monitor",
			Name:      "drops_total",
			Help:      "Monitor spec ticks dropped because a prior tick was still in flight.",
		}, []string{"spec"}),
		SelfcodeStageSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "atlas",
			Subsystem: "selfcode",
			Name:      "stage_duration_seconds",
			Help:      "Self-coding pipeline stage durations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		RoutingDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atlas",
			Subsystem: "router",
			Name:      "decisions_total",
			Help:      "Routing decisions by selection method (explicit, keyword, none).",
		}, []string{"method"}),
		CircuitBreakerTrip: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atlas",
			Subsystem: "coordinator",
			Name:      "circuit_breaker_trips_total",
			Help:      "Circuit breaker state transitions to open, by worker.",
		}, []string{"worker"}),
	}
}

// NewRegistered builds the collector set and registers every collector on
// reg. Use this from cmd/atlas before exposing promhttp.Handler().
func NewRegistered(reg prometheus.Registerer) *Metrics {
	m := New()
	reg.MustRegister(
		m.AuditQueueDepth,
		m.AuditEntriesTotal,
		m.EscalationsTotal,
		m.ApprovalLatency,
		m.ApprovalOutcomes,
		m.MonitorTicksTotal,
		m.MonitorDropsTotal,
		m.SelfcodeStageSecs,
		m.RoutingDecisions,
		m.CircuitBreakerTrip,
	)
	return m
}
