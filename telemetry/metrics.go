package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics wraps a prometheus registerer the way the teacher's
// metrics.Metrics does, giving every mesh component a single place to
// register collectors without importing prometheus directly.
type Metrics struct {
	Registry prometheus.Registerer

	admissionDecisions *prometheus.CounterVec
	routingDecisions   *prometheus.CounterVec
	backpressureEvents *prometheus.CounterVec
	policyRollouts     *prometheus.CounterVec
}

// NewMetrics constructs and registers the mesh's fixed set of counters
// against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Registry: reg,
		admissionDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mesh_admission_decisions_total",
			Help: "Admission engine decisions by outcome and reason.",
		}, []string{"outcome", "reason"}),
		routingDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mesh_routing_decisions_total",
			Help: "Object routing decisions by selected path kind.",
		}, []string{"path_kind"}),
		backpressureEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mesh_backpressure_events_total",
			Help: "Backpressure refusals by path id.",
		}, []string{"path_id"}),
		policyRollouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mesh_policy_rollouts_total",
			Help: "Policy bundle ingestions by zone and outcome.",
		}, []string{"zone", "outcome"}),
	}
	for _, c := range []prometheus.Collector{
		m.admissionDecisions, m.routingDecisions, m.backpressureEvents, m.policyRollouts,
	} {
		_ = m.Register(c)
	}
	return m
}

// Register registers an additional prometheus collector against the same
// registry, mirroring the teacher's Metrics.Register.
func (m *Metrics) Register(collector prometheus.Collector) error {
	return m.Registry.Register(collector)
}

// ObserveAdmission records one ACE decision.
func (m *Metrics) ObserveAdmission(outcome, reason string) {
	m.admissionDecisions.WithLabelValues(outcome, reason).Inc()
}

// ObserveRouting records one TSO routing decision's dominant path kind.
func (m *Metrics) ObserveRouting(pathKind string) {
	m.routingDecisions.WithLabelValues(pathKind).Inc()
}

// ObserveBackpressure records one backpressure refusal.
func (m *Metrics) ObserveBackpressure(pathID string) {
	m.backpressureEvents.WithLabelValues(pathID).Inc()
}

// ObservePolicyRollout records one PMS bundle ingestion attempt.
func (m *Metrics) ObservePolicyRollout(zone, outcome string) {
	m.policyRollouts.WithLabelValues(zone, outcome).Inc()
}
