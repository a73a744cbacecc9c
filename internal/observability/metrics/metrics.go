package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Metrics captures payment lifecycle health signals.
type Metrics struct {
	initiations       *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	webhookOutcomes   *prometheus.CounterVec
	pollerRuns        prometheus.Counter
	pollerReconciled  prometheus.Counter
	gatewayDuration   *prometheus.HistogramVec
	unattributedHooks prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		initiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "randa_payment_initiations_total",
			Help: "Payment initiation attempts by result.",
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "randa_payment_transitions_total",
			Help: "Payment status transitions by terminal status and source.",
		}, []string{"status", "source"}),
		webhookOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "randa_payment_webhook_outcomes_total",
			Help: "Parsed webhook outcomes.",
		}, []string{"outcome"}),
		pollerRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "randa_payment_poller_runs_total",
			Help: "Reconciliation sweeps executed.",
		}),
		pollerReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "randa_payment_poller_reconciled_total",
			Help: "Payments converged to a terminal state by the poller.",
		}),
		gatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "randa_gateway_request_duration_seconds",
			Help:    "Outbound gateway call latency by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		unattributedHooks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "randa_payment_unattributed_webhooks_total",
			Help: "Webhooks rejected because no payment matched the correlation token.",
		}),
	}

	reg.MustRegister(
		m.initiations,
		m.transitions,
		m.webhookOutcomes,
		m.pollerRuns,
		m.pollerReconciled,
		m.gatewayDuration,
		m.unattributedHooks,
	)
	return m
}

func (m *Metrics) IncInitiation(result string) {
	if m == nil {
		return
	}
	m.initiations.WithLabelValues(result).Inc()
}

func (m *Metrics) IncTransition(status, source string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status, source).Inc()
}

func (m *Metrics) IncWebhookOutcome(outcome string) {
	if m == nil {
		return
	}
	m.webhookOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncPollerRun() {
	if m == nil {
		return
	}
	m.pollerRuns.Inc()
}

func (m *Metrics) AddPollerReconciled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pollerReconciled.Add(float64(n))
}

func (m *Metrics) ObserveGatewayDuration(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.gatewayDuration.WithLabelValues(operation).Observe(seconds)
}

func (m *Metrics) IncUnattributedWebhook() {
	if m == nil {
		return
	}
	m.unattributedHooks.Inc()
}

func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func provideRegisterer(reg *prometheus.Registry) prometheus.Registerer { return reg }

var Module = fx.Module("observability.metrics",
	fx.Provide(
		NewRegistry,
		provideRegisterer,
		New,
	),
)
