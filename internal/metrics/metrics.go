// Package metrics exposes Prometheus instrumentation for RPC traffic, tool
// invocation latency, and agent bridge connection state. Collecting these
// never alters dispatch behavior — it is pure observability, grounded in
// the teacher's prometheus/client_golang usage.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the broker registers. A nil *Metrics
// pointer (see NewNoop) is safe to call methods on and does nothing,
// so instrumentation never has to be conditionally skipped at call sites.
type Metrics struct {
	rpcRequests  *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	agentOpen    prometheus.Gauge
	agentCalls   *prometheus.CounterVec
}

// New registers the broker's collectors against reg and returns a Metrics
// ready to record against.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerd_rpc_requests_total",
			Help: "JSON-RPC requests handled, by method and outcome.",
		}, []string{"method", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brokerd_tool_invoke_duration_seconds",
			Help:    "Tool handler invocation duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		agentOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "brokerd_agent_connection_open",
			Help: "1 if a remote agent connection is currently open, else 0.",
		}),
		agentCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerd_agent_calls_total",
			Help: "Agent calls by outcome (ok, remote_error, timeout, disconnected, no_agent).",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.rpcRequests, m.toolDuration, m.agentOpen, m.agentCalls)
	return m
}

// NewNoop returns a Metrics that records nothing and is nil-safe for use
// in tests that don't care about instrumentation.
func NewNoop() *Metrics { return nil }

func (m *Metrics) ObserveRPCRequest(method, outcome string) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) ObserveToolDuration(tool string, seconds float64) {
	if m == nil {
		return
	}
	m.toolDuration.WithLabelValues(tool).Observe(seconds)
}

func (m *Metrics) SetAgentConnectionOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.agentOpen.Set(1)
	} else {
		m.agentOpen.Set(0)
	}
}

func (m *Metrics) ObserveAgentCall(outcome string) {
	if m == nil {
		return
	}
	m.agentCalls.WithLabelValues(outcome).Inc()
}
