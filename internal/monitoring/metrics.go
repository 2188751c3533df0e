package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects connectivity and frame-traffic metrics. A nil *Metrics is
// valid and records nothing, so components can be wired without metrics in
// tests.
type Metrics struct {
	connectionState   prometheus.Gauge
	reconnectAttempts prometheus.Counter
	framesRouted      *prometheus.CounterVec
	sendFailures      prometheus.Counter
	snapshotsApplied  *prometheus.CounterVec
}

// NewMetrics registers the collectors with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		connectionState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tablesender_connection_state",
			Help: "Current connection state (0=disconnected, 1=discovering, 2=connecting, 3=connected, 4=reconnecting, 5=failed).",
		}),
		reconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "tablesender_reconnect_attempts_total",
			Help: "Number of reconnection attempts.",
		}),
		framesRouted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tablesender_frames_routed_total",
			Help: "Inbound frames by classification.",
		}, []string{"kind"}),
		sendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "tablesender_send_failures_total",
			Help: "Outbound messages rejected or failed.",
		}),
		snapshotsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tablesender_snapshots_applied_total",
			Help: "Snapshot replacements applied to the local store.",
		}, []string{"collection"}),
	}
}

// SetConnectionState records the current connection state.
func (m *Metrics) SetConnectionState(state int) {
	if m == nil {
		return
	}
	m.connectionState.Set(float64(state))
}

// CountReconnect records a reconnection attempt.
func (m *Metrics) CountReconnect() {
	if m == nil {
		return
	}
	m.reconnectAttempts.Inc()
}

// CountFrame records a routed inbound frame by kind.
func (m *Metrics) CountFrame(kind string) {
	if m == nil {
		return
	}
	m.framesRouted.WithLabelValues(kind).Inc()
}

// CountSendFailure records a rejected or failed send.
func (m *Metrics) CountSendFailure() {
	if m == nil {
		return
	}
	m.sendFailures.Inc()
}

// CountSnapshot records a snapshot replacement by collection name.
func (m *Metrics) CountSnapshot(collection string) {
	if m == nil {
		return
	}
	m.snapshotsApplied.WithLabelValues(collection).Inc()
}
