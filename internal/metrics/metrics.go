// Package metrics provides Prometheus instrumentation for the ntcore
// client: connection state, tracked-entry counts, RPC latency, and
// keep-alive traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks ntcore client Prometheus metrics.
//
// All metrics use the ntcore_client_ prefix. Every method is nil-safe so
// callers can pass a nil *Metrics when metrics are disabled (spec §3.3,
// Metrics.Enabled=false) without branching at every call site.
type Metrics struct {
	// ConnectionState reports the session state machine's current node as
	// a gauge value (0=DISCONNECTED .. 5=DISCONNECTING per session.State).
	ConnectionState prometheus.Gauge

	// ReconnectAttemptsTotal counts reconnect attempts since startup.
	ReconnectAttemptsTotal prometheus.Counter

	// EntriesTracked tracks the current size of the entry table.
	EntriesTracked prometheus.Gauge

	// RPCCallDuration tracks RPC round-trip latency by outcome.
	RPCCallDuration *prometheus.HistogramVec

	// RPCCallsTotal counts RPC calls by outcome ("completed", "cancelled", "timed_out").
	RPCCallsTotal *prometheus.CounterVec

	// KeepAlivesSentTotal counts outbound KEEP_ALIVE messages.
	KeepAlivesSentTotal prometheus.Counter

	// BytesReceivedTotal and BytesSentTotal track raw wire traffic.
	BytesReceivedTotal prometheus.Counter
	BytesSentTotal     prometheus.Counter

	// DecodeErrorsTotal counts fatal decode failures by wire.Kind.
	DecodeErrorsTotal *prometheus.CounterVec
}

// New creates client metrics and registers them against reg.
//
// Parameters:
//   - reg: Prometheus registerer (typically prometheus.DefaultRegisterer)
//
// Panics if registration fails (expected during initialization only).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ntcore_client_connection_state",
			Help: "Current session state machine node (0=DISCONNECTED..5=DISCONNECTING)",
		}),
		ReconnectAttemptsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ntcore_client_reconnect_attempts_total",
			Help: "Total reconnect attempts since startup",
		}),
		EntriesTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ntcore_client_entries_tracked",
			Help: "Current number of entries in the local table",
		}),
		RPCCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ntcore_client_rpc_call_duration_seconds",
				Help:    "RPC call round-trip duration in seconds, by outcome",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		RPCCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ntcore_client_rpc_calls_total",
				Help: "Total RPC calls by outcome",
			},
			[]string{"outcome"},
		),
		KeepAlivesSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ntcore_client_keep_alives_sent_total",
			Help: "Total KEEP_ALIVE messages sent",
		}),
		BytesReceivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ntcore_client_bytes_received_total",
			Help: "Total bytes read from the transport",
		}),
		BytesSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ntcore_client_bytes_sent_total",
			Help: "Total bytes written to the transport",
		}),
		DecodeErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ntcore_client_decode_errors_total",
				Help: "Total fatal decode errors by wire.Kind",
			},
			[]string{"kind"},
		),
	}

	reg.MustRegister(
		m.ConnectionState,
		m.ReconnectAttemptsTotal,
		m.EntriesTracked,
		m.RPCCallDuration,
		m.RPCCallsTotal,
		m.KeepAlivesSentTotal,
		m.BytesReceivedTotal,
		m.BytesSentTotal,
		m.DecodeErrorsTotal,
	)

	return m
}

// SetConnectionState updates the connection state gauge.
func (m *Metrics) SetConnectionState(state int) {
	if m == nil {
		return
	}
	m.ConnectionState.Set(float64(state))
}

// IncReconnectAttempts records one reconnect attempt.
func (m *Metrics) IncReconnectAttempts() {
	if m == nil {
		return
	}
	m.ReconnectAttemptsTotal.Inc()
}

// SetEntriesTracked updates the entry table size gauge.
func (m *Metrics) SetEntriesTracked(n int) {
	if m == nil {
		return
	}
	m.EntriesTracked.Set(float64(n))
}

// RecordRPCCall records one completed/cancelled/timed-out RPC call.
//
// Parameters:
//   - outcome: "completed", "cancelled", or "timed_out"
//   - durationSeconds: call round-trip duration in seconds
func (m *Metrics) RecordRPCCall(outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RPCCallsTotal.WithLabelValues(outcome).Inc()
	m.RPCCallDuration.WithLabelValues(outcome).Observe(durationSeconds)
}

// IncKeepAlivesSent records one outbound KEEP_ALIVE.
func (m *Metrics) IncKeepAlivesSent() {
	if m == nil {
		return
	}
	m.KeepAlivesSentTotal.Inc()
}

// AddBytesReceived adds n to the received-bytes counter.
func (m *Metrics) AddBytesReceived(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesReceivedTotal.Add(float64(n))
}

// AddBytesSent adds n to the sent-bytes counter.
func (m *Metrics) AddBytesSent(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesSentTotal.Add(float64(n))
}

// IncDecodeError records one fatal decode error for the given wire.Kind
// string (e.g. "Malformed", "InvalidMagic").
func (m *Metrics) IncDecodeError(kind string) {
	if m == nil {
		return
	}
	m.DecodeErrorsTotal.WithLabelValues(kind).Inc()
}
