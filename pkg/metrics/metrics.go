// Package metrics defines the Prometheus collectors for a RADOS client
// instance. Unlike the teacher's package-level registrar, every client
// constructs its own *Metrics bound to a caller-supplied registry — spec
// §9 rules out module-level state so two clients in one process never
// collide on collector names.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector exported by the core client.
type Metrics struct {
	AuthAttempts   *prometheus.CounterVec
	AuthFailures   *prometheus.CounterVec
	FrameCRCErrors prometheus.Counter
	Reconnects     prometheus.Counter
	Replayed       prometheus.Counter
	HuntRounds     prometheus.Counter
	HuntSuccesses  *prometheus.CounterVec

	OperationDuration *prometheus.HistogramVec
	OperationResults  *prometheus.CounterVec
	Redirects         prometheus.Counter

	ThrottleOpsInUse   prometheus.Gauge
	ThrottleBytesInUse prometheus.Gauge

	MapEpoch *prometheus.GaugeVec
}

// New registers and returns a fresh Metrics bound to reg. If reg is nil,
// every collector is still created and registered on a private registry
// that New creates and does not expose, so nothing gathers it — callers that
// don't want metrics simply discard the result (spec's Metrics.Enabled
// config flag governs whether this is called at all).
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		AuthAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cephx",
			Name:      "auth_attempts_total",
			Help:      "CephX authentication attempts by outcome.",
		}, []string{"outcome"}),
		AuthFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cephx",
			Name:      "auth_failures_total",
			Help:      "CephX authentication failures by reason.",
		}, []string{"reason"}),
		FrameCRCErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "msgr",
			Name:      "frame_crc_errors_total",
			Help:      "Frames rejected for CRC mismatch.",
		}),
		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "msgr",
			Name:      "reconnects_total",
			Help:      "Session reconnection attempts.",
		}),
		Replayed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "msgr",
			Name:      "replayed_messages_total",
			Help:      "Messages replayed after a successful reconnect.",
		}),
		HuntRounds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monclient",
			Name:      "hunt_rounds_total",
			Help:      "Monitor hunt rounds started.",
		}),
		HuntSuccesses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monclient",
			Name:      "hunt_successes_total",
			Help:      "Successful monitor hunts by monitor rank.",
		}, []string{"rank"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "objclient",
			Name:      "operation_duration_milliseconds",
			Help:      "End-to-end duration of object operations.",
			Buckets:   []float64{0.5, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}, []string{"op"}),
		OperationResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "objclient",
			Name:      "operation_results_total",
			Help:      "Completed object operations by result code.",
		}, []string{"op", "result"}),
		Redirects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "objclient",
			Name:      "redirects_total",
			Help:      "Operations that received a redirect reply.",
		}),
		ThrottleOpsInUse: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "objclient",
			Name:      "throttle_ops_in_use",
			Help:      "In-flight operations admitted by the op throttle.",
		}),
		ThrottleBytesInUse: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "objclient",
			Name:      "throttle_bytes_in_use",
			Help:      "In-flight estimated byte budget admitted by the byte throttle.",
		}),
		MapEpoch: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monclient",
			Name:      "map_epoch",
			Help:      "Currently installed epoch by map name.",
		}, []string{"map"}),
	}
}

// ObserveOperation records the outcome and latency of a completed object
// operation. No-op on a nil *Metrics so callers can pass a disabled
// instance unconditionally.
func (m *Metrics) ObserveOperation(op, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(op).Observe(float64(d.Microseconds()) / 1000.0)
	m.OperationResults.WithLabelValues(op, result).Inc()
}
