package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "graylogic_telemetry"

// Metrics are the Prometheus instruments updated by a Publisher.
type Metrics struct {
	Publishes        *prometheus.CounterVec // status
	WriteRequests    *prometheus.CounterVec // result
	WriteDuration    prometheus.Histogram
	BacklogEnqueued  prometheus.Counter
	BacklogEvicted   prometheus.Counter
	BacklogDrained   prometheus.Counter
	BacklogRequeued  prometheus.Counter
	BacklogDiscarded prometheus.Counter
	BacklogDepth     prometheus.Gauge
	BacklogEnabled   prometheus.Gauge
}

// NewMetrics creates the instruments and registers them with reg.
// A nil reg gets a private registry, which keeps tests isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		Publishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "publishes_total",
				Help:      "Measurement publish attempts by outcome.",
			},
			[]string{"status"},
		),
		WriteRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "write_requests_total",
				Help:      "Write requests sent to InfluxDB by result.",
			},
			[]string{"result"},
		),
		WriteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "write_duration_seconds",
			Help:      "Duration of write requests to InfluxDB.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		BacklogEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "backlog_enqueued_total",
			Help:      "Lines added to the backlog after a failed write.",
		}),
		BacklogEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "backlog_evicted_total",
			Help:      "Lines dropped from a full backlog to make room.",
		}),
		BacklogDrained: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "backlog_drained_total",
			Help:      "Backlog lines written successfully.",
		}),
		BacklogRequeued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "backlog_requeued_total",
			Help:      "Backlog lines put back after a failed drain.",
		}),
		BacklogDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "backlog_discarded_total",
			Help:      "Failed lines discarded because the backlog is disabled.",
		}),
		BacklogDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "backlog_depth",
			Help:      "Lines currently in the backlog.",
		}),
		BacklogEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "backlog_enabled",
			Help:      "Whether the backlog is accepting lines (1=yes, 0=no).",
		}),
	}

	reg.MustRegister(
		m.Publishes,
		m.WriteRequests,
		m.WriteDuration,
		m.BacklogEnqueued,
		m.BacklogEvicted,
		m.BacklogDrained,
		m.BacklogRequeued,
		m.BacklogDiscarded,
		m.BacklogDepth,
		m.BacklogEnabled,
	)

	return m
}

func (m *Metrics) observeWrite(start time.Time, err error) {
	m.WriteDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.WriteRequests.WithLabelValues("error").Inc()
		return
	}
	m.WriteRequests.WithLabelValues("success").Inc()
}
