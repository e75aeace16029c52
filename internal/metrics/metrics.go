// Package metrics exposes process counters and gauges to Prometheus.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hamed0406/netprobe/internal/domain"
)

type Metrics struct {
	probes        *prometheus.CounterVec
	probeLatency  *prometheus.HistogramVec
	published     prometheus.Counter
	dropped       prometheus.Counter
	subscribers   prometheus.Gauge
	workers       prometheus.Gauge
	configVersion prometheus.Gauge
	rollupTicks   *prometheus.CounterVec
	rollupRows    prometheus.Counter
	samplesPruned prometheus.Counter
	sinkErrors    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netprobe_probes_total",
			Help: "Probe executions by kind and result.",
		}, []string{"kind", "result"}),
		probeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "netprobe_probe_latency_ms",
			Help:    "Probe latency in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"kind"}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netprobe_bus_events_published_total",
			Help: "Events published on the event bus.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netprobe_bus_events_dropped_total",
			Help: "Events dropped because a subscriber queue was full.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netprobe_bus_subscribers",
			Help: "Current number of event bus subscribers.",
		}),
		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netprobe_scheduler_workers",
			Help: "Probe workers in the current generation.",
		}),
		configVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netprobe_scheduler_config_version",
			Help: "Configuration version the running generation was built from.",
		}),
		rollupTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netprobe_rollup_ticks_total",
			Help: "Rollup maintenance ticks by result.",
		}, []string{"result"}),
		rollupRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netprobe_rollup_rows_written_total",
			Help: "Aggregate rows upserted.",
		}),
		samplesPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netprobe_samples_pruned_total",
			Help: "Raw samples deleted by retention pruning.",
		}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netprobe_sink_errors_total",
			Help: "Failed writes per sink.",
		}, []string{"sink"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.probes, m.probeLatency, m.published, m.dropped, m.subscribers,
			m.workers, m.configVersion, m.rollupTicks, m.rollupRows,
			m.samplesPruned, m.sinkErrors,
		)
	}
	return m
}

func (m *Metrics) ObserveSample(s domain.Sample) {
	if m == nil {
		return
	}
	result := "success"
	if !s.Success {
		result = "failure"
	}
	m.probes.WithLabelValues(string(s.Kind), result).Inc()
	m.probeLatency.WithLabelValues(string(s.Kind)).Observe(s.LatencyMS)
}

func (m *Metrics) EventPublished() {
	if m == nil {
		return
	}
	m.published.Inc()
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

func (m *Metrics) SetGeneration(version int64, workers int) {
	if m == nil {
		return
	}
	m.configVersion.Set(float64(version))
	m.workers.Set(float64(workers))
}

func (m *Metrics) RollupTick(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.rollupTicks.WithLabelValues(result).Inc()
}

func (m *Metrics) RollupRows(n int) {
	if m == nil {
		return
	}
	m.rollupRows.Add(float64(n))
}

func (m *Metrics) SamplesPruned(n int64) {
	if m == nil {
		return
	}
	m.samplesPruned.Add(float64(n))
}

func (m *Metrics) SinkError(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}
