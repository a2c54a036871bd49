package runtime

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors describing the query pipeline.
type Metrics struct {
	mu sync.Mutex

	received   prometheus.Counter
	dropped    *prometheus.CounterVec
	dispatched *prometheus.CounterVec
	answered   *prometheus.CounterVec
	failed     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	inFlight   prometheus.Gauge

	registerer prometheus.Registerer
	registered bool
}

func newPipelineCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geobridge",
			Subsystem: "pipeline",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewMetrics creates the pipeline collectors. A nil registerer falls back to
// the Prometheus default registry.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		registerer: registerer,
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geobridge",
			Subsystem: "pipeline",
			Name:      "messages_received_total",
			Help:      "Total number of messages received on the bridge topic",
		}),
		dropped:    newPipelineCounterVec("messages_dropped_total", "Messages that did not decode into a dispatchable query", []string{"outcome"}),
		dispatched: newPipelineCounterVec("queries_dispatched_total", "Queries dispatched to the lookup service", []string{"kind"}),
		answered:   newPipelineCounterVec("queries_answered_total", "Queries whose response was published", []string{"kind"}),
		failed:     newPipelineCounterVec("queries_failed_total", "Queries that produced no response", []string{"kind", "stage"}),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "geobridge",
				Subsystem: "pipeline",
				Name:      "query_duration_seconds",
				Help:      "Time from receipt to publish or failure for dispatched queries",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind", "result"},
		),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "geobridge",
			Subsystem: "pipeline",
			Name:      "in_flight",
			Help:      "Pipelines currently running",
		}),
	}
}

// Register registers the collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.received,
		m.dropped,
		m.dispatched,
		m.answered,
		m.failed,
		m.duration,
		m.inFlight,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

func (m *Metrics) pipelineStarted() {
	if m != nil {
		m.inFlight.Inc()
	}
}

func (m *Metrics) pipelineFinished() {
	if m != nil {
		m.inFlight.Dec()
	}
}

// Hooks returns pipeline hooks that feed the collectors.
func (m *Metrics) Hooks() PipelineHooks {
	return PipelineHooks{
		OnReceived: func(PipelineEvent) {
			m.received.Inc()
		},
		OnDropped: func(ev PipelineEvent, _ error) {
			m.dropped.WithLabelValues(ev.Outcome.String()).Inc()
		},
		OnDispatched: func(ev PipelineEvent) {
			m.dispatched.WithLabelValues(ev.Kind.String()).Inc()
		},
		OnAnswered: func(ev PipelineEvent) {
			m.answered.WithLabelValues(ev.Kind.String()).Inc()
			m.duration.WithLabelValues(ev.Kind.String(), "answered").Observe(ev.Duration.Seconds())
		},
		OnFailed: func(ev PipelineEvent, stage Stage, _ error) {
			m.failed.WithLabelValues(ev.Kind.String(), string(stage)).Inc()
			m.duration.WithLabelValues(ev.Kind.String(), "failed").Observe(ev.Duration.Seconds())
		},
	}
}
