package sim

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors describing resolution activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	stepDuration *prometheus.HistogramVec
	tasksRun     *prometheus.CounterVec
	taskFailures *prometheus.CounterVec
	day          prometheus.Gauge
}

// MustNewMetrics registers the collectors with reg (the default registerer
// when nil). Collectors already registered under the same names are reused,
// so several schedules may share one registry. Any other registration error
// panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "daysim",
				Subsystem: "schedule",
				Name:      "step_duration_seconds",
				Help:      "Wall time spent resolving one step (actions or effects) of a phase.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"phase", "step"},
		),
		tasksRun: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "daysim",
				Subsystem: "schedule",
				Name:      "bodies_run_total",
				Help:      "Action and effect bodies handed to the pool.",
			},
			[]string{"kind"},
		),
		taskFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "daysim",
				Subsystem: "schedule",
				Name:      "task_failures_total",
				Help:      "Pool tasks that returned an error or panicked.",
			},
			[]string{"kind", "phase"},
		),
		day: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "daysim",
				Subsystem: "schedule",
				Name:      "day",
				Help:      "Number of completed simulated days.",
			},
		),
	}

	if err := reg.Register(m.stepDuration); err != nil {
		m.stepDuration = reuse(err).(*prometheus.HistogramVec)
	}
	if err := reg.Register(m.tasksRun); err != nil {
		m.tasksRun = reuse(err).(*prometheus.CounterVec)
	}
	if err := reg.Register(m.taskFailures); err != nil {
		m.taskFailures = reuse(err).(*prometheus.CounterVec)
	}
	if err := reg.Register(m.day); err != nil {
		m.day = reuse(err).(prometheus.Gauge)
	}
	return m
}

func reuse(err error) prometheus.Collector {
	if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
		return already.ExistingCollector
	}
	panic(err)
}

// ObserveStep records the duration of an actions or effects step.
func (m *Metrics) ObserveStep(phase Phase, step string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(phase.String(), step).Observe(d.Seconds())
}

// AddRun counts bodies handed to the pool.
func (m *Metrics) AddRun(kind TaskKind, n int) {
	if m == nil || n == 0 {
		return
	}
	m.tasksRun.WithLabelValues(string(kind)).Add(float64(n))
}

// AddFailures counts failed tasks of a batch.
func (m *Metrics) AddFailures(phase Phase, failures []TaskFailure) {
	if m == nil {
		return
	}
	for _, f := range failures {
		m.taskFailures.WithLabelValues(string(f.Kind), phase.String()).Inc()
	}
}

// SetDay publishes the day counter.
func (m *Metrics) SetDay(day int) {
	if m == nil {
		return
	}
	m.day.Set(float64(day))
}
