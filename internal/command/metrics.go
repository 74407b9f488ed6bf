package command

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — метрики выполнения команд по типу.
type Metrics struct {
	executions    *prometheus.CounterVec
	failures      *prometheus.CounterVec
	preconditions *prometheus.CounterVec
	lockTimeouts  *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// NewMetrics регистрирует метрики в reg (nil — без регистрации).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		executions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coordinator",
			Subsystem: "command",
			Name:      "executions_total",
			Help:      "Command invocations by kind.",
		}, []string{"kind"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coordinator",
			Subsystem: "command",
			Name:      "failures_total",
			Help:      "Command invocations that returned an error.",
		}, []string{"kind"}),
		preconditions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coordinator",
			Subsystem: "command",
			Name:      "precondition_failed_total",
			Help:      "Command invocations short-circuited by a precondition.",
		}, []string{"kind"}),
		lockTimeouts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coordinator",
			Subsystem: "command",
			Name:      "lock_timeouts_total",
			Help:      "Entity lock acquisitions that timed out.",
		}, []string{"kind"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coordinator",
			Subsystem: "command",
			Name:      "duration_seconds",
			Help:      "Command invocation duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
}

func (m *Metrics) incExecution(k Kind) {
	if m != nil {
		m.executions.WithLabelValues(k.String()).Inc()
	}
}

func (m *Metrics) incFailure(k Kind) {
	if m != nil {
		m.failures.WithLabelValues(k.String()).Inc()
	}
}

func (m *Metrics) incPrecondition(k Kind) {
	if m != nil {
		m.preconditions.WithLabelValues(k.String()).Inc()
	}
}

func (m *Metrics) incLockTimeout(k Kind) {
	if m != nil {
		m.lockTimeouts.WithLabelValues(k.String()).Inc()
	}
}

func (m *Metrics) observe(k Kind, d time.Duration) {
	if m != nil {
		m.duration.WithLabelValues(k.String()).Observe(d.Seconds())
	}
}

// LockTimeouts возвращает счётчик таймаутов блокировки для типа (для тестов).
func (m *Metrics) LockTimeouts(k Kind) prometheus.Counter {
	return m.lockTimeouts.WithLabelValues(k.String())
}

// Failures возвращает счётчик ошибок для типа (для тестов).
func (m *Metrics) Failures(k Kind) prometheus.Counter {
	return m.failures.WithLabelValues(k.String())
}
