package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics — метрики диспетчера.
type metrics struct {
	queued              prometheus.Counter
	executed            prometheus.Counter
	failed              prometheus.Counter
	active              prometheus.Gauge
	concurrencyExceeded *prometheus.CounterVec
	timeInQueue         prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer, queueSize func() int) *metrics {
	f := promauto.With(reg)

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "coordinator",
		Subsystem: "dispatcher",
		Name:      "queue_size",
		Help:      "Elements currently held by the queue (ready and delayed).",
	}, func() float64 { return float64(queueSize()) })

	return &metrics{
		queued: f.NewCounter(prometheus.CounterOpts{
			Namespace: "coordinator",
			Subsystem: "dispatcher",
			Name:      "queued_total",
			Help:      "Units accepted by the queue.",
		}),
		executed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "coordinator",
			Subsystem: "dispatcher",
			Name:      "executed_total",
			Help:      "Units executed.",
		}),
		failed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "coordinator",
			Subsystem: "dispatcher",
			Name:      "failed_total",
			Help:      "Units whose execution returned an error or panicked.",
		}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "coordinator",
			Subsystem: "dispatcher",
			Name:      "active_workers",
			Help:      "Workers currently executing a unit.",
		}),
		concurrencyExceeded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coordinator",
			Subsystem: "dispatcher",
			Name:      "concurrency_exceeded_total",
			Help:      "Units deferred because their kind reached the concurrency cap.",
		}, []string{"kind"}),
		timeInQueue: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "coordinator",
			Subsystem: "dispatcher",
			Name:      "time_in_queue_seconds",
			Help:      "Time since eligible: from the ready time of a unit (after its delay) to the start of its execution. Excludes the configured delay.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 60, 300},
		}),
	}
}
