package pool

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "futurepool"

// metrics holds the Prometheus collectors of one pool. A nil *metrics records nothing.
type metrics struct {
	submitted prometheus.Counter
	finished  *prometheus.CounterVec
	duration  prometheus.Histogram
	queueWait prometheus.Histogram
	retries   prometheus.Counter
	respawns  prometheus.Counter
	busy      prometheus.Gauge

	reg        prometheus.Registerer
	collectors []prometheus.Collector
}

// newMetrics creates the collectors and registers them with reg. queueDepth and
// outstanding are sampled at scrape time.
func newMetrics(reg prometheus.Registerer, poolID string, queueDepth, outstanding func() float64) (*metrics, error) {
	if reg == nil {
		return nil, nil
	}

	labels := prometheus.Labels{"pool": poolID}
	m := &metrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "tasks_submitted_total",
			Help:        "Total number of tasks submitted to the pool",
			ConstLabels: labels,
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "tasks_finished_total",
			Help:        "Total number of tasks that reached a terminal state, by state",
			ConstLabels: labels,
		}, []string{"state"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   metricsNamespace,
			Name:        "task_duration_seconds",
			Help:        "Histogram of task execution time, retries included",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		queueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   metricsNamespace,
			Name:        "task_queue_wait_seconds",
			Help:        "Histogram of time tasks spent queued before a worker picked them up",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "task_retries_total",
			Help:        "Total number of task retries",
			ConstLabels: labels,
		}),
		respawns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "worker_respawns_total",
			Help:        "Total number of worker processes started after the first",
			ConstLabels: labels,
		}),
		busy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "busy_workers",
			Help:        "Current number of workers executing a task",
			ConstLabels: labels,
		}),
	}

	collectors := []prometheus.Collector{
		m.submitted, m.finished, m.duration, m.queueWait, m.retries, m.respawns, m.busy,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "queue_depth",
			Help:        "Current number of queued tasks",
			ConstLabels: labels,
		}, queueDepth),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "outstanding_tasks",
			Help:        "Current number of submitted tasks without a terminal state",
			ConstLabels: labels,
		}, outstanding),
	}

	m.reg = reg
	var errs []error
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
			continue
		}
		m.collectors = append(m.collectors, c)
	}
	if err := errors.Join(errs...); err != nil {
		m.unregister()
		return nil, err
	}
	return m, nil
}

// unregister removes the collectors so a pool with the same id can register again.
func (m *metrics) unregister() {
	if m == nil {
		return
	}
	for _, c := range m.collectors {
		m.reg.Unregister(c)
	}
	m.collectors = nil
}

func (m *metrics) taskSubmitted() {
	if m == nil {
		return
	}
	m.submitted.Inc()
}

func (m *metrics) taskStarted(queued time.Duration) {
	if m == nil {
		return
	}
	m.busy.Inc()
	m.queueWait.Observe(queued.Seconds())
}

func (m *metrics) taskEnded(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.busy.Dec()
	m.duration.Observe(elapsed.Seconds())
}

func (m *metrics) taskFinished(s State) {
	if m == nil {
		return
	}
	m.finished.WithLabelValues(s.String()).Inc()
}

func (m *metrics) taskRetried() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *metrics) workerRespawned() {
	if m == nil {
		return
	}
	m.respawns.Inc()
}
