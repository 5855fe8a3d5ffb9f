package livetree

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	opsTotal       *prometheus.CounterVec
	opDuration     *prometheus.HistogramVec
	notifications  prometheus.Counter
	subscriptions  prometheus.Gauge
	persistSkipped prometheus.Counter
	publishErrors  prometheus.Counter
	received       *prometheus.CounterVec
}

func newMetrics(registerer prometheus.Registerer, namespace string) *metrics {
	if namespace == "" {
		namespace = "livetree"
	}
	factory := promauto.With(registerer)
	return &metrics{
		opsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ops_total",
			Help:      "Mutations by operation and outcome.",
		}, []string{"op", "status"}),
		opDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "op_duration_seconds",
			Help:      "Time from mutation to acknowledgement, including persistence.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		notifications: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Listener invocations.",
		}),
		subscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions",
			Help:      "Live subscriptions.",
		}),
		persistSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_skipped_total",
			Help:      "Snapshots not written because the medium already held them.",
		}),
		publishErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Snapshots the transport failed to send.",
		}),
		received: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "received_total",
			Help:      "Replication messages received, by how they were handled.",
		}, []string{"result"}),
	}
}

func (m *metrics) observeOp(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.opsTotal.WithLabelValues(op, status).Inc()
	m.opDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
