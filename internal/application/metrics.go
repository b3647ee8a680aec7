package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the detach/attach instrumentation. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	attachTotal  *prometheus.CounterVec
	walkNodes    prometheus.Histogram
	modelsStored prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		attachTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dozer",
			Name:      "attach_total",
			Help:      "Property definitions reattached, by definition kind and outcome",
		}, []string{"kind", "outcome"}),

		walkNodes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dozer",
			Name:      "walk_nodes",
			Help:      "Nodes visited per detach walk",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),

		modelsStored: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dozer",
			Name:      "models_stored",
			Help:      "Detached models currently held by the model store",
		}),
	}
}

func (m *Metrics) observeAttach(kind, outcome string) {
	if m == nil {
		return
	}
	m.attachTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) observeWalk(nodes int) {
	if m == nil {
		return
	}
	m.walkNodes.Observe(float64(nodes))
}

func (m *Metrics) setStored(n int) {
	if m == nil {
		return
	}
	m.modelsStored.Set(float64(n))
}
