package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Publish paths.
const (
	PathCreate = "create"
	PathRetry  = "retry"
)

// PipelineMetrics tracks the order event publish and settlement consume flow.
type PipelineMetrics struct {
	publish *prometheus.CounterVec
	consume *prometheus.CounterVec
	pending prometheus.Gauge
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	publish := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_event_publish_total",
		Help: "Order created event publish attempts by path and outcome.",
	}, []string{"path", "outcome"})
	consume := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_consume_total",
		Help: "Settlement consumer outcomes.",
	}, []string{"outcome"})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orders_pending_event",
		Help: "Orders still waiting for their created event at the last sweep.",
	})
	reg.MustRegister(publish, consume, pending)
	return &PipelineMetrics{
		publish: publish,
		consume: consume,
		pending: pending,
	}
}

// IncPublish counts a publish attempt.
func (p *PipelineMetrics) IncPublish(path, outcome string) {
	if p == nil || p.publish == nil {
		return
	}
	p.publish.WithLabelValues(normalizeLabel(path), normalizeLabel(outcome)).Inc()
}

// IncConsume counts a consumed event.
func (p *PipelineMetrics) IncConsume(outcome string) {
	if p == nil || p.consume == nil {
		return
	}
	p.consume.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// SetPending records how many orders a sweep found waiting.
func (p *PipelineMetrics) SetPending(n int) {
	if p == nil || p.pending == nil {
		return
	}
	p.pending.Set(float64(n))
}
