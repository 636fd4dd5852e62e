package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/V4T54L/dealboard/internal/aggregate"
	"github.com/V4T54L/dealboard/internal/domain"
	"github.com/V4T54L/dealboard/internal/pipeline"
)

// PipelineMetrics holds all Prometheus metrics for the dashboard service.
type PipelineMetrics struct {
	StageDeals  *prometheus.GaugeVec
	StageValue  *prometheus.GaugeVec
	Mutations   *prometheus.CounterVec
	RateLimited prometheus.Counter
	SSEClients  prometheus.Gauge

	reg *domain.Registry
}

// NewPipelineMetrics initializes the metrics and registers them with r.
func NewPipelineMetrics(r prometheus.Registerer, reg *domain.Registry) *PipelineMetrics {
	factory := promauto.With(r)
	return &PipelineMetrics{
		StageDeals: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dealboard",
			Subsystem: "pipeline",
			Name:      "deals",
			Help:      "Number of deals currently in each stage.",
		}, []string{"stage"}),
		StageValue: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dealboard",
			Subsystem: "pipeline",
			Name:      "value",
			Help:      "Summed deal value currently in each stage.",
		}, []string{"stage"}),
		Mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dealboard",
			Subsystem: "pipeline",
			Name:      "mutations_total",
			Help:      "Total number of pipeline mutations by operation and status.",
		}, []string{"op", "status"}), // status: ok, invalid, not_found, noop
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dealboard",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter.",
		}),
		SSEClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dealboard",
			Subsystem: "http",
			Name:      "sse_clients",
			Help:      "Number of connected event stream clients.",
		}),
		reg: reg,
	}
}

// Observe refreshes the per-stage gauges. It is a pipeline.Listener.
func (m *PipelineMetrics) Observe(snap pipeline.Snapshot) {
	for id, t := range aggregate.StageTotals(snap.Deals, m.reg) {
		m.StageDeals.WithLabelValues(string(id)).Set(float64(t.Count))
		m.StageValue.WithLabelValues(string(id)).Set(t.TotalValue.InexactFloat64())
	}
}

// RecordMutation counts one use case outcome.
func (m *PipelineMetrics) RecordMutation(op, status string) {
	m.Mutations.WithLabelValues(op, status).Inc()
}
