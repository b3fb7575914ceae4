// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector aggregates the service's Prometheus metrics.
type Collector struct {
	// pipeline metrics
	pipelineTotal    *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	stageTotal       *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	reformIterations prometheus.Histogram

	// consensus metrics
	consensusDecisions *prometheus.CounterVec

	// cache metrics
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	// human loop metrics
	validationCreated  *prometheus.CounterVec
	validationResolved *prometheus.CounterVec
	validationPending  prometheus.Gauge

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector registers all metric vectors under the namespace on the
// default prometheus registry. Construct at most one collector per
// namespace per registry; a second registration panics.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWith(namespace, prometheus.DefaultRegisterer, logger)
}

// NewCollectorWith registers all metric vectors under the namespace on
// the given registerer.
func NewCollectorWith(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	factory := promauto.With(reg)
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.pipelineTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_requests_total",
			Help:      "Total pipeline executions by outcome",
		},
		[]string{"outcome"},
	)
	c.pipelineDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "End-to-end pipeline duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"outcome"},
	)
	c.stageTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_calls_total",
			Help:      "Stage calls by stage and status",
		},
		[]string{"stage", "status"},
	)
	c.stageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Stage call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
	c.reformIterations = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reform_iterations",
			Help:      "Reform rounds per pipeline execution",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		},
	)

	c.consensusDecisions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consensus_decisions_total",
			Help:      "Consensus decisions by kind and level",
		},
		[]string{"decision", "level"},
	)

	c.cacheHits = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Result cache hits",
	})
	c.cacheMisses = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Result cache misses",
	})

	c.validationCreated = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_requests_created_total",
			Help:      "Validation requests created by type",
		},
		[]string{"type"},
	)
	c.validationResolved = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_requests_resolved_total",
			Help:      "Validation requests resolved by final status",
		},
		[]string{"status"},
	)
	c.validationPending = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "validation_requests_pending",
		Help:      "Validation requests currently pending",
	})

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	return c
}

// RecordPipeline records one finished pipeline execution.
func (c *Collector) RecordPipeline(outcome string, duration time.Duration, iterations int) {
	c.pipelineTotal.WithLabelValues(outcome).Inc()
	c.pipelineDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	c.reformIterations.Observe(float64(iterations))
}

// RecordStage records one stage call.
func (c *Collector) RecordStage(stage, status string, duration time.Duration) {
	c.stageTotal.WithLabelValues(stage, status).Inc()
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordConsensus records one consensus decision.
func (c *Collector) RecordConsensus(decision, level string) {
	c.consensusDecisions.WithLabelValues(decision, level).Inc()
}

// RecordCacheHit increments the hit counter.
func (c *Collector) RecordCacheHit() { c.cacheHits.Inc() }

// RecordCacheMiss increments the miss counter.
func (c *Collector) RecordCacheMiss() { c.cacheMisses.Inc() }

// RecordValidationCreated tracks a new validation request.
func (c *Collector) RecordValidationCreated(requestType string) {
	c.validationCreated.WithLabelValues(requestType).Inc()
	c.validationPending.Inc()
}

// RecordValidationResolved tracks a resolved or expired request.
func (c *Collector) RecordValidationResolved(status string) {
	c.validationResolved.WithLabelValues(status).Inc()
	c.validationPending.Dec()
}

// RecordHTTPRequest records one HTTP request.
func (c *Collector) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
