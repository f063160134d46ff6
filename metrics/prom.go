package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WithRegistry mirrors the collector's counters and timers into Prometheus
// metrics registered on reg. The in-process snapshot remains the source of
// truth; the mirror exists for scraping.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(c *Collector) {
		c.prom = newPromMirror(reg)
	}
}

type promMirror struct {
	discoveryQueries prometheus.Counter
	discoveryLatency prometheus.Histogram

	generations       *prometheus.CounterVec
	generationLatency prometheus.Histogram

	executions       *prometheus.CounterVec
	executionLatency *prometheus.HistogramVec

	toolCalls       *prometheus.CounterVec
	toolCallLatency prometheus.Histogram

	detections *prometheus.CounterVec
	skillOps   *prometheus.CounterVec
}

func newPromMirror(reg prometheus.Registerer) *promMirror {
	factory := promauto.With(reg)
	return &promMirror{
		discoveryQueries: factory.NewCounter(prometheus.CounterOpts{
			Name: "codemode_discovery_queries_total",
			Help: "Total tool discovery searches.",
		}),
		discoveryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "codemode_discovery_seconds",
			Help:    "Tool discovery search latency.",
			Buckets: prometheus.DefBuckets,
		}),
		generations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codemode_sdk_generations_total",
			Help: "Total SDK generations by language and cache outcome.",
		}, []string{"language", "cache"}),
		generationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "codemode_sdk_generation_seconds",
			Help:    "SDK generation latency.",
			Buckets: prometheus.DefBuckets,
		}),
		executions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codemode_executions_total",
			Help: "Total sandboxed executions by language and outcome.",
		}, []string{"language", "outcome"}),
		executionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "codemode_execution_seconds",
			Help:    "Sandboxed execution wall-clock time.",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"language"}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codemode_tool_calls_total",
			Help: "Total bridged tool calls by status.",
		}, []string{"status"}),
		toolCallLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "codemode_tool_call_seconds",
			Help:    "Bridged tool call latency.",
			Buckets: prometheus.DefBuckets,
		}),
		detections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codemode_pii_detections_total",
			Help: "Total PII detections by pattern kind.",
		}, []string{"kind"}),
		skillOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codemode_skill_operations_total",
			Help: "Total skill store operations by kind.",
		}, []string{"op"}),
	}
}

func (p *promMirror) recordDiscovery(elapsed time.Duration) {
	if p == nil {
		return
	}
	p.discoveryQueries.Inc()
	p.discoveryLatency.Observe(elapsed.Seconds())
}

func (p *promMirror) recordGeneration(language string, cacheHit bool, elapsed time.Duration) {
	if p == nil {
		return
	}
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	p.generations.WithLabelValues(language, cache).Inc()
	p.generationLatency.Observe(elapsed.Seconds())
}

func (p *promMirror) recordExecution(language string, outcome Outcome, elapsed time.Duration) {
	if p == nil {
		return
	}
	p.executions.WithLabelValues(language, string(outcome)).Inc()
	p.executionLatency.WithLabelValues(language).Observe(elapsed.Seconds())
}

func (p *promMirror) recordToolCall(_ string, failed bool, elapsed time.Duration) {
	if p == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	p.toolCalls.WithLabelValues(status).Inc()
	p.toolCallLatency.Observe(elapsed.Seconds())
}

func (p *promMirror) recordDetection(kind string) {
	if p == nil {
		return
	}
	p.detections.WithLabelValues(kind).Inc()
}

func (p *promMirror) recordSkill(op string) {
	if p == nil {
		return
	}
	p.skillOps.WithLabelValues(op).Inc()
}
