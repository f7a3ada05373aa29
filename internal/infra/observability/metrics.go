package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the tracker.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics,
	// exposed so the /metrics endpoint can serve it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	runDuration     prometheus.Histogram
	rulesExecuted   *prometheus.CounterVec
	rulesSkipped    *prometheus.CounterVec
	ruleFailures    *prometheus.CounterVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finch_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "finch_recurring_run_duration_seconds",
				Help:    "Duration of full recurring catch-up runs.",
				Buckets: prometheus.DefBuckets,
			},
		),
		rulesExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finch_rule_occurrences_total",
				Help: "Total recurring occurrences executed, by action.",
			},
			[]string{"action"},
		),
		rulesSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finch_rule_skips_total",
				Help: "Occurrences skipped on a failed precondition, by action.",
			},
			[]string{"action"},
		),
		ruleFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finch_rule_failures_total",
				Help: "Rules aborted by persistence errors, by action.",
			},
			[]string{"action"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finch_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finch_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finch_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordRunDuration records the duration of one catch-up run.
func (m *Metrics) RecordRunDuration(d time.Duration) {
	m.runDuration.Observe(d.Seconds())
}

// IncrRuleExecuted increments the executed-occurrence counter.
func (m *Metrics) IncrRuleExecuted(action string) {
	m.rulesExecuted.WithLabelValues(action).Inc()
}

// IncrRuleSkipped increments the skipped-occurrence counter.
func (m *Metrics) IncrRuleSkipped(action string) {
	m.rulesSkipped.WithLabelValues(action).Inc()
}

// IncrRuleFailure increments the per-rule failure counter.
func (m *Metrics) IncrRuleFailure(action string) {
	m.ruleFailures.WithLabelValues(action).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// EngineSummary is a point-in-time view of engine counters for the
// GET /v1/metrics/engine endpoint.
type EngineSummary struct {
	OccurrencesExecuted float64 `json:"occurrences_executed"`
	OccurrencesSkipped  float64 `json:"occurrences_skipped"`
	RuleFailures        float64 `json:"rule_failures"`
	ByAction            map[string]float64 `json:"by_action"`
}

// GetEngineSummary gathers current counter values from Prometheus.
// Counters expose cumulative values since process start.
func (m *Metrics) GetEngineSummary() *EngineSummary {
	s := &EngineSummary{ByAction: map[string]float64{}}
	for _, action := range []string{"income", "transfer", "dca"} {
		v := getCounterValue(m.rulesExecuted, action)
		s.ByAction[action] = v
		s.OccurrencesExecuted += v
		s.OccurrencesSkipped += getCounterValue(m.rulesSkipped, action)
		s.RuleFailures += getCounterValue(m.ruleFailures, action)
	}
	return s
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
