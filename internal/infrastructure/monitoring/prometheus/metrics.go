package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds every metric the service records.
type AppMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Reconciliation
	RunsTotal       CounterVec
	RunDuration     HistogramVec
	RunsActive      GaugeVec
	StagesDuration  HistogramVec
	StepsTotal      CounterVec
	StepEntityDelta CounterVec
	EntitiesOutput  CounterVec
	StageStatsTotal CounterVec
	DecodeSkipped   CounterVec

	// Infrastructure
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec
	MessagesTotal          CounterVec
	MessageProcessDuration HistogramVec
	IndexedEntitiesTotal   CounterVec
	ErrorsTotal            CounterVec
}

var (
	DefaultHTTPDurationBuckets  = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultStageDurationBuckets = []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300}
)

// Run outcomes used as the status label.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// NewAppMetrics registers every metric on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method", "path")

	m.RunsTotal = collector.RegisterCounter("runs_total", "Reconciliation runs by outcome", "policy", "status")
	m.RunDuration = collector.RegisterHistogram("run_duration_seconds", "Reconciliation run duration", DefaultStageDurationBuckets, "policy")
	m.RunsActive = collector.RegisterGauge("runs_active", "Runs currently executing", "policy")
	m.StagesDuration = collector.RegisterHistogram("stage_duration_seconds", "Pipeline stage duration", DefaultStageDurationBuckets, "stage")
	m.StepsTotal = collector.RegisterCounter("policy_steps_total", "Policy steps applied", "policy", "op")
	m.StepEntityDelta = collector.RegisterCounter("policy_step_entities_total", "Entities added or removed by policy steps", "policy", "op", "direction")
	m.EntitiesOutput = collector.RegisterCounter("entities_output_total", "Entities written by runs", "label")
	m.StageStatsTotal = collector.RegisterCounter("stage_stats_total", "Post-processing and rule counters", "stage", "stat")
	m.DecodeSkipped = collector.RegisterCounter("decode_skipped_total", "Input documents skipped while decoding", "source")

	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.MessagesTotal = collector.RegisterCounter("messages_total", "Queue messages handled", "topic", "status")
	m.MessageProcessDuration = collector.RegisterHistogram("message_process_duration_seconds", "Queue message processing duration", DefaultStageDurationBuckets, "topic")
	m.IndexedEntitiesTotal = collector.RegisterCounter("indexed_entities_total", "Entities sent to the search index", "result")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "code")

	return m
}

// NewNoopMetrics returns metrics that record nothing.
func NewNoopMetrics() *AppMetrics {
	return NewAppMetrics(NewNoopCollector())
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// RecordHTTPRequest counts one finished request.
func (m *AppMetrics) RecordHTTPRequest(method, path string, statusCode int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// RecordRun counts one finished run.
func (m *AppMetrics) RecordRun(policy string, err error, d time.Duration) {
	status := StatusSucceeded
	if err != nil {
		status = StatusFailed
	}
	m.RunsTotal.WithLabelValues(policy, status).Inc()
	m.RunDuration.WithLabelValues(policy).Observe(d.Seconds())
}

// RecordStage observes the duration of one pipeline stage.
func (m *AppMetrics) RecordStage(stage string, d time.Duration) {
	m.StagesDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordStep counts one policy step and the entities it added or removed.
func (m *AppMetrics) RecordStep(policy, op string, before, after int) {
	m.StepsTotal.WithLabelValues(policy, op).Inc()
	switch {
	case after > before:
		m.StepEntityDelta.WithLabelValues(policy, op, "added").Add(float64(after - before))
	case after < before:
		m.StepEntityDelta.WithLabelValues(policy, op, "removed").Add(float64(before - after))
	}
}

// RecordEntities adds per-label output counts.
func (m *AppMetrics) RecordEntities(byLabel map[string]int) {
	for label, n := range byLabel {
		if n > 0 {
			m.EntitiesOutput.WithLabelValues(label).Add(float64(n))
		}
	}
}

// RecordStageStats adds a flattened counter map under stage.
func (m *AppMetrics) RecordStageStats(stage string, stats map[string]int) {
	for stat, n := range stats {
		if n > 0 {
			m.StageStatsTotal.WithLabelValues(stage, stat).Add(float64(n))
		}
	}
}

// RecordDecodeSkipped counts documents skipped while decoding source.
func (m *AppMetrics) RecordDecodeSkipped(source string, n int) {
	if n > 0 {
		m.DecodeSkipped.WithLabelValues(source).Add(float64(n))
	}
}

// RecordCacheAccess counts a hit or miss on cache.
func (m *AppMetrics) RecordCacheAccess(cache string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

// RecordMessage counts one consumed message.
func (m *AppMetrics) RecordMessage(topic string, err error, d time.Duration) {
	status := StatusSucceeded
	if err != nil {
		status = StatusFailed
	}
	m.MessagesTotal.WithLabelValues(topic, status).Inc()
	m.MessageProcessDuration.WithLabelValues(topic).Observe(d.Seconds())
}

// RecordIndexed counts entities accepted and rejected by the search index.
func (m *AppMetrics) RecordIndexed(succeeded, failed int) {
	if succeeded > 0 {
		m.IndexedEntitiesTotal.WithLabelValues("succeeded").Add(float64(succeeded))
	}
	if failed > 0 {
		m.IndexedEntitiesTotal.WithLabelValues("failed").Add(float64(failed))
	}
}

// RecordError counts an error by component and code.
func (m *AppMetrics) RecordError(component, code string) {
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}

//Personal.AI order the ending
